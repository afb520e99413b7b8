// Command pagecraft serves and maintains a page builder store.
package main

import (
	"fmt"
	"os"

	"github.com/pagecraft/pagecraft/pkg/pagecraft"
)

func main() {
	if err := pagecraft.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pagecraft:", err)
		os.Exit(1)
	}
}
