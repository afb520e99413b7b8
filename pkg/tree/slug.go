package tree

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

const maxSlugAttempts = 1000

// Slugify lowercases s, strips diacritics and joins the remaining letter and
// digit runs with hyphens. "Über Uns!" becomes "uber-uns". Input with no
// ASCII letters or digits yields "page".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(plain) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			hyphen = false
			continue
		}
		hyphen = true
	}
	if b.Len() == 0 {
		return "page"
	}
	return b.String()
}

// UniqueSlug returns Slugify(base) if no page uses it, otherwise the first
// free of base-2, base-3 and so on.
func UniqueSlug(ctx context.Context, st store.Store, base string) (string, error) {
	stem := Slugify(base)
	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := stem
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d", stem, n)
		}
		_, err := st.FindPageBySlug(ctx, candidate)
		if errors.Is(err, models.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
	}
	return "", &models.ConstraintViolationError{Field: "slug", Value: stem, Reason: "no free variant"}
}
