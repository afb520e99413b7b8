package pagecraft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pagecraft/pagecraft/pkg/integrity"
	"github.com/pagecraft/pagecraft/pkg/logger"
	"github.com/pagecraft/pagecraft/pkg/store"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath string
	backend    string
	logLevel   string
	console    bool
}

// NewRootCommand returns the pagecraft command line.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pagecraft",
		Short:         "Page builder tree engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "storage backend (badger|memory|sqlite|postgres|surrealdb)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&opts.console, "console", false, "human readable log output")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newTemplatesCommand(opts))
	return cmd
}

// load resolves the configuration and builds the logger. The caller closes
// the returned LogData.
func (o *rootOptions) load(cmd *cobra.Command, apply func(*Config)) (*Config, *logger.LogData, error) {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.console {
		cfg.Log.Console = true
	}
	if apply != nil {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logData, err := logger.New().
		FromPath(cfg.Log.Path).
		FromBuffer(cmd.ErrOrStderr()).
		WithLevel(cfg.Log.Level).
		Console(cfg.Log.Console).
		Make()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logData, nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		listen   string
		registry string
		watch    bool
		readOnly bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API and the websocket change feed.

The schema is migrated on start. With --registry the block types are read
from a YAML file instead of the built-in set, and --watch reloads it when it
changes.

Example:
  pagecraft serve --backend sqlite --listen :8080
  pagecraft serve -c pagecraft.yaml --registry blocks.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logData, err := opts.load(cmd, func(cfg *Config) {
				flags := cmd.Flags()
				if flags.Changed("listen") {
					cfg.Listen = listen
				}
				if flags.Changed("registry") {
					cfg.Registry = registry
				}
				if flags.Changed("watch") {
					cfg.WatchRegistry = watch
				}
				if flags.Changed("read-only") {
					cfg.ReadOnly = readOnly
				}
			})
			if err != nil {
				return err
			}
			defer logData.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			app, err := New(ctx, cfg, logData.Logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					logData.Logger.Error().Err(err).Msg("close store")
				}
			}()
			return app.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (host:port)")
	cmd.Flags().StringVar(&registry, "registry", "", "block type YAML file")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the registry file on change")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "reject writes")
	return cmd
}

// withStore opens the configured store for a one-shot command.
func withStore(cmd *cobra.Command, opts *rootOptions, migrate bool, fn func(context.Context, store.Store, zerolog.Logger) error) error {
	cfg, logData, err := opts.load(cmd, nil)
	if err != nil {
		return err
	}
	defer logData.Close()

	ctx := cmd.Context()
	st, err := OpenStore(ctx, cfg, logData.Logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	defer st.Close()
	if migrate {
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate %s store: %w", cfg.Backend, err)
		}
	}
	return fn(ctx, st, logData.Logger)
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the storage schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, true, func(_ context.Context, _ store.Store, log zerolog.Logger) error {
				log.Info().Msg("migration complete")
				return nil
			})
		},
	}
}

// ErrCheckFailed is returned by the check command when problems were found.
var ErrCheckFailed = errors.New("integrity check failed")

func newCheckCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Audit pages, blocks and templates for broken trees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, false, func(ctx context.Context, st store.Store, _ zerolog.Logger) error {
				rep, err := integrity.Check(ctx, st)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if err := enc.Encode(rep); err != nil {
						return err
					}
				} else {
					printReport(cmd.OutOrStdout(), rep)
				}
				if !rep.OK() {
					return ErrCheckFailed
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(w io.Writer, rep *integrity.Report) {
	fmt.Fprintf(w, "%d pages, %d blocks, %d templates\n", rep.Pages, rep.Blocks, rep.Templates)
	for _, d := range rep.Dangling {
		fmt.Fprintf(w, "dangling: %v\n", d)
	}
	for _, s := range rep.Shared {
		fmt.Fprintf(w, "shared: block %s referenced from %v\n", s.Block, s.Referrers)
	}
	for _, id := range rep.Orphans {
		fmt.Fprintf(w, "orphan: block %s\n", id)
	}
	if rep.Density != nil {
		fmt.Fprintf(w, "ranks: %v\n", rep.Density)
	}
	if rep.OK() {
		fmt.Fprintln(w, "ok")
	}
}

func newTemplatesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect saved templates",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List templates by rank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, false, func(ctx context.Context, st store.Store, _ zerolog.Logger) error {
				tpls, err := st.ListTemplates(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RANK\tID\tNAME\tROOT\tUPDATED")
				for _, tpl := range tpls {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", tpl.Order, tpl.ID, tpl.Name, tpl.Root(), tpl.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	})
	return cmd
}
