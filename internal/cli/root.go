// Package cli implements the tipctl command tree.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"aurafeed/internal/config"
	"aurafeed/internal/middleware"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the dependencies shared by every command.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	loadConfig func() (*config.Config, error)
	logger     *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the tipctl root command reading configuration from
// config.yml, .env and the environment.
func NewRootCommand() *cobra.Command {
	return newRootCommand(config.LoadConfig)
}

func newRootCommand(load func() (*config.Config, error)) *cobra.Command {
	opts := &RootOptions{loadConfig: load}

	cmd := &cobra.Command{
		Use:   "tipctl",
		Short: "Inspect the tip ledger, list the feed and send tips",
		Long: `tipctl works on the same ledger storage, post sources and wallet as the
aurafeed server. Logs go to stderr so command output can be piped.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = middleware.NewLogger(cmd.ErrOrStderr(), "", level)
			middleware.Logger = opts.logger
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLedgerCommand(opts))
	cmd.AddCommand(NewFeedCommand(opts))
	cmd.AddCommand(NewTipCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

func (o *RootOptions) config() (*config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
