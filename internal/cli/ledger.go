package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"aurafeed/internal/config"
	"aurafeed/internal/ledger"
	"aurafeed/internal/storage"
	"aurafeed/internal/tipamount"

	"github.com/spf13/cobra"
)

// NewLedgerCommand creates the ledger command group.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Read and update the local tip ledger",
	}
	cmd.AddCommand(newLedgerShowCommand(rootOpts))
	cmd.AddCommand(newLedgerMigrateCommand(rootOpts))
	cmd.AddCommand(newLedgerRegisterCommand(rootOpts))
	return cmd
}

func openLedger(ctx context.Context, opts *RootOptions, cfg *config.Config) (*ledger.Store, func() error, error) {
	st, closeStore, err := storage.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger storage: %w", err)
	}
	return ledger.Open(ctx, st, ledger.WithLogger(opts.logger)), closeStore, nil
}

func newLedgerShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every tip record, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			l, closeStore, err := openLedger(cmd.Context(), rootOpts, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()
			return printLedger(cmd.OutOrStdout(), rootOpts.Format, l)
		},
	}
}

func printLedger(w io.Writer, format string, l *ledger.Store) error {
	state := l.State()
	records := l.Records()
	if format == "json" {
		return writeJSON(w, map[string]any{
			"loadedFrom":    l.Source(),
			"lastUpdatedAt": state.LastUpdatedAt,
			"records":       records,
		})
	}

	if len(records) == 0 {
		_, err := fmt.Fprintf(w, "No tips recorded (loaded from %s)\n", l.Source())
		return err
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.PostID, strconv.Itoa(r.TotalTips), tipamount.FormatUSD(r.LastAmountUSD),
			r.LastUpdatedAt.Format(time.RFC3339), r.LastNote,
		})
	}
	return renderTable(w, []string{"POST", "TIPS", "LAST USD", "UPDATED", "NOTE"}, rows)
}

func newLedgerMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade a legacy ledger to the current format",
		Long: `Loads the ledger once. A ledger found under a legacy key is rewritten in
the current format and the legacy key is removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			l, closeStore, err := openLedger(cmd.Context(), rootOpts, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			src := l.Source()
			records := len(l.State().Records)
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, map[string]any{
					"loadedFrom": src,
					"migrated":   src == ledger.SourceRecords || src == ledger.SourceIDList,
					"records":    records,
				})
			}
			switch src {
			case ledger.SourceRecords, ledger.SourceIDList:
				_, err = fmt.Fprintf(out, "Migrated %d record(s) from %s to %s\n", records, src, ledger.CurrentKey)
			case ledger.SourceEmpty:
				_, err = fmt.Fprintln(out, "No ledger found; nothing to migrate")
			default:
				_, err = fmt.Fprintf(out, "Ledger is current (%d record(s))\n", records)
			}
			return err
		},
	}
}

func newLedgerRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "register <postId> <amountUsd>",
		Short: "Record a settled tip without sending a transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, ok := tipamount.ParseUSD(args[1])
			if !ok {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			l, closeStore, err := openLedger(cmd.Context(), rootOpts, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			l.RegisterTip(cmd.Context(), args[0], tipamount.Clamp(amount), note)
			rec, _ := l.GetTip(args[0])
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Post %s: %d tip(s), last $%s\n",
				rec.PostID, rec.TotalTips, tipamount.FormatUSD(rec.LastAmountUSD))
			return err
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note stored with the tip")
	return cmd
}
