package cli

import (
	"strconv"

	"aurafeed/internal/feed"
	"aurafeed/internal/ranking"
	"aurafeed/internal/server"

	"github.com/spf13/cobra"
)

// NewFeedCommand creates the feed command group.
func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Read posts from the configured source",
	}
	cmd.AddCommand(newFeedListCommand(rootOpts))
	return cmd
}

func newFeedListCommand(rootOpts *RootOptions) *cobra.Command {
	var personalized bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts merged with the local tip ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			l, closeStore, err := openLedger(ctx, rootOpts, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			src, closeSource, err := server.BuildSource(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSource()

			state := feed.NewState(src, l, rootOpts.logger)
			if err := state.Refresh(ctx); err != nil {
				return err
			}
			mode := ranking.Chronological
			if personalized {
				mode = ranking.Personalized
			}
			posts := state.Posts(mode)

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, map[string]any{
					"source": state.SourceName(),
					"mode":   mode.String(),
					"posts":  posts,
				})
			}
			rows := make([][]string, 0, len(posts))
			for _, p := range posts {
				id := p.ID
				if state.HasTipped(p.ID) {
					id += "*"
				}
				rows = append(rows, []string{id, strconv.Itoa(p.Tips), p.CreatedAt.Format("2006-01-02"), p.Title})
			}
			return renderTable(out, []string{"ID", "TIPS", "CREATED", "TITLE"}, rows)
		},
	}
	cmd.Flags().BoolVarP(&personalized, "personalized", "p", false, "rank tipped posts first, then by tip count")
	return cmd
}
