package cli

import (
	"errors"
	"fmt"

	"aurafeed/internal/seed"

	"github.com/spf13/cobra"
)

type seedOptions struct {
	count    int
	out      string
	seed     int64
	maxDays  int
	creators int
	tbaEvery int
}

// NewSeedCommand creates the seed command, which writes a fake mock dataset.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a mock post dataset",
		Long: `Writes fake posts in the mock source format. Point MOCK_DATA_PATH at the
output to serve it. A .yml or .yaml extension writes YAML, anything else JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.count <= 0 {
				return errors.New("--count must be positive")
			}
			posts := seed.NewFactory(seed.Options{
				Count:    opts.count,
				Seed:     opts.seed,
				MaxDays:  opts.maxDays,
				Creators: opts.creators,
				TBAEvery: opts.tbaEvery,
			}).Posts()
			if err := seed.WriteDataset(opts.out, posts); err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"path": opts.out, "posts": len(posts)})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d posts to %s\n", len(posts), opts.out)
			return err
		},
	}
	cmd.Flags().IntVarP(&opts.count, "count", "n", 20, "number of posts")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "data/posts.json", "output path")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().IntVar(&opts.maxDays, "max-days", 90, "spread creation dates over this many past days")
	cmd.Flags().IntVar(&opts.creators, "creators", 3, "number of distinct creators")
	cmd.Flags().IntVar(&opts.tbaEvery, "tba-every", 2, "give every Nth post a token-bound account (0 disables)")
	return cmd
}
