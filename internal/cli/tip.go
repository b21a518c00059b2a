package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"aurafeed/internal/feed"
	"aurafeed/internal/server"
	"aurafeed/internal/tipamount"
	"aurafeed/internal/tipping"
	"aurafeed/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewTipCommand creates the tip command group.
func NewTipCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tip",
		Short: "Send tips with the configured wallet",
	}
	cmd.AddCommand(newTipSendCommand(rootOpts))
	return cmd
}

type tipSendOptions struct {
	amount string
	yes    bool
}

func newTipSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tipSendOptions{}

	cmd := &cobra.Command{
		Use:   "send <postId>",
		Short: "Send a tip to a post and wait for confirmation",
		Long: `Sends the amount to the post's token-bound account, or to its creator when
the post has none, then polls for the receipt. A confirmed tip is recorded in
the ledger. Without --yes the transfer is confirmed on stdin first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTipSend(cmd, rootOpts, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.amount, "amount", "", "amount in USD (default: the post's last tip or the minimum)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "send without asking for confirmation")
	return cmd
}

func runTipSend(cmd *cobra.Command, rootOpts *RootOptions, opts *tipSendOptions, postID string) error {
	ctx := cmd.Context()
	if opts.amount != "" {
		if _, ok := tipamount.ParseUSD(opts.amount); !ok {
			return fmt.Errorf("invalid amount %q", opts.amount)
		}
	}

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
	post, ok := state.Post(postID)
	if !ok {
		return fmt.Errorf("post %s not found in %s feed", postID, state.SourceName())
	}

	provider, closeProvider, err := server.BuildProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProvider()
	if provider != nil && !opts.yes {
		provider = wallet.ConfirmingProvider{
			Provider: provider,
			Confirm:  promptConfirm(cmd.InOrStdin(), cmd.ErrOrStderr()),
		}
	}

	buttons := tipping.NewRegistry(tipping.Deps{
		Wallet: wallet.NewSession(provider, cfg.TipChainID, rootOpts.logger),
		Feed:   state,
		Clock:  clockwork.NewRealClock(),
		Logger: rootOpts.logger,
	})
	b := buttons.Button(post)
	if opts.amount != "" {
		if _, err := b.BeginEdit(); err != nil {
			return err
		}
		if _, err := b.SetText(opts.amount); err != nil {
			return err
		}
	}

	st, err := b.SubmitWait(ctx)
	if err != nil {
		return err
	}
	return printTipResult(cmd.OutOrStdout(), rootOpts.Format, st)
}

func printTipResult(w io.Writer, format string, st tipping.Status) error {
	if format == "json" {
		if err := writeJSON(w, st); err != nil {
			return err
		}
	} else if st.State == tipping.StateSettled {
		if _, err := fmt.Fprintf(w, "%s $%s sent to post %s\ntx: %s\n", st.Success, st.AmountUSD, st.PostID, st.ExplorerURL); err != nil {
			return err
		}
	}
	if st.State != tipping.StateSettled {
		return errors.New(st.Reason)
	}
	return nil
}

// promptConfirm asks on out and reads a y/yes answer from in.
func promptConfirm(in io.Reader, out io.Writer) wallet.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(_ context.Context, to common.Address, value *big.Int) bool {
		eth := decimal.NewFromBigInt(value, 0).Div(decimal.NewFromInt(params.Ether))
		_, _ = fmt.Fprintf(out, "Send %s ETH to %s? [y/N] ", eth.String(), to.Hex())
		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}
