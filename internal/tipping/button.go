package tipping

import (
	"context"
	"log/slog"
	"math/big"
	"sync"

	"aurafeed/internal/middleware"
	"aurafeed/internal/models"
	"aurafeed/internal/observability"
	"aurafeed/internal/tipamount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// Wallet is the session a button sends through.
type Wallet interface {
	Account() (common.Address, bool)
	Connect(ctx context.Context) (common.Address, error)
	Send(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error)
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	ChainID() int64
}

// Feed receives settled tips.
type Feed interface {
	ApplyTip(ctx context.Context, tip models.TipInput) error
	HasTipped(postID string) bool
}

// Deps are the collaborators shared by every button.
type Deps struct {
	Wallet   Wallet
	Feed     Feed
	Clock    clockwork.Clock
	Poller   Poller
	Listener Listener
	Logger   *slog.Logger
}

func (d *Deps) withDefaults() {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Poller.Interval == 0 && d.Poller.MaxAttempts == 0 {
		d.Poller = DefaultPoller()
	}
	if d.Logger == nil {
		d.Logger = middleware.Logger
	}
}

// Button is the tip control of one post. All methods are safe for
// concurrent use; only one submission can be in flight at a time.
type Button struct {
	deps *Deps

	mu        sync.Mutex
	postID    string
	recipient common.Address
	canTip    bool
	composer  *tipamount.Composer

	state        State
	autoQueued   bool
	autoTimer    clockwork.Timer
	autoGen      uint64
	successTimer clockwork.Timer
	successGen   uint64
	reason       string
	success      string
	submissionID string
	lastHash     string
	lastResult   *models.TransactionResult
}

func newButton(deps *Deps, post models.Post) *Button {
	b := &Button{
		deps:     deps,
		postID:   post.ID,
		composer: tipamount.NewComposer(post.LastTipUSD),
		state:    StateIdle,
	}
	b.recipient, b.canTip = post.TipRecipient()
	return b
}

// PostID is the post this button tips.
func (b *Button) PostID() string { return b.postID }

// Status returns a snapshot for display.
func (b *Button) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked()
}

func (b *Button) statusLocked() Status {
	st := Status{
		PostID:         b.postID,
		State:          b.state,
		Busy:           b.state.Busy(),
		AutoQueued:     b.autoQueued,
		AmountUSD:      tipamount.FormatUSD(b.composer.Value()),
		AmountField:    b.composer.Field(),
		AmountETH:      b.composer.ETH(),
		Editing:        b.composer.Editing(),
		EditedManually: b.composer.EditedManually(),
		Invalid:        b.composer.Invalid(),
		Intensity:      b.composer.Intensity(),
		Reason:         b.reason,
		Success:        b.success,
		SubmissionID:   b.submissionID,
		Hash:           b.lastHash,
		ExplorerURL:    ExplorerURL(b.deps.Wallet.ChainID(), b.lastHash),
	}
	if acct, ok := b.deps.Wallet.Account(); ok {
		st.Account = models.ShortAddress(acct.Hex())
	}
	return st
}

// LastResult returns the outcome of the most recent settled submission.
func (b *Button) LastResult() (models.TransactionResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastResult == nil {
		return models.TransactionResult{}, false
	}
	return *b.lastResult, true
}

func (b *Button) eventLocked() Event {
	ev := Event{
		PostID:       b.postID,
		SubmissionID: b.submissionID,
		State:        b.state,
		AutoQueued:   b.autoQueued,
		AmountUSD:    tipamount.FormatUSD(b.composer.Value()),
		Hash:         b.lastHash,
		Error:        b.reason,
		ExplorerURL:  ExplorerURL(b.deps.Wallet.ChainID(), b.lastHash),
		At:           b.deps.Clock.Now(),
	}
	if b.lastResult != nil && b.lastResult.Hash == b.lastHash {
		ev.Confirmed = b.lastResult.Confirmed
	}
	return ev
}

func (b *Button) emit(ev Event) {
	if b.deps.Listener != nil {
		b.deps.Listener(ev)
	}
}

// update refreshes the recipient and reseeds the amount from a new post projection.
func (b *Button) update(post models.Post) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recipient, b.canTip = post.TipRecipient()
	b.composer.Seed(post.LastTipUSD, b.deps.Feed != nil && b.deps.Feed.HasTipped(post.ID), b.state.Busy())
}

// touchLocked is the common prologue of user interactions: it leaves a
// terminal state and clears inline messages.
func (b *Button) touchLocked() {
	if b.state.Terminal() {
		b.state = StateIdle
	}
	b.reason = ""
	b.success = ""
	b.stopSuccessTimerLocked()
}

// Click adds the increment for ratio and queues an automatic submission.
func (b *Button) Click(ratio float64) (Status, error) {
	b.mu.Lock()
	if b.state.Busy() {
		b.mu.Unlock()
		return b.Status(), ErrBusy
	}
	b.touchLocked()
	b.composer.Click(ratio)
	b.scheduleAutoSubmitLocked()
	ev, st := b.eventLocked(), b.statusLocked()
	b.mu.Unlock()

	b.emit(ev)
	return st, nil
}

// BeginEdit enters free-text mode and cancels any pending automatic submission.
func (b *Button) BeginEdit() (Status, error) {
	b.mu.Lock()
	if b.state.Busy() {
		b.mu.Unlock()
		return b.Status(), ErrBusy
	}
	b.touchLocked()
	wasQueued := b.cancelAutoSubmitLocked()
	b.composer.BeginEdit()
	ev, st := b.eventLocked(), b.statusLocked()
	b.mu.Unlock()

	if wasQueued {
		b.emit(ev)
	}
	return st, nil
}

// SetText updates the free-text amount.
func (b *Button) SetText(text string) (Status, error) {
	b.mu.Lock()
	if b.state.Busy() {
		b.mu.Unlock()
		return b.Status(), ErrBusy
	}
	b.touchLocked()
	wasQueued := b.cancelAutoSubmitLocked()
	b.composer.SetText(text)
	ev, st := b.eventLocked(), b.statusLocked()
	b.mu.Unlock()

	if wasQueued {
		b.emit(ev)
	}
	return st, nil
}

// Blur normalizes the free-text amount and queues an automatic submission
// unless a submission is in flight.
func (b *Button) Blur() Status {
	b.mu.Lock()
	b.composer.Blur()
	if !b.state.Busy() {
		b.scheduleAutoSubmitLocked()
	}
	ev, st := b.eventLocked(), b.statusLocked()
	b.mu.Unlock()

	b.emit(ev)
	return st
}

// Cancel drops a pending automatic submission, clears inline messages and
// leaves free-text mode. An in-flight submission is not affected.
func (b *Button) Cancel() Status {
	b.mu.Lock()
	wasQueued := b.cancelAutoSubmitLocked()
	b.reason = ""
	b.success = ""
	b.stopSuccessTimerLocked()
	if b.state.Terminal() {
		b.state = StateIdle
	}
	b.composer.EndEdit()
	ev, st := b.eventLocked(), b.statusLocked()
	b.mu.Unlock()

	if wasQueued {
		b.emit(ev)
	}
	return st
}

func (b *Button) scheduleAutoSubmitLocked() {
	b.cancelAutoSubmitLocked()
	b.autoQueued = true
	b.autoGen++
	gen := b.autoGen
	b.autoTimer = b.deps.Clock.AfterFunc(tipamount.AutoSubmitDelay, func() {
		b.fireAutoSubmit(gen)
	})
}

func (b *Button) cancelAutoSubmitLocked() bool {
	was := b.autoQueued
	if b.autoTimer != nil {
		b.autoTimer.Stop()
		b.autoTimer = nil
	}
	b.autoQueued = false
	b.autoGen++
	return was
}

func (b *Button) fireAutoSubmit(gen uint64) {
	b.mu.Lock()
	if gen != b.autoGen || !b.autoQueued {
		b.mu.Unlock()
		return
	}
	b.autoQueued = false
	b.autoTimer = nil
	b.mu.Unlock()

	_, _ = b.SubmitWait(context.Background())
}

func (b *Button) stopSuccessTimerLocked() {
	if b.successTimer != nil {
		b.successTimer.Stop()
		b.successTimer = nil
	}
	b.successGen++
}

func (b *Button) clearSuccess(gen uint64) {
	b.mu.Lock()
	if gen != b.successGen {
		b.mu.Unlock()
		return
	}
	b.success = ""
	b.successTimer = nil
	if b.state == StateSettled {
		b.state = StateIdle
	}
	ev := b.eventLocked()
	b.mu.Unlock()

	b.emit(ev)
}

// Submit starts a submission in the background and returns immediately.
// The submission outlives ctx's cancellation.
func (b *Button) Submit(ctx context.Context) (Status, error) {
	sub, err := b.begin(ctx)
	if err != nil {
		return b.Status(), err
	}
	st := b.Status()
	if sub != nil {
		go b.run(context.WithoutCancel(ctx), sub)
	}
	return st, nil
}

// SubmitWait runs a submission to completion and returns the final status.
func (b *Button) SubmitWait(ctx context.Context) (Status, error) {
	sub, err := b.begin(ctx)
	if err != nil {
		return b.Status(), err
	}
	if sub != nil {
		b.run(ctx, sub)
	}
	return b.Status(), nil
}

type submission struct {
	id         string
	amount     decimal.Decimal
	wei        *big.Int
	recipient  common.Address
	connecting bool
	err        error
}

// begin claims the button for a new submission and moves it out of Idle.
func (b *Button) begin(ctx context.Context) (*submission, error) {
	b.mu.Lock()
	if b.state.Busy() {
		b.mu.Unlock()
		return nil, ErrBusy
	}

	b.cancelAutoSubmitLocked()
	b.stopSuccessTimerLocked()
	b.reason = ""
	b.success = ""
	b.lastHash = ""
	b.composer.EndEdit()

	sub := &submission{
		id:        uuid.NewString(),
		amount:    b.composer.SubmitAmount(),
		recipient: b.recipient,
	}
	b.submissionID = sub.id

	sub.wei, sub.err = tipamount.ToWei(sub.amount)
	if sub.err == nil && !b.canTip {
		sub.err = ErrNoRecipient
	}

	if sub.err != nil {
		// Rejected before dispatch: no wallet interaction happens. The button
		// is Failed before the lock is released.
		ev := b.failLocked(sub, sub.err)
		b.mu.Unlock()
		b.reportFailure(middleware.WithSubmissionID(ctx, sub.id), ev, sub.err)
		return nil, nil
	}

	if hasAccount(b.deps.Wallet) {
		b.state = StateSubmitting
	} else {
		b.state = StateConnecting
		sub.connecting = true
	}
	ev := b.eventLocked()
	b.mu.Unlock()

	b.deps.Logger.InfoContext(middleware.WithSubmissionID(ctx, sub.id), "Tip submission started",
		slog.String("post_id", b.postID),
		slog.String("amount_usd", sub.amount.StringFixed(2)),
	)
	b.emit(ev)
	return sub, nil
}

func hasAccount(w Wallet) bool {
	_, ok := w.Account()
	return ok
}

func (b *Button) run(ctx context.Context, sub *submission) {
	ctx = middleware.WithSubmissionID(ctx, sub.id)
	span, ctx := observability.StartSpan(ctx, "tipping.submit",
		attribute.String("post_id", b.postID),
		attribute.String("submission_id", sub.id),
	)
	defer span.End()

	if sub.connecting {
		if _, err := b.deps.Wallet.Connect(ctx); err != nil {
			b.fail(ctx, sub, err)
			span.SetError(err)
			return
		}
		sub.connecting = false
		b.transition(StateSubmitting, "")
	}

	hash, err := b.deps.Wallet.Send(ctx, sub.recipient, sub.wei)
	if err != nil {
		b.fail(ctx, sub, err)
		span.SetError(err)
		return
	}
	b.transition(StateSubmitting, hash.Hex())
	span.AddAttributes(attribute.String("tx_hash", hash.Hex()))
	span.Event("transaction.sent")

	receipt, attempts, err := b.deps.Poller.Wait(ctx, b.deps.Wallet, hash)
	observability.ReceiptPollAttempts.Observe(float64(attempts))
	if err != nil {
		b.fail(ctx, sub, err)
		span.SetError(err)
		return
	}

	span.Event("transaction.included",
		attribute.Int("poll_attempts", attempts),
		attribute.Bool("confirmed", receipt.Status == types.ReceiptStatusSuccessful),
	)
	b.settle(ctx, sub, hash, receipt)
}

func (b *Button) transition(state State, hash string) {
	b.mu.Lock()
	b.state = state
	if hash != "" {
		b.lastHash = hash
	}
	ev := b.eventLocked()
	b.mu.Unlock()
	b.emit(ev)
}

func (b *Button) fail(ctx context.Context, sub *submission, err error) {
	b.mu.Lock()
	ev := b.failLocked(sub, err)
	b.mu.Unlock()
	b.reportFailure(ctx, ev, err)
}

func (b *Button) failLocked(sub *submission, err error) Event {
	b.state = StateFailed
	b.reason = Reason(err, sub.connecting)
	return b.eventLocked()
}

func (b *Button) reportFailure(ctx context.Context, ev Event, err error) {
	observability.TipsTotal.WithLabelValues(outcome(err)).Inc()
	b.deps.Logger.ErrorContext(ctx, "Tip submission failed",
		slog.String("post_id", b.postID),
		slog.String("reason", ev.Error),
		slog.String("error", err.Error()),
	)
	b.emit(ev)
}

func (b *Button) settle(ctx context.Context, sub *submission, hash common.Hash, receipt *types.Receipt) {
	// A reverted transaction is still final, so the button settles, but no
	// value moved and the ledger is left alone.
	confirmed := receipt.Status == types.ReceiptStatusSuccessful
	if !confirmed {
		b.deps.Logger.WarnContext(ctx, "Tip transaction reverted",
			slog.String("post_id", b.postID),
			slog.String("hash", hash.Hex()),
		)
	}

	if confirmed && b.deps.Feed != nil {
		err := b.deps.Feed.ApplyTip(ctx, models.TipInput{PostID: b.postID, AmountUSD: sub.amount})
		if err != nil {
			b.deps.Logger.WarnContext(ctx, "Failed to apply settled tip to feed",
				slog.String("post_id", b.postID),
				slog.String("error", err.Error()),
			)
		}
	}
	hasTipped := b.deps.Feed != nil && b.deps.Feed.HasTipped(b.postID)

	b.mu.Lock()
	b.state = StateSettled
	b.lastHash = hash.Hex()
	b.lastResult = &models.TransactionResult{Hash: hash.Hex(), Confirmed: confirmed}
	b.composer.Reset(hasTipped)
	b.success = SuccessMessage
	b.stopSuccessTimerLocked()
	gen := b.successGen
	b.successTimer = b.deps.Clock.AfterFunc(SuccessDisplay, func() { b.clearSuccess(gen) })
	ev := b.eventLocked()
	b.mu.Unlock()

	result := "settled"
	if !confirmed {
		result = "reverted"
	}
	observability.TipsTotal.WithLabelValues(result).Inc()
	b.deps.Logger.InfoContext(ctx, "Tip settled",
		slog.String("post_id", b.postID),
		slog.String("hash", hash.Hex()),
		slog.String("amount_usd", sub.amount.StringFixed(2)),
		slog.Bool("confirmed", confirmed),
	)
	b.emit(ev)
}
