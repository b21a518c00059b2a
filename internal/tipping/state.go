// Package tipping drives a post's tip control from gesture to settled
// on-chain transfer.
//
// A Button moves Idle -> Connecting -> Submitting -> Settled | Failed and
// back to Idle on the next interaction. While an auto-submit is pending the
// button is AutoQueued; any transition cancels it.
package tipping

import (
	"errors"
	"fmt"
	"time"

	"aurafeed/internal/tipamount"
	"aurafeed/internal/wallet"
)

// State is the submitter state of one button.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateSubmitting State = "submitting"
	StateSettled    State = "settled"
	StateFailed     State = "failed"
)

// Busy reports whether a submission is in flight.
func (s State) Busy() bool {
	return s == StateConnecting || s == StateSubmitting
}

// Terminal reports whether s ends a submission.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateFailed
}

const (
	// SepoliaChainID is the only chain with a known block explorer.
	SepoliaChainID = 11155111

	// SuccessMessage is shown after a settled tip.
	SuccessMessage = "Tip sent!"
	// SuccessDisplay is how long SuccessMessage stays visible.
	SuccessDisplay = 6 * time.Second
)

var (
	// ErrBusy is returned when a button is already connecting or submitting.
	ErrBusy = errors.New("tip submission already in progress")
	// ErrReceiptTimeout is returned when no receipt arrives within the attempt budget.
	ErrReceiptTimeout = errors.New("timed out waiting for value confirmation")
	// ErrNoRecipient is returned when a post has neither a TBA nor a creator address.
	ErrNoRecipient = errors.New("post has no tip recipient")
)

// ExplorerURL links to hash on the chain's explorer, or returns "" when the
// chain has none.
func ExplorerURL(chainID int64, hash string) string {
	if hash == "" || chainID != SepoliaChainID {
		return ""
	}
	return fmt.Sprintf("https://sepolia.etherscan.io/tx/%s", hash)
}

// Reason converts a submission failure to the message shown next to the
// control. connecting distinguishes a declined connection from a declined
// transaction.
func Reason(err error, connecting bool) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, wallet.ErrNoProvider):
		return "No injected wallet found. Install MetaMask or a compatible provider."
	case errors.Is(err, wallet.ErrRejected) && connecting:
		return "Wallet connection rejected."
	case errors.Is(err, wallet.ErrRejected):
		return "Transaction rejected in wallet."
	case errors.Is(err, wallet.ErrNoAccount):
		return "Wallet did not return an account."
	case errors.Is(err, ErrReceiptTimeout):
		return "Timed out waiting for value confirmation."
	case errors.Is(err, tipamount.ErrAmountTooSmall):
		return tipamount.TooSmallReason
	case errors.Is(err, ErrNoRecipient):
		return "This post has no tip recipient."
	case connecting:
		return "Failed to connect wallet."
	default:
		return "Failed to send value transaction."
	}
}

func outcome(err error) string {
	if errors.Is(err, wallet.ErrRejected) {
		return "rejected"
	}
	return "failed"
}

// Event is emitted on every state change of a button.
type Event struct {
	PostID       string    `json:"post_id"`
	SubmissionID string    `json:"submission_id,omitempty"`
	State        State     `json:"state"`
	AutoQueued   bool      `json:"auto_queued"`
	AmountUSD    string    `json:"amount_usd"`
	Hash         string    `json:"hash,omitempty"`
	Confirmed    bool      `json:"confirmed,omitempty"`
	Error        string    `json:"error,omitempty"`
	ExplorerURL  string    `json:"explorer_url,omitempty"`
	At           time.Time `json:"at"`
}

// Listener receives events. It must not call back into the emitting Button.
type Listener func(Event)

// Status is a snapshot of a button for display.
type Status struct {
	PostID         string  `json:"post_id"`
	State          State   `json:"state"`
	Busy           bool    `json:"busy"`
	AutoQueued     bool    `json:"auto_queued"`
	AmountUSD      string  `json:"amount_usd"`
	AmountField    string  `json:"amount_field"`
	AmountETH      string  `json:"amount_eth"`
	Editing        bool    `json:"editing"`
	EditedManually bool    `json:"edited_manually"`
	Invalid        bool    `json:"invalid"`
	Intensity      float64 `json:"intensity"`
	Reason         string  `json:"error,omitempty"`
	Success        string  `json:"success,omitempty"`
	SubmissionID   string  `json:"submission_id,omitempty"`
	Hash           string  `json:"hash,omitempty"`
	ExplorerURL    string  `json:"explorer_url,omitempty"`
	Account        string  `json:"account,omitempty"`
}
