package ledger

import (
	"context"
	"errors"

	"github.com/ismaiel54/futures-fix-trader/internal/order"
)

// Status is the lifecycle state of an intent in the ledger
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusInvalid  Status = "INVALID"
	StatusFilled   Status = "FILLED"
	StatusRejected Status = "REJECTED"
)

var (
	// ErrUpdateFailed wraps every failed status update
	ErrUpdateFailed = errors.New("ledger update failed")
	// ErrNotPending is returned when the record has already left PENDING
	ErrNotPending = errors.New("order is not pending")
	// ErrAlreadyClaimed is returned when an intent was recorded before
	ErrAlreadyClaimed = errors.New("intent already claimed")
)

// Update moves an intent out of PENDING
type Update struct {
	IntentID    string
	SubmittedAt string
	Status      Status
	Text        string
	ClOrdID     string
}

// Ledger records intents and their outcome
type Ledger interface {
	// Claim records intent as PENDING. It fails with ErrAlreadyClaimed when
	// the intent was seen before, so each intent is processed once.
	Claim(ctx context.Context, intent order.Intent) error
	// UpdateStatus applies u only while the record is PENDING
	UpdateStatus(ctx context.Context, u Update) error
}
