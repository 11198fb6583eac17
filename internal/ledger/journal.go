package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/observability"
	"github.com/ismaiel54/futures-fix-trader/internal/order"
)

// Journal wraps a Ledger and keeps one report line per status update
type Journal struct {
	next   Ledger
	logger *zap.Logger

	mu    sync.Mutex
	lines []string
}

// NewJournal wraps next
func NewJournal(next Ledger, logger *zap.Logger) *Journal {
	return &Journal{next: next, logger: logger}
}

// Claim delegates to the wrapped ledger
func (j *Journal) Claim(ctx context.Context, intent order.Intent) error {
	return j.next.Claim(ctx, intent)
}

// UpdateStatus applies u and records the outcome. Failures are logged and
// returned; they never stop the caller from moving on.
func (j *Journal) UpdateStatus(ctx context.Context, u Update) error {
	err := j.next.UpdateStatus(ctx, u)

	line := u.Text
	if err != nil {
		j.logger.Error("ledger update failed",
			zap.String("new_order_id", u.IntentID),
			zap.String("status", string(u.Status)),
			zap.Error(err),
		)
		line += ". " + err.Error()
	} else {
		observability.IntentOutcomes.WithLabelValues(string(u.Status)).Inc()
		j.logger.Info("ledger updated",
			zap.String("new_order_id", u.IntentID),
			zap.String("status", string(u.Status)),
			zap.String("cl_ord_id", u.ClOrdID),
		)
		line += ". UpdateItem succeeded."
	}

	j.mu.Lock()
	j.lines = append(j.lines, line)
	j.mu.Unlock()

	return err
}

// Drain returns the recorded lines and clears them
func (j *Journal) Drain() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	lines := j.lines
	j.lines = nil
	return lines
}
