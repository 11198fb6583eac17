package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/ledger"
	"github.com/ismaiel54/futures-fix-trader/internal/msg"
	"github.com/ismaiel54/futures-fix-trader/internal/notify"
	"github.com/ismaiel54/futures-fix-trader/internal/order"
)

// ErrQueueClosed is returned by Enqueue after the runner stopped
var ErrQueueClosed = errors.New("intent queue closed")

// Validator checks an intent before submission
type Validator interface {
	Validate(ctx context.Context, intent order.Intent) (order.Validated, error)
}

// Submitter sends a validated order and waits for its outcome
type Submitter interface {
	Submit(ctx context.Context, v order.Validated) (order.Trade, error)
}

// Config holds runner settings
type Config struct {
	BatchInterval time.Duration
	BatchSize     int
	QueueSize     int
}

// Outcome is the result of processing one intent
type Outcome struct {
	IntentID string
	Skipped  bool
	Trade    *order.Trade
	Err      error
}

// Runner drains queued intents in batches: each intent is claimed once,
// validated and submitted, then the batch report is sent
type Runner struct {
	cfg       Config
	validator Validator
	submitter Submitter
	journal   *ledger.Journal
	notifier  notify.Notifier
	logger    *zap.Logger

	queue chan order.Intent
	done  chan struct{}
}

// NewRunner creates a runner. journal must wrap the ledger used by the
// validator and the submitter so that every status update reaches the report.
func NewRunner(cfg Config, validator Validator, submitter Submitter, journal *ledger.Journal, notifier notify.Notifier, logger *zap.Logger) *Runner {
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	return &Runner{
		cfg:       cfg,
		validator: validator,
		submitter: submitter,
		journal:   journal,
		notifier:  notifier,
		logger:    logger,
		queue:     make(chan order.Intent, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// Enqueue adds intent to the queue, blocking while it is full
func (r *Runner) Enqueue(ctx context.Context, intent order.Intent) error {
	select {
	case <-r.done:
		return ErrQueueClosed
	default:
	}

	select {
	case r.queue <- intent:
		return nil
	case <-r.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleRecord decodes an intent record and queues it
func (r *Runner) HandleRecord(ctx context.Context, rec msg.Record) error {
	var m msg.IntentMsg
	if err := json.Unmarshal(rec.Value, &m); err != nil {
		// malformed records are dropped so the partition keeps moving
		r.logger.Error("failed to unmarshal intent", zap.String("key", rec.Key), zap.Error(err))
		return nil
	}
	if err := m.Validate(); err != nil {
		r.logger.Error("invalid intent", zap.String("key", rec.Key), zap.Error(err))
		return nil
	}
	if err := r.Enqueue(ctx, m.Intent()); err != nil {
		return fmt.Errorf("failed to queue intent %s: %w", m.NewOrderID, err)
	}
	return nil
}

// Run processes batches every BatchInterval until ctx is done
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if batch := r.drain(); len(batch) > 0 {
				r.ProcessBatch(ctx, batch)
			}
		}
	}
}

func (r *Runner) drain() []order.Intent {
	var batch []order.Intent
	for len(batch) < r.cfg.BatchSize {
		select {
		case intent := <-r.queue:
			batch = append(batch, intent)
		default:
			return batch
		}
	}
	return batch
}

// ProcessBatch handles intents in order and sends the batch report.
// A failure affects only its own intent.
func (r *Runner) ProcessBatch(ctx context.Context, intents []order.Intent) []Outcome {
	outcomes := make([]Outcome, 0, len(intents))
	for _, intent := range intents {
		outcomes = append(outcomes, r.process(ctx, intent))
	}
	r.report(ctx)
	return outcomes
}

func (r *Runner) process(ctx context.Context, intent order.Intent) Outcome {
	out := Outcome{IntentID: intent.ID}
	logger := r.logger.With(zap.String("new_order_id", intent.ID))

	if err := r.journal.Claim(ctx, intent); err != nil {
		if errors.Is(err, ledger.ErrAlreadyClaimed) {
			logger.Info("intent already processed, skipping")
		} else {
			logger.Error("failed to claim intent", zap.Error(err))
		}
		out.Skipped = true
		out.Err = err
		return out
	}

	validated, err := r.validator.Validate(ctx, intent)
	if err != nil {
		out.Err = err
		return out
	}

	trade, err := r.submitter.Submit(ctx, validated)
	if err != nil {
		logger.Error("submission failed", zap.Error(err))
		out.Err = err
		if trade.OrderID != "" {
			out.Trade = &trade
		}
		return out
	}
	out.Trade = &trade
	logger.Info("trade", zap.String("trade", trade.String()))
	return out
}

func (r *Runner) report(ctx context.Context) {
	lines := r.journal.Drain()
	if len(lines) == 0 {
		return
	}
	if err := r.notifier.Notify(ctx, notify.FormatReport(lines)); err != nil {
		r.logger.Error("failed to send batch report", zap.Int("lines", len(lines)), zap.Error(err))
	}
}
