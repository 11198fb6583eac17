package validation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/chaos"
	"github.com/ismaiel54/futures-fix-trader/internal/config"
	"github.com/ismaiel54/futures-fix-trader/internal/correlation"
	"github.com/ismaiel54/futures-fix-trader/internal/events"
	"github.com/ismaiel54/futures-fix-trader/internal/fix"
	"github.com/ismaiel54/futures-fix-trader/internal/ledger"
	"github.com/ismaiel54/futures-fix-trader/internal/order"
	"github.com/ismaiel54/futures-fix-trader/internal/paper"
	"github.com/ismaiel54/futures-fix-trader/internal/refdata"
	"github.com/ismaiel54/futures-fix-trader/internal/reply"
	"github.com/ismaiel54/futures-fix-trader/internal/translator"
)

type recordingLedger struct {
	mu      sync.Mutex
	updates []ledger.Update
}

func (l *recordingLedger) Claim(context.Context, order.Intent) error { return nil }

func (l *recordingLedger) UpdateStatus(_ context.Context, u ledger.Update) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
	return nil
}

func (l *recordingLedger) all() []ledger.Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.Update(nil), l.updates...)
}

type failingLookup struct{}

func (failingLookup) Security(context.Context, string) (*refdata.SecurityProfile, error) {
	return nil, refdata.ErrUnavailable
}

var euro = refdata.SecurityProfile{
	Symbol:         "6E",
	TradingEnabled: true,
	RiskFactor:     decimal.RequireFromString("0.5"),
	MarginAmount:   decimal.NewFromInt(100),
	MarginCurrency: "USD",
	MaxPosition:    5,
}

type harness struct {
	pipeline *Pipeline
	engine   *paper.Engine
	ledger   *recordingLedger
}

type harnessOpts struct {
	paper   paper.Options
	chaos   *chaos.Chaos
	lookup  refdata.Lookup
	timeout time.Duration
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()
	logger := zap.NewNop()

	bus := events.NewBus(logger)
	store := correlation.NewStore(correlation.Config{MaxLatencySeconds: 10}, bus, logger)
	tr := translator.New(store, bus, logger)

	timeout := opts.timeout
	if timeout == 0 {
		timeout = time.Second
	}
	replies := NewReplies(reply.Config{Timeout: timeout}, logger)
	bus.Subscribe(events.ChannelAccount, replies)

	if opts.paper.Balance.IsZero() {
		opts.paper.Balance = decimal.NewFromInt(1000)
	}
	engine := paper.New(opts.paper, tr, opts.chaos, logger)
	t.Cleanup(engine.Close)

	lookup := opts.lookup
	if lookup == nil {
		lookup = refdata.NewStatic(euro)
	}

	l := &recordingLedger{}
	p := NewPipeline(lookup, engine, replies, l, "ACC-1", logger)
	p.SetClock(func() time.Time { return time.Date(2017, 5, 1, 12, 0, 0, 0, time.UTC) })
	return &harness{pipeline: p, engine: engine, ledger: l}
}

func intent(symbol, maturity string, qty int64, side, ordType string) order.Intent {
	return order.Intent{
		ID:          "n-1",
		SubmittedAt: "1496721144.32",
		Symbol:      symbol,
		Maturity:    maturity,
		Quantity:    qty,
		Side:        side,
		OrdType:     ordType,
	}
}

func requireRejection(t *testing.T, err error, stage Stage, target error) *Rejection {
	t.Helper()
	require.Error(t, err)
	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, stage, rej.Stage)
	assert.ErrorIs(t, err, target)
	return rej
}

func TestProceed(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	v, err := h.pipeline.Validate(context.Background(), intent("6E", "201706", 1, "BUY", "MARKET"))
	require.NoError(t, err)

	assert.Equal(t, fix.SideBuy, v.Side)
	assert.Equal(t, int64(1), v.Quantity)
	assert.Equal(t, "6E", v.Symbol)
	assert.Equal(t, "201706", v.Maturity)
	assert.Empty(t, h.ledger.all())

	assert.Len(t, h.engine.SentOfType(fix.MsgTypeRequestForPositions), 1)
	assert.Len(t, h.engine.SentOfType(fix.MsgTypeCollateralInquiry), 1)
	assert.Empty(t, h.engine.SentOfType(fix.MsgTypeNewOrderSingle))
}

func TestUnknownSymbolSendsNothing(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	_, err := h.pipeline.Validate(context.Background(), intent("ZZ", "201706", 1, "BUY", "MARKET"))
	requireRejection(t, err, StageSymbol, ErrUnknownSymbol)

	assert.Empty(t, h.engine.Sent())
	updates := h.ledger.all()
	require.Len(t, updates, 1)
	assert.Equal(t, ledger.StatusInvalid, updates[0].Status)
	assert.Equal(t, "Error validate_symbol NewOrderId: n-1. Symbol is unknown or not enabled for trading ZZ", updates[0].Text)
}

func TestDisabledSymbolIsUnknown(t *testing.T) {
	disabled := euro
	disabled.TradingEnabled = false
	h := newHarness(t, harnessOpts{lookup: refdata.NewStatic(disabled)})

	_, err := h.pipeline.Validate(context.Background(), intent("6E", "201706", 1, "BUY", "MARKET"))
	requireRejection(t, err, StageSymbol, ErrUnknownSymbol)
}

func TestReferenceDataUnavailable(t *testing.T) {
	h := newHarness(t, harnessOpts{lookup: failingLookup{}})

	_, err := h.pipeline.Validate(context.Background(), intent("6E", "201706", 1, "BUY", "MARKET"))
	rej := requireRejection(t, err, StageSymbol, ErrReferenceDataUnavailable)
	assert.ErrorIs(t, err, refdata.ErrUnavailable)
	assert.Contains(t, rej.Text(), "ClientError validate_symbol")
	assert.Empty(t, h.engine.Sent())
}

func TestExpiredMaturity(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	_, err := h.pipeline.Validate(context.Background(), intent("6E", "201703", 1, "BUY", "MARKET"))
	rej := requireRejection(t, err, StageMaturity, ErrExpiredMaturity)
	assert.Equal(t, "2017-03-22 maturity date has expired", rej.Reason)
	assert.Empty(t, h.engine.Sent())

	_, err = h.pipeline.Validate(context.Background(), intent("6E", "June", 1, "BUY", "MARKET"))
	requireRejection(t, err, StageMaturity, ErrExpiredMaturity)
}

func TestMaxPositionExceeded(t *testing.T) {
	tests := []struct {
		name     string
		position paper.Position
		qty      int64
		side     string
		rejected bool
	}{
		{"buy within limit", paper.Position{Long: 3}, 2, "BUY", false},
		{"buy over limit", paper.Position{Long: 3}, 3, "BUY", true},
		{"sell reduces position", paper.Position{Long: 3}, 2, "SELL", false},
		{"sell flips past limit", paper.Position{Long: 3}, 9, "SELL", true},
		{"short buy back", paper.Position{Short: 4}, 1, "BUY", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := tt.position
			pos.Symbol, pos.Maturity = "6E", "201706"
			h := newHarness(t, harnessOpts{paper: paper.Options{Positions: []paper.Position{pos}}})

			_, err := h.pipeline.Validate(context.Background(), intent("6E", "201706", tt.qty, tt.side, "MARKET"))
			if !tt.rejected {
				require.NoError(t, err)
				return
			}
			requireRejection(t, err, StageQuantity, ErrMaxPositionExceeded)
			assert.Empty(t, h.engine.SentOfType(fix.MsgTypeCollateralInquiry))
		})
	}
}

func TestPositionTimeoutAssumesFlat(t *testing.T) {
	drop := chaos.New(config.ChaosConfig{Enabled: true, DropPct: 100, TargetOp: fix.MsgTypeRequestForPositionsAck}, zap.NewNop())

	h := newHarness(t, harnessOpts{chaos: drop, timeout: 50 * time.Millisecond})
	_, err := h.pipeline.Validate(context.Background(), intent("6E", "201706", 5, "BUY", "MARKET"))
	require.NoError(t, err)

	h = newHarness(t, harnessOpts{chaos: drop, timeout: 50 * time.Millisecond})
	_, err = h.pipeline.Validate(context.Background(), intent("6E", "201706", 6, "BUY", "MARKET"))
	rej := requireRejection(t, err, StageQuantity, ErrMaxPositionExceeded)
	assert.ErrorIs(t, err, reply.ErrCorrelationTimeout)
	assert.Equal(t, "No reply to requestForPositions. MaxPosition exceeded for 6E", rej.Reason)
}

func TestPositionsInOtherContractsSkipped(t *testing.T) {
	h := newHarness(t, harnessOpts{
		paper: paper.Options{Positions: []paper.Position{
			{Symbol: "6E", Maturity: "201709", Long: 5},
			{Symbol: "6E", Maturity: "201706", Long: 1},
		}},
	})

	_, err := h.pipeline.Validate(context.Background(), intent("6E", "201706", 4, "BUY", "MARKET"))
	require.NoError(t, err)

	_, err = h.pipeline.Validate(context.Background(), intent("6E", "201706", 5, "BUY", "MARKET"))
	requireRejection(t, err, StageQuantity, ErrMaxPositionExceeded)
}

func TestMarginCurrencyMismatch(t *testing.T) {
	h := newHarness(t, harnessOpts{paper: paper.Options{Currency: "EUR"}})

	_, err := h.pipeline.Validate(context.Background(), intent("6E", "201706", 1, "BUY", "MARKET"))
	requireRejection(t, err, StageOrder, ErrMarginCurrencyMismatch)

	updates := h.ledger.all()
	require.Len(t, updates, 1)
	assert.Equal(t, ledger.StatusInvalid, updates[0].Status)
	assert.Equal(t, "Error validate_order NewOrderId: n-1. Margin Currency does not match Balance Currency for 6E", updates[0].Text)
	assert.Empty(t, h.engine.SentOfType(fix.MsgTypeNewOrderSingle))
}

func TestMarginExceeded(t *testing.T) {
	h := newHarness(t, harnessOpts{paper: paper.Options{Balance: decimal.NewFromInt(150)}})

	_, err := h.pipeline.Validate(context.Background(), intent("6E", "201706", 1, "BUY", "MARKET"))
	rej := requireRejection(t, err, StageOrder, ErrMarginExceeded)
	assert.Equal(t, "Margin exceeded for 6E. Balance: 150, RF: 0.5, Margin: 100", rej.Reason)
}

func TestCollateralTimeout(t *testing.T) {
	drop := chaos.New(config.ChaosConfig{Enabled: true, DropPct: 100, TargetOp: fix.MsgTypeCollateralReport}, zap.NewNop())
	h := newHarness(t, harnessOpts{chaos: drop, timeout: 50 * time.Millisecond})

	_, err := h.pipeline.Validate(context.Background(), intent("6E", "201706", 1, "BUY", "MARKET"))
	requireRejection(t, err, StageOrder, reply.ErrCorrelationTimeout)
}

func TestOrderTypeAndSide(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	_, err := h.pipeline.Validate(context.Background(), intent("6E", "201706", 1, "BUY", "LIMIT"))
	rej := requireRejection(t, err, StageOrder, ErrUnsupportedOrderType)
	assert.Equal(t, "Only MARKET Orders are supported", rej.Reason)

	_, err = h.pipeline.Validate(context.Background(), intent("6E", "201706", 1, "HOLD", "MARKET"))
	rej = requireRejection(t, err, StageOrder, ErrUnknownSide)
	assert.Equal(t, "Unknown side received. Side: HOLD", rej.Reason)

	assert.Len(t, h.ledger.all(), 2)
}
