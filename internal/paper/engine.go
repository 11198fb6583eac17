package paper

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/chaos"
	"github.com/ismaiel54/futures-fix-trader/internal/fix"
	"github.com/ismaiel54/futures-fix-trader/internal/session"
)

// Position is an open position held by the paper account
type Position struct {
	Symbol   string
	Maturity string
	Long     int64
	Short    int64
}

// Options configures the paper counterparty
type Options struct {
	Account   string
	Balance   decimal.Decimal
	Currency  string
	Positions []Position
	// FillPrice is reported as AvgPx on fills; zero means the limit price or 1
	FillPrice decimal.Decimal
	// RejectSymbols are answered with OrdStatus Rejected
	RejectSymbols []string
}

// Engine is an in-process counterparty implementing session.Engine.
// Replies are delivered to the observer on a separate goroutine.
type Engine struct {
	opts     Options
	observer session.Observer
	chaos    *chaos.Chaos
	logger   *zap.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	seq    int64
	closed atomic.Bool

	mu   sync.Mutex
	sent []*fix.Message
}

// New creates a paper engine replying to observer. c may be nil.
func New(opts Options, observer session.Observer, c *chaos.Chaos, logger *zap.Logger) *Engine {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		opts:     opts,
		observer: observer,
		chaos:    c,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connected reports true until Close
func (e *Engine) Connected() bool {
	return !e.closed.Load()
}

// Send records m and schedules the counterparty's replies
func (e *Engine) Send(_ context.Context, m *fix.Message) error {
	if e.closed.Load() {
		return session.ErrNotConnected
	}

	out := m.Clone()
	out.SetIfAbsent(fix.TagMsgSeqNum, strconv.FormatInt(atomic.AddInt64(&e.seq, 1), 10))
	out.SetIfAbsent(fix.TagSendingTime, fix.FormatUTCTimestamp(e.now()))

	e.mu.Lock()
	e.sent = append(e.sent, out)
	e.mu.Unlock()

	e.observer.OnOutbound(out)

	replies := e.replies(out)
	if len(replies) == 0 {
		return nil
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for _, r := range replies {
			if err := e.chaos.MaybeDelay(e.ctx, r.MsgType()); err != nil {
				return
			}
			if e.chaos.MaybeDrop(r.MsgType()) {
				continue
			}
			e.observer.OnInbound(r)
		}
	}()
	return nil
}

// Sent returns copies of every message sent so far
func (e *Engine) Sent() []*fix.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*fix.Message, len(e.sent))
	copy(out, e.sent)
	return out
}

// SentOfType returns sent messages with the given MsgType
func (e *Engine) SentOfType(msgType string) []*fix.Message {
	var out []*fix.Message
	for _, m := range e.Sent() {
		if m.MsgType() == msgType {
			out = append(out, m)
		}
	}
	return out
}

// Close stops pending replies and waits for them to finish
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) reply(msgType string) *fix.Message {
	now := fix.FormatUTCTimestamp(e.now())
	m := fix.NewMessage(msgType).
		Set(fix.TagMsgSeqNum, strconv.FormatInt(atomic.AddInt64(&e.seq, 1), 10)).
		Set(fix.TagSendingTime, now).
		Set(fix.TagTransactTime, now)
	if e.opts.Account != "" {
		m.Set(fix.TagAccount, e.opts.Account)
	}
	return m
}

func (e *Engine) replies(m *fix.Message) []*fix.Message {
	switch m.MsgType() {
	case fix.MsgTypeNewOrderSingle:
		return e.executeOrder(m)
	case fix.MsgTypeOrderCancelRequest:
		return []*fix.Message{e.cancelOrder(m)}
	case fix.MsgTypeCollateralInquiry:
		return []*fix.Message{e.reply(fix.MsgTypeCollateralReport).
			Set(fix.TagCollInquiryID, m.Get(fix.TagCollInquiryID)).
			Set(fix.TagCashOutstanding, e.opts.Balance.String()).
			Set(fix.TagCurrency, e.opts.Currency)}
	case fix.MsgTypeRequestForPositions:
		return e.positions(m)
	}
	e.logger.Debug("paper engine ignoring message", zap.String("msg_type", m.MsgType()))
	return nil
}

func (e *Engine) executeOrder(m *fix.Message) []*fix.Message {
	report := func(status fix.OrderStatus) *fix.Message {
		r := e.reply(fix.MsgTypeExecutionReport).
			Set(fix.TagClOrdID, m.Get(fix.TagClOrdID)).
			Set(fix.TagOrdStatus, status.Code()).
			Set(fix.TagSymbol, m.Get(fix.TagSymbol)).
			Set(fix.TagMaturityMonthYear, m.Get(fix.TagMaturityMonthYear)).
			Set(fix.TagSide, m.Get(fix.TagSide)).
			Set(fix.TagOrderQty, m.Get(fix.TagOrderQty)).
			Set(fix.TagAvgPx, "0")
		return r
	}

	for _, s := range e.opts.RejectSymbols {
		if s == m.Get(fix.TagSymbol) {
			return []*fix.Message{report(fix.OrderStatusRejected).Set(fix.TagText, "rejected by paper engine")}
		}
	}

	price := e.opts.FillPrice
	if price.IsZero() {
		if p, ok := m.Decimal(fix.TagPrice); ok {
			price = p
		} else {
			price = decimal.NewFromInt(1)
		}
	}
	filled := report(fix.OrderStatusFilled).
		Set(fix.TagAvgPx, price.String()).
		Set(fix.TagCumQty, m.Get(fix.TagOrderQty))
	return []*fix.Message{report(fix.OrderStatusNew), filled}
}

func (e *Engine) cancelOrder(m *fix.Message) *fix.Message {
	return e.reply(fix.MsgTypeExecutionReport).
		Set(fix.TagClOrdID, m.Get(fix.TagClOrdID)).
		Set(fix.TagOrigClOrdID, m.Get(fix.TagOrigClOrdID)).
		Set(fix.TagOrdStatus, fix.OrderStatusCancelled.Code()).
		Set(fix.TagSymbol, m.Get(fix.TagSymbol)).
		Set(fix.TagMaturityMonthYear, m.Get(fix.TagMaturityMonthYear)).
		Set(fix.TagSide, m.Get(fix.TagSide)).
		Set(fix.TagOrderQty, m.Get(fix.TagOrderQty))
}

func (e *Engine) positions(m *fix.Message) []*fix.Message {
	reqID := m.Get(fix.TagPosReqID)
	if len(e.opts.Positions) == 0 {
		return []*fix.Message{e.reply(fix.MsgTypeRequestForPositionsAck).
			Set(fix.TagPosReqID, reqID).
			Set(fix.TagTotalNumPosReps, "0").
			Set(fix.TagPosReqResult, "2")}
	}

	out := make([]*fix.Message, 0, len(e.opts.Positions))
	for _, p := range e.opts.Positions {
		out = append(out, e.reply(fix.MsgTypePositionReport).
			Set(fix.TagPosReqID, reqID).
			Set(fix.TagSymbol, p.Symbol).
			Set(fix.TagMaturityMonthYear, p.Maturity).
			Set(fix.TagLongQty, strconv.FormatInt(p.Long, 10)).
			Set(fix.TagShortQty, strconv.FormatInt(p.Short, 10)).
			Set(fix.TagPosAmt, "0"))
	}
	return out
}
