package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/events"
	"github.com/ismaiel54/futures-fix-trader/internal/fix"
	"github.com/ismaiel54/futures-fix-trader/internal/ledger"
	"github.com/ismaiel54/futures-fix-trader/internal/order"
	"github.com/ismaiel54/futures-fix-trader/internal/reply"
	"github.com/ismaiel54/futures-fix-trader/internal/session"
)

// Orders correlates order updates by ClOrdID
type Orders struct {
	*reply.Correlator[events.OrderUpdate]
}

// NewOrders creates the order update correlator
func NewOrders(cfg reply.Config, logger *zap.Logger) *Orders {
	return &Orders{reply.New[events.OrderUpdate]("orders", cfg, logger)}
}

// HandleEvent delivers order updates. Subscribe it on events.ChannelOrder.
func (o *Orders) HandleEvent(ev events.Event) error {
	if u, ok := ev.(events.OrderUpdate); ok {
		o.Deliver(u.ClOrdID, u)
	}
	return nil
}

// Tracker sends validated orders and waits for their execution reports
type Tracker struct {
	engine  session.Engine
	orders  *Orders
	ledger  ledger.Ledger
	account string
	logger  *zap.Logger
	now     func() time.Time
}

// NewTracker creates a submission tracker
func NewTracker(engine session.Engine, orders *Orders, l ledger.Ledger, account string, logger *zap.Logger) *Tracker {
	return &Tracker{
		engine:  engine,
		orders:  orders,
		ledger:  l,
		account: account,
		logger:  logger,
		now:     time.Now,
	}
}

// Submit sends v as a market order and waits for it to be filled or rejected.
// The ledger record moves from PENDING to the received status. On timeout the
// record stays PENDING and the error matches reply.ErrCorrelationTimeout.
func (t *Tracker) Submit(ctx context.Context, v order.Validated) (order.Trade, error) {
	newOrder := fix.BuyFutureMarketOrder
	if v.Side == fix.SideSell {
		newOrder = fix.SellFutureMarketOrder
	}
	o := newOrder(v.Symbol, v.Maturity, v.Quantity)
	o.ClOrdID = uuid.New().String()
	o.Account = t.account

	logger := t.logger.With(
		zap.String("new_order_id", v.Intent.ID),
		zap.String("cl_ord_id", o.ClOrdID),
	)

	if err := t.engine.Send(ctx, fix.NewOrderSingle(o, t.now())); err != nil {
		logger.Error("failed to send order", zap.Error(err))
		if lerr := t.ledger.UpdateStatus(ctx, ledger.Update{
			IntentID:    v.Intent.ID,
			SubmittedAt: v.Intent.SubmittedAt,
			Status:      ledger.StatusInvalid,
			Text:        fmt.Sprintf("Error send_order NewOrderId: %s. %s", v.Intent.ID, err),
		}); lerr != nil {
			logger.Error("failed to record send failure", zap.Error(lerr))
		}
		return order.Trade{}, fmt.Errorf("failed to send order %s: %w", o.ClOrdID, err)
	}
	logger.Info("order sent",
		zap.String("symbol", o.Symbol),
		zap.String("side", o.Side.String()),
		zap.Int64("quantity", o.Quantity),
	)

	update, err := t.awaitTerminal(ctx, o.ClOrdID)
	if err != nil {
		logger.Error("no confirmation for order", zap.Error(err))
		return order.Trade{}, fmt.Errorf("order %s not confirmed: %w", o.ClOrdID, err)
	}

	trade := order.Trade{
		OrderID:  o.ClOrdID,
		Symbol:   o.Symbol,
		Maturity: o.Maturity,
		Quantity: o.Quantity,
		Type:     o.Type,
		Side:     o.Side,
		Status:   update.Status,
	}
	if update.Status == fix.OrderStatusFilled && update.Detail != nil {
		trade.Price = decimal.NewNullDecimal(update.Detail.AvgPx)
	}

	status := ledger.StatusFilled
	if update.Status != fix.OrderStatusFilled {
		status = ledger.StatusRejected
	}

	err = t.ledger.UpdateStatus(ctx, ledger.Update{
		IntentID:    v.Intent.ID,
		SubmittedAt: v.Intent.SubmittedAt,
		Status:      status,
		Text:        fmt.Sprintf("Confirmed newOrderId: %s. %s", v.Intent.ID, trade),
		ClOrdID:     o.ClOrdID,
	})
	if err != nil {
		logger.Error("failed to record confirmation", zap.Error(err))
		if !errors.Is(err, ledger.ErrUpdateFailed) {
			err = fmt.Errorf("%w: %w", ledger.ErrUpdateFailed, err)
		}
		return trade, err
	}

	logger.Info("order confirmed", zap.String("status", update.Status.String()))
	return trade, nil
}

// Cancel requests cancellation of orig and waits for the Cancelled or
// CancelRejected update
func (t *Tracker) Cancel(ctx context.Context, orig fix.Order) (events.OrderUpdate, error) {
	clOrdID := uuid.New().String()
	if err := t.engine.Send(ctx, fix.NewOrderCancelRequest(clOrdID, orig, t.now())); err != nil {
		return events.OrderUpdate{}, fmt.Errorf("failed to send cancel for %s: %w", orig.ClOrdID, err)
	}

	for {
		u, err := t.orders.Await(ctx, clOrdID)
		if err != nil {
			return events.OrderUpdate{}, fmt.Errorf("cancel %s not confirmed: %w", orig.ClOrdID, err)
		}
		if u.Status == fix.OrderStatusCancelled || u.Status == fix.OrderStatusCancelRejected {
			t.logger.Info("cancel answered",
				zap.String("cl_ord_id", clOrdID),
				zap.String("orig_cl_ord_id", orig.ClOrdID),
				zap.String("status", u.Status.String()),
			)
			return u, nil
		}
	}
}

func (t *Tracker) awaitTerminal(ctx context.Context, clOrdID string) (events.OrderUpdate, error) {
	for {
		u, err := t.orders.Await(ctx, clOrdID)
		if err != nil {
			return events.OrderUpdate{}, err
		}
		switch u.Status {
		case fix.OrderStatusFilled, fix.OrderStatusRejected:
			return u, nil
		}
		t.logger.Debug("order update",
			zap.String("cl_ord_id", clOrdID),
			zap.String("status", u.Status.String()),
		)
	}
}
