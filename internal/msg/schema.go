package msg

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ismaiel54/futures-fix-trader/internal/events"
	"github.com/ismaiel54/futures-fix-trader/internal/order"
)

// Topic names
const (
	TopicOrdersIntents = "orders.intents"
	TopicFIXEvents     = "fix.events"
	TopicOrdersStatus  = "orders.status"
)

// IntentMsg represents a pending order intent
type IntentMsg struct {
	EventID         string `json:"event_id"`
	NewOrderID      string `json:"new_order_id"`
	TransactionTime string `json:"transaction_time"`
	Symbol          string `json:"symbol"`
	Maturity        string `json:"maturity"`
	Quantity        int64  `json:"quantity"`
	Side            string `json:"side"`     // "BUY" or "SELL"
	OrdType         string `json:"ord_type"` // "MARKET"
	TsUnixMillis    int64  `json:"ts_unix_millis"`
}

// Validate checks the fields every intent must carry
func (m IntentMsg) Validate() error {
	if m.NewOrderID == "" {
		return fmt.Errorf("new_order_id cannot be empty")
	}
	if m.Symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	return nil
}

// Intent converts the message into an order intent
func (m IntentMsg) Intent() order.Intent {
	submittedAt := m.TransactionTime
	if submittedAt == "" {
		submittedAt = time.UnixMilli(m.TsUnixMillis).UTC().Format(time.RFC3339Nano)
	}
	return order.Intent{
		ID:          m.NewOrderID,
		SubmittedAt: submittedAt,
		Symbol:      m.Symbol,
		Maturity:    m.Maturity,
		Quantity:    m.Quantity,
		Side:        m.Side,
		OrdType:     m.OrdType,
	}
}

// StatusMsg represents a ledger status change
type StatusMsg struct {
	EventID      string `json:"event_id"`
	NewOrderID   string `json:"new_order_id"`
	Status       string `json:"status"` // "INVALID", "FILLED", "REJECTED"
	ClOrdID      string `json:"cl_ord_id,omitempty"`
	Text         string `json:"text"`
	TsUnixMillis int64  `json:"ts_unix_millis"`
}

// EventMsg represents a domain event decoded from FIX traffic
type EventMsg struct {
	EventID      string  `json:"event_id"`
	Channel      string  `json:"channel"`
	Key          string  `json:"key"`
	Status       string  `json:"status,omitempty"`
	OrigClOrdID  string  `json:"orig_cl_ord_id,omitempty"`
	Symbol       string  `json:"symbol,omitempty"`
	Maturity     string  `json:"maturity,omitempty"`
	Side         string  `json:"side,omitempty"`
	Quantity     int64   `json:"quantity,omitempty"`
	Price        string  `json:"price,omitempty"`
	Kind         string  `json:"kind,omitempty"`
	Balance      string  `json:"balance,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	LongQty      int64   `json:"long_qty,omitempty"`
	ShortQty     int64   `json:"short_qty,omitempty"`
	Observed     float64 `json:"observed_seconds,omitempty"`
	Threshold    float64 `json:"threshold_seconds,omitempty"`
	Text         string  `json:"text,omitempty"`
	TsUnixMillis int64   `json:"ts_unix_millis"`
}

// NewEventMsg flattens ev for publication
func NewEventMsg(ev events.Event, now time.Time) EventMsg {
	m := EventMsg{
		EventID:      uuid.New().String(),
		Channel:      string(ev.Channel()),
		TsUnixMillis: now.UnixMilli(),
	}

	switch e := ev.(type) {
	case events.OrderUpdate:
		m.Key = e.ClOrdID
		m.Status = e.Status.String()
		m.OrigClOrdID = e.OrigClOrdID
		m.Text = e.Text
		if e.Detail != nil {
			m.Symbol = e.Detail.Symbol
			m.Maturity = e.Detail.Maturity
			m.Side = e.Detail.Side.String()
			m.Quantity = e.Detail.Quantity
			m.Price = e.Detail.AvgPx.String()
		}
	case events.AccountUpdate:
		m.Key = e.InquiryID
		m.Kind = e.Kind.String()
		switch e.Kind {
		case events.AccountCollateral:
			m.Balance = e.Balance.String()
			m.Currency = e.Currency
		default:
			m.Symbol = e.Symbol
			m.Maturity = e.Maturity
			m.LongQty = e.LongQty
			m.ShortQty = e.ShortQty
		}
	case events.LatencyBreach:
		m.Key = e.Category + ":" + e.Key
		m.Observed = e.ObservedSeconds
		m.Threshold = e.ThresholdSeconds
	}
	return m
}
