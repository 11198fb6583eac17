package events

import (
	"github.com/shopspring/decimal"

	"github.com/ismaiel54/futures-fix-trader/internal/fix"
)

// Channel names a category of domain events
type Channel string

const (
	ChannelOrder   Channel = "order"
	ChannelAccount Channel = "account"
	ChannelLatency Channel = "latency"
)

// Event is implemented by LatencyBreach, OrderUpdate and AccountUpdate only
type Event interface {
	Channel() Channel
	isEvent()
}

// LatencyBreach is raised when a matched request/response pair took longer than the threshold
type LatencyBreach struct {
	Category         string
	Key              string
	ThresholdSeconds float64
	ObservedSeconds  float64
}

func (LatencyBreach) Channel() Channel { return ChannelLatency }
func (LatencyBreach) isEvent()         {}

// OrderDetail is the order description carried by execution reports
type OrderDetail struct {
	Symbol   string
	Maturity string
	Side     fix.Side
	Quantity int64
	AvgPx    decimal.Decimal
}

// OrderUpdate reports a change in an order's lifecycle. Detail is nil for
// CancelRejected updates, which describe no order.
type OrderUpdate struct {
	ClOrdID     string
	OrigClOrdID string
	Status      fix.OrderStatus
	Text        string
	Detail      *OrderDetail
}

func (OrderUpdate) Channel() Channel { return ChannelOrder }
func (OrderUpdate) isEvent()         {}

// AccountKind distinguishes the account report variants
type AccountKind uint8

const (
	AccountCollateral AccountKind = iota + 1
	AccountPosition
	AccountPositionAck
)

func (k AccountKind) String() string {
	switch k {
	case AccountCollateral:
		return "COLLATERAL"
	case AccountPosition:
		return "POSITION"
	case AccountPositionAck:
		return "POSITION_ACK"
	}
	return "UNKNOWN"
}

// AccountUpdate reports collateral or position state for an inquiry.
// Collateral updates fill Balance and Currency; position updates fill the
// instrument and quantity fields. A PositionAck carries zeroed quantities
// and the number of reports that follow it.
type AccountUpdate struct {
	InquiryID string
	Account   string
	Kind      AccountKind

	Balance  decimal.Decimal
	Currency string

	Symbol         string
	Maturity       string
	LongQty        int64
	ShortQty       int64
	PositionAmount decimal.Decimal
	TotalReports   int64
}

func (AccountUpdate) Channel() Channel { return ChannelAccount }
func (AccountUpdate) isEvent()         {}

// NetPosition returns long minus short quantity
func (a AccountUpdate) NetPosition() int64 {
	return a.LongQty - a.ShortQty
}
