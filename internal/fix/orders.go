package fix

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const securityTypeFuture = "FUT"

// Order describes a futures order before it is put on the wire
type Order struct {
	ClOrdID  string
	Account  string
	Symbol   string
	Maturity string
	Side     Side
	Type     OrdType
	Quantity int64
	Price    decimal.Decimal
}

// BuyFutureMarketOrder describes a market buy of quantity contracts
func BuyFutureMarketOrder(symbol, maturity string, quantity int64) Order {
	return Order{Symbol: symbol, Maturity: maturity, Side: SideBuy, Type: OrdTypeMarket, Quantity: quantity}
}

// SellFutureMarketOrder describes a market sell of quantity contracts
func SellFutureMarketOrder(symbol, maturity string, quantity int64) Order {
	return Order{Symbol: symbol, Maturity: maturity, Side: SideSell, Type: OrdTypeMarket, Quantity: quantity}
}

// NewOrderSingle builds a NewOrderSingle (35=D) for o
func NewOrderSingle(o Order, now time.Time) *Message {
	m := NewMessage(MsgTypeNewOrderSingle).
		Set(TagClOrdID, o.ClOrdID).
		Set(TagSymbol, o.Symbol).
		Set(TagSecurityType, securityTypeFuture).
		Set(TagMaturityMonthYear, o.Maturity).
		Set(TagSide, o.Side.Code()).
		Set(TagOrdType, o.Type.Code()).
		Set(TagOrderQty, strconv.FormatInt(o.Quantity, 10)).
		Set(TagTimeInForce, "0").
		Set(TagTransactTime, FormatUTCTimestamp(now))
	if o.Account != "" {
		m.Set(TagAccount, o.Account)
	}
	if o.Type == OrdTypeLimit {
		m.Set(TagPrice, o.Price.String())
	}
	return m
}

// NewOrderCancelRequest builds an OrderCancelRequest (35=F) for a previously sent order
func NewOrderCancelRequest(clOrdID string, orig Order, now time.Time) *Message {
	m := NewMessage(MsgTypeOrderCancelRequest).
		Set(TagClOrdID, clOrdID).
		Set(TagOrigClOrdID, orig.ClOrdID).
		Set(TagSymbol, orig.Symbol).
		Set(TagSecurityType, securityTypeFuture).
		Set(TagMaturityMonthYear, orig.Maturity).
		Set(TagSide, orig.Side.Code()).
		Set(TagOrderQty, strconv.FormatInt(orig.Quantity, 10)).
		Set(TagTransactTime, FormatUTCTimestamp(now))
	if orig.Account != "" {
		m.Set(TagAccount, orig.Account)
	}
	return m
}

// NewCollateralInquiry builds a CollateralInquiry (35=BB)
func NewCollateralInquiry(collInquiryID, account string, now time.Time) *Message {
	m := NewMessage(MsgTypeCollateralInquiry).
		Set(TagCollInquiryID, collInquiryID).
		Set(TagTransactTime, FormatUTCTimestamp(now))
	if account != "" {
		m.Set(TagAccount, account)
	}
	return m
}

// NewRequestForPositions builds a RequestForPositions (35=AN) for open positions
func NewRequestForPositions(posReqID, account string, now time.Time) *Message {
	m := NewMessage(MsgTypeRequestForPositions).
		Set(TagPosReqID, posReqID).
		Set(TagPosReqType, "0").
		Set(TagClearingBusDate, now.UTC().Format("20060102")).
		Set(TagTransactTime, FormatUTCTimestamp(now))
	if account != "" {
		m.Set(TagAccount, account)
	}
	return m
}
