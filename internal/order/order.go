package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ismaiel54/futures-fix-trader/internal/fix"
)

// Intent is an order request waiting for validation. Side and OrdType are
// kept as received so that unsupported values can be reported.
type Intent struct {
	ID          string `json:"new_order_id"`
	SubmittedAt string `json:"transaction_time"`
	Symbol      string `json:"symbol"`
	Maturity    string `json:"maturity"`
	Quantity    int64  `json:"quantity"`
	Side        string `json:"side"`
	OrdType     string `json:"ord_type"`
}

// Validated is an intent that passed every validation stage
type Validated struct {
	Intent   Intent
	Side     fix.Side
	Quantity int64
	Symbol   string
	Maturity string
}

// Trade is the confirmed result of a submission
type Trade struct {
	OrderID  string
	Symbol   string
	Maturity string
	Quantity int64
	Type     fix.OrdType
	Side     fix.Side
	Status   fix.OrderStatus
	Price    decimal.NullDecimal
}

func (t Trade) String() string {
	price := "n/a"
	if t.Price.Valid {
		price = t.Price.Decimal.String()
	}
	return fmt.Sprintf("ClientOrderId: %s. Status: %s. Side: %s. Qty: %d. Symbol: %s. Maturity: %s. Price: %s",
		t.OrderID, t.Status, t.Side, t.Quantity, t.Symbol, t.Maturity, price)
}
