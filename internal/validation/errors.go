package validation

import "errors"

var (
	ErrUnknownSymbol            = errors.New("unknown symbol")
	ErrExpiredMaturity          = errors.New("expired maturity")
	ErrMaxPositionExceeded      = errors.New("max position exceeded")
	ErrMarginCurrencyMismatch   = errors.New("margin currency mismatch")
	ErrMarginExceeded           = errors.New("margin exceeded")
	ErrUnsupportedOrderType     = errors.New("unsupported order type")
	ErrUnknownSide              = errors.New("unknown side")
	ErrReferenceDataUnavailable = errors.New("reference data unavailable")
)

// Stage names the validation step that rejected an intent
type Stage string

const (
	StageSymbol   Stage = "validate_symbol"
	StageMaturity Stage = "validate_maturity"
	StageQuantity Stage = "validate_quantity"
	StageOrder    Stage = "validate_order"
)

// Rejection is returned for an intent that failed validation. It unwraps to
// one of the sentinels above, or to a correlation timeout.
type Rejection struct {
	Stage    Stage
	IntentID string
	Err      error
	Reason   string
}

func (r *Rejection) Error() string {
	return string(r.Stage) + ": " + r.Reason
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Text is the status text written to the ledger
func (r *Rejection) Text() string {
	prefix := "Error"
	if errors.Is(r.Err, ErrReferenceDataUnavailable) {
		prefix = "ClientError"
	}
	return prefix + " " + string(r.Stage) + " NewOrderId: " + r.IntentID + ". " + r.Reason
}
