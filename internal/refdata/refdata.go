package refdata

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ismaiel54/futures-fix-trader/internal/config"
)

// ErrUnavailable is returned when the reference data source cannot be reached
var ErrUnavailable = errors.New("reference data unavailable")

// SecurityProfile holds the trading and risk settings for a futures symbol
type SecurityProfile struct {
	Symbol         string          `json:"symbol"`
	TradingEnabled bool            `json:"trading_enabled"`
	RiskFactor     decimal.Decimal `json:"risk_factor"`
	MarginAmount   decimal.Decimal `json:"margin_amount"`
	MarginCurrency string          `json:"margin_currency"`
	MaxPosition    int64           `json:"max_position"`
}

// Lookup resolves security profiles. A missing symbol yields (nil, nil).
type Lookup interface {
	Security(ctx context.Context, symbol string) (*SecurityProfile, error)
}

// Static is an in-memory Lookup
type Static struct {
	mu       sync.RWMutex
	profiles map[string]SecurityProfile
}

// NewStatic creates a lookup over the given profiles
func NewStatic(profiles ...SecurityProfile) *Static {
	s := &Static{profiles: make(map[string]SecurityProfile, len(profiles))}
	for _, p := range profiles {
		s.profiles[p.Symbol] = p
	}
	return s
}

// FromConfig builds a static lookup from configured securities
func FromConfig(securities []config.SecurityConfig) *Static {
	profiles := make([]SecurityProfile, 0, len(securities))
	for _, sc := range securities {
		profiles = append(profiles, SecurityProfile{
			Symbol:         sc.Symbol,
			TradingEnabled: sc.TradingEnabled,
			RiskFactor:     decimal.NewFromFloat(sc.RiskFactor),
			MarginAmount:   decimal.NewFromFloat(sc.MarginAmount),
			MarginCurrency: strings.ToUpper(sc.MarginCurrency),
			MaxPosition:    sc.MaxPosition,
		})
	}
	return NewStatic(profiles...)
}

// Security returns a copy of the profile for symbol
func (s *Static) Security(_ context.Context, symbol string) (*SecurityProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[symbol]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Put adds or replaces a profile
func (s *Static) Put(p SecurityProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Symbol] = p
}
