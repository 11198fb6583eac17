package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/events"
	"github.com/ismaiel54/futures-fix-trader/internal/fix"
	"github.com/ismaiel54/futures-fix-trader/internal/ledger"
	"github.com/ismaiel54/futures-fix-trader/internal/observability"
	"github.com/ismaiel54/futures-fix-trader/internal/order"
	"github.com/ismaiel54/futures-fix-trader/internal/refdata"
	"github.com/ismaiel54/futures-fix-trader/internal/reply"
	"github.com/ismaiel54/futures-fix-trader/internal/session"
)

// Replies are the correlators fed with account updates
type Replies struct {
	Positions  *reply.Correlator[events.AccountUpdate]
	Collateral *reply.Correlator[events.AccountUpdate]
}

// NewReplies creates both correlators with cfg
func NewReplies(cfg reply.Config, logger *zap.Logger) *Replies {
	return &Replies{
		Positions:  reply.New[events.AccountUpdate]("positions", cfg, logger),
		Collateral: reply.New[events.AccountUpdate]("collateral", cfg, logger),
	}
}

// HandleEvent routes account updates to the correlator for their kind.
// Subscribe it on events.ChannelAccount.
func (r *Replies) HandleEvent(ev events.Event) error {
	u, ok := ev.(events.AccountUpdate)
	if !ok {
		return nil
	}
	switch u.Kind {
	case events.AccountCollateral:
		r.Collateral.Deliver(u.InquiryID, u)
	case events.AccountPosition, events.AccountPositionAck:
		r.Positions.Deliver(u.InquiryID, u)
	default:
		return fmt.Errorf("unexpected account update kind %s", u.Kind)
	}
	return nil
}

// Pipeline checks intents stage by stage and stops at the first failure.
// A failed intent is marked INVALID in the ledger.
type Pipeline struct {
	securities refdata.Lookup
	engine     session.Engine
	replies    *Replies
	ledger     ledger.Ledger
	account    string
	logger     *zap.Logger
	now        func() time.Time
}

// NewPipeline creates a validation pipeline
func NewPipeline(securities refdata.Lookup, engine session.Engine, replies *Replies, l ledger.Ledger, account string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		securities: securities,
		engine:     engine,
		replies:    replies,
		ledger:     l,
		account:    account,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the clock used for maturity checks and message times
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Validate runs every stage for intent. On failure it returns a *Rejection
// after marking the intent INVALID.
func (p *Pipeline) Validate(ctx context.Context, intent order.Intent) (order.Validated, error) {
	p.logger.Info("validating intent",
		zap.String("new_order_id", intent.ID),
		zap.String("symbol", intent.Symbol),
		zap.String("maturity", intent.Maturity),
	)

	sec, rej := p.checkSymbol(ctx, intent)
	if rej != nil {
		return order.Validated{}, p.reject(ctx, intent, rej)
	}
	if rej := p.checkMaturity(intent); rej != nil {
		return order.Validated{}, p.reject(ctx, intent, rej)
	}
	if rej := p.checkPosition(ctx, intent, sec); rej != nil {
		return order.Validated{}, p.reject(ctx, intent, rej)
	}
	if rej := p.checkMargin(ctx, intent, sec); rej != nil {
		return order.Validated{}, p.reject(ctx, intent, rej)
	}
	side, rej := p.checkOrder(intent)
	if rej != nil {
		return order.Validated{}, p.reject(ctx, intent, rej)
	}

	return order.Validated{
		Intent:   intent,
		Side:     side,
		Quantity: intent.Quantity,
		Symbol:   sec.Symbol,
		Maturity: intent.Maturity,
	}, nil
}

func (p *Pipeline) reject(ctx context.Context, intent order.Intent, rej *Rejection) error {
	rej.IntentID = intent.ID
	observability.ValidationRejections.WithLabelValues(string(rej.Stage)).Inc()
	p.logger.Error("intent rejected",
		zap.String("new_order_id", intent.ID),
		zap.String("stage", string(rej.Stage)),
		zap.String("reason", rej.Reason),
	)

	err := p.ledger.UpdateStatus(ctx, ledger.Update{
		IntentID:    intent.ID,
		SubmittedAt: intent.SubmittedAt,
		Status:      ledger.StatusInvalid,
		Text:        rej.Text(),
	})
	if err != nil {
		p.logger.Error("failed to mark intent invalid",
			zap.String("new_order_id", intent.ID),
			zap.Error(err),
		)
	}
	return rej
}

func (p *Pipeline) checkSymbol(ctx context.Context, intent order.Intent) (*refdata.SecurityProfile, *Rejection) {
	sec, err := p.securities.Security(ctx, intent.Symbol)
	if err != nil {
		return nil, &Rejection{
			Stage:  StageSymbol,
			Err:    fmt.Errorf("%w: %w", ErrReferenceDataUnavailable, err),
			Reason: err.Error(),
		}
	}
	if sec == nil || !sec.TradingEnabled || sec.Symbol != intent.Symbol {
		return nil, &Rejection{
			Stage:  StageSymbol,
			Err:    ErrUnknownSymbol,
			Reason: "Symbol is unknown or not enabled for trading " + intent.Symbol,
		}
	}
	return sec, nil
}

func (p *Pipeline) checkMaturity(intent order.Intent) *Rejection {
	expiry, err := ExpiryDate(intent.Maturity)
	if err != nil {
		return &Rejection{
			Stage:  StageMaturity,
			Err:    fmt.Errorf("%w: %w", ErrExpiredMaturity, err),
			Reason: err.Error(),
		}
	}
	if Expired(expiry, p.now()) {
		return &Rejection{
			Stage:  StageMaturity,
			Err:    ErrExpiredMaturity,
			Reason: expiry.Format(time.DateOnly) + " maturity date has expired",
		}
	}
	return nil
}

func (p *Pipeline) checkPosition(ctx context.Context, intent order.Intent, sec *refdata.SecurityProfile) *Rejection {
	reqID := uuid.New().String()
	if err := p.engine.Send(ctx, fix.NewRequestForPositions(reqID, p.account, p.now())); err != nil {
		return &Rejection{Stage: StageQuantity, Err: err, Reason: "Failed to send requestForPositions: " + err.Error()}
	}

	position, otherSeen, err := p.awaitPosition(ctx, reqID, intent)
	if err != nil {
		if !errors.Is(err, reply.ErrCorrelationTimeout) {
			return &Rejection{Stage: StageQuantity, Err: err, Reason: err.Error()}
		}
		// No reply: a breach is only detectable from the quantity alone,
		// otherwise the position is taken as flat.
		p.logger.Warn("no reply to requestForPositions, assuming flat position",
			zap.String("new_order_id", intent.ID),
			zap.String("pos_req_id", reqID),
			zap.Bool("other_positions_seen", otherSeen),
		)
		if intent.Quantity > sec.MaxPosition {
			return &Rejection{
				Stage:  StageQuantity,
				Err:    fmt.Errorf("%w: %w", ErrMaxPositionExceeded, err),
				Reason: "No reply to requestForPositions. MaxPosition exceeded for " + sec.Symbol,
			}
		}
		return nil
	}

	side, err := fix.ParseSide(intent.Side)
	if err != nil {
		// rejected by the order stage
		return nil
	}

	exceeded := false
	switch side {
	case fix.SideBuy:
		exceeded = sec.MaxPosition < position+intent.Quantity
	case fix.SideSell:
		exceeded = sec.MaxPosition < abs(position-intent.Quantity)
	}
	if exceeded {
		return &Rejection{
			Stage:  StageQuantity,
			Err:    ErrMaxPositionExceeded,
			Reason: "MaxPosition exceeded for " + sec.Symbol,
		}
	}
	return nil
}

// awaitPosition returns the net position in the intent's contract. Reports
// for other contracts are skipped; an acknowledgement without reports means flat.
func (p *Pipeline) awaitPosition(ctx context.Context, reqID string, intent order.Intent) (int64, bool, error) {
	otherSeen := false
	for {
		u, err := p.replies.Positions.Await(ctx, reqID)
		if err != nil {
			return 0, otherSeen, err
		}

		switch u.Kind {
		case events.AccountPositionAck:
			if u.TotalReports == 0 {
				return 0, otherSeen, nil
			}
		case events.AccountPosition:
			if u.Symbol == intent.Symbol && u.Maturity == intent.Maturity {
				return u.NetPosition(), otherSeen, nil
			}
			otherSeen = true
			p.logger.Debug("position report for other contract",
				zap.String("pos_req_id", reqID),
				zap.String("symbol", u.Symbol),
				zap.String("maturity", u.Maturity),
			)
		}
	}
}

func (p *Pipeline) checkMargin(ctx context.Context, intent order.Intent, sec *refdata.SecurityProfile) *Rejection {
	inquiryID := uuid.New().String()
	if err := p.engine.Send(ctx, fix.NewCollateralInquiry(inquiryID, p.account, p.now())); err != nil {
		return &Rejection{Stage: StageOrder, Err: err, Reason: "Failed to send collateralInquiry: " + err.Error()}
	}

	u, err := p.replies.Collateral.Await(ctx, inquiryID)
	if err != nil {
		return &Rejection{Stage: StageOrder, Err: err, Reason: "No reply to collateralInquiry"}
	}

	if !strings.EqualFold(u.Currency, sec.MarginCurrency) {
		return &Rejection{
			Stage:  StageOrder,
			Err:    ErrMarginCurrencyMismatch,
			Reason: "Margin Currency does not match Balance Currency for " + sec.Symbol,
		}
	}
	if u.Balance.Mul(sec.RiskFactor).LessThan(sec.MarginAmount) {
		return &Rejection{
			Stage: StageOrder,
			Err:   ErrMarginExceeded,
			Reason: fmt.Sprintf("Margin exceeded for %s. Balance: %s, RF: %s, Margin: %s",
				sec.Symbol, u.Balance, sec.RiskFactor, sec.MarginAmount),
		}
	}
	return nil
}

func (p *Pipeline) checkOrder(intent order.Intent) (fix.Side, *Rejection) {
	ordType, err := fix.ParseOrdType(intent.OrdType)
	if err != nil || ordType != fix.OrdTypeMarket {
		return 0, &Rejection{Stage: StageOrder, Err: ErrUnsupportedOrderType, Reason: "Only MARKET Orders are supported"}
	}
	side, err := fix.ParseSide(intent.Side)
	if err != nil {
		return 0, &Rejection{Stage: StageOrder, Err: ErrUnknownSide, Reason: "Unknown side received. Side: " + intent.Side}
	}
	return side, nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
