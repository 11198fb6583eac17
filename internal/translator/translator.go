package translator

import (
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/correlation"
	"github.com/ismaiel54/futures-fix-trader/internal/events"
	"github.com/ismaiel54/futures-fix-trader/internal/fix"
	"github.com/ismaiel54/futures-fix-trader/internal/observability"
)

// Publisher dispatches decoded events
type Publisher interface {
	Publish(channel events.Channel, ev events.Event)
}

// Translator times FIX traffic and turns inbound reports into domain events
type Translator struct {
	store     *correlation.Store
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a translator feeding store and publishing on publisher
func New(store *correlation.Store, publisher Publisher, logger *zap.Logger) *Translator {
	return &Translator{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Key derives the correlation category, key and timestamp of m.
// ok is false for message types that are not correlated.
func Key(m *fix.Message) (category correlation.Category, key, timestamp string, ok bool) {
	msgType := m.MsgType()
	switch msgType {
	case fix.MsgTypeNewOrderSingle, fix.MsgTypeOrderCancelRequest,
		fix.MsgTypeExecutionReport, fix.MsgTypeOrderCancelReject:
		return correlation.CategoryOrder, m.Get(fix.TagClOrdID), transactTime(m), true
	case fix.MsgTypeCollateralInquiry, fix.MsgTypeCollateralReport, fix.MsgTypeCollateralInquiryAck:
		return correlation.CategoryCollateral, m.Get(fix.TagCollInquiryID), transactTime(m), true
	case fix.MsgTypeRequestForPositions, fix.MsgTypeRequestForPositionsAck, fix.MsgTypePositionReport:
		return correlation.CategoryPosition, m.Get(fix.TagPosReqID), transactTime(m), true
	}
	if fix.IsAdmin(msgType) {
		return correlation.CategorySession, msgType + ":" + m.Get(fix.TagMsgSeqNum), m.Get(fix.TagSendingTime), true
	}
	return "", "", "", false
}

func transactTime(m *fix.Message) string {
	if ts, ok := m.Lookup(fix.TagTransactTime); ok {
		return ts
	}
	return m.Get(fix.TagSendingTime)
}

// OnOutbound records a message about to be sent
func (t *Translator) OnOutbound(m *fix.Message) {
	category, key, ts, ok := Key(m)
	if !ok {
		t.logger.Debug("outbound message not correlated", zap.String("msg_type", m.MsgType()))
		return
	}
	t.store.RecordRequest(category, key, t.orNow(ts))
}

// OnInbound times a received message and publishes the event it decodes to.
// The decoded event is returned; ok is false for types that produce no event.
func (t *Translator) OnInbound(m *fix.Message) (events.Event, bool) {
	msgType := m.MsgType()
	observability.InboundMessages.WithLabelValues(msgType).Inc()

	if category, key, ts, ok := Key(m); ok {
		t.store.RecordResponse(category, key, t.orNow(ts))
	} else {
		t.logger.Debug("inbound message not correlated", zap.String("msg_type", msgType))
	}

	ev, ok := t.decode(m)
	if !ok {
		return nil, false
	}
	t.publisher.Publish(ev.Channel(), ev)
	return ev, true
}

func (t *Translator) orNow(ts string) string {
	if ts == "" {
		return fix.FormatUTCTimestamp(t.now())
	}
	return ts
}

func (t *Translator) decode(m *fix.Message) (events.Event, bool) {
	switch m.MsgType() {
	case fix.MsgTypeExecutionReport:
		return t.decodeExecutionReport(m)
	case fix.MsgTypeOrderCancelReject:
		return events.OrderUpdate{
			ClOrdID:     m.Get(fix.TagClOrdID),
			OrigClOrdID: m.Get(fix.TagOrigClOrdID),
			Status:      fix.OrderStatusCancelRejected,
			Text:        m.Get(fix.TagText),
		}, true
	case fix.MsgTypeCollateralReport:
		balance, _ := m.Decimal(fix.TagCashOutstanding)
		return events.AccountUpdate{
			InquiryID: m.Get(fix.TagCollInquiryID),
			Account:   m.Get(fix.TagAccount),
			Kind:      events.AccountCollateral,
			Balance:   balance,
			Currency:  m.Get(fix.TagCurrency),
		}, true
	case fix.MsgTypePositionReport:
		long, _ := m.Int(fix.TagLongQty)
		short, _ := m.Int(fix.TagShortQty)
		amount, _ := m.Decimal(fix.TagPosAmt)
		return events.AccountUpdate{
			InquiryID:      m.Get(fix.TagPosReqID),
			Account:        m.Get(fix.TagAccount),
			Kind:           events.AccountPosition,
			Symbol:         m.Get(fix.TagSymbol),
			Maturity:       m.Get(fix.TagMaturityMonthYear),
			LongQty:        long,
			ShortQty:       short,
			PositionAmount: amount,
		}, true
	case fix.MsgTypeRequestForPositionsAck:
		total, _ := m.Int(fix.TagTotalNumPosReps)
		return events.AccountUpdate{
			InquiryID:    m.Get(fix.TagPosReqID),
			Account:      m.Get(fix.TagAccount),
			Kind:         events.AccountPositionAck,
			TotalReports: total,
		}, true
	}
	return nil, false
}

func (t *Translator) decodeExecutionReport(m *fix.Message) (events.Event, bool) {
	status, ok := fix.OrderStatusFromCode(m.Get(fix.TagOrdStatus))
	if !ok {
		t.logger.Debug("ignoring execution report status",
			zap.String("cl_ord_id", m.Get(fix.TagClOrdID)),
			zap.String("ord_status", m.Get(fix.TagOrdStatus)),
		)
		return nil, false
	}

	side, _ := fix.SideFromCode(m.Get(fix.TagSide))
	qty, _ := m.Int(fix.TagOrderQty)
	avgPx, _ := m.Decimal(fix.TagAvgPx)

	update := events.OrderUpdate{
		ClOrdID: m.Get(fix.TagClOrdID),
		Status:  status,
		Text:    m.Get(fix.TagText),
		Detail: &events.OrderDetail{
			Symbol:   m.Get(fix.TagSymbol),
			Maturity: m.Get(fix.TagMaturityMonthYear),
			Side:     side,
			Quantity: qty,
			AvgPx:    avgPx,
		},
	}
	if status == fix.OrderStatusCancelled {
		update.OrigClOrdID = m.Get(fix.TagOrigClOrdID)
	}
	return update, true
}
