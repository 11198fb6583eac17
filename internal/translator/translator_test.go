package translator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/correlation"
	"github.com/ismaiel54/futures-fix-trader/internal/events"
	"github.com/ismaiel54/futures-fix-trader/internal/fix"
)

type harness struct {
	bus        *events.Bus
	translator *Translator
	received   map[events.Channel][]events.Event
}

func newHarness(threshold float64) *harness {
	h := &harness{
		bus:      events.NewBus(zap.NewNop()),
		received: make(map[events.Channel][]events.Event),
	}
	for _, ch := range []events.Channel{events.ChannelOrder, events.ChannelAccount, events.ChannelLatency} {
		ch := ch
		h.bus.Subscribe(ch, events.NewListener(func(ev events.Event) error {
			h.received[ch] = append(h.received[ch], ev)
			return nil
		}))
	}
	store := correlation.NewStore(correlation.Config{MaxLatencySeconds: threshold}, h.bus, zap.NewNop())
	h.translator = New(store, h.bus, zap.NewNop())
	return h
}

func TestKey(t *testing.T) {
	logon := fix.NewMessage(fix.MsgTypeLogon).
		Set(fix.TagMsgSeqNum, "1").
		Set(fix.TagSendingTime, "20170606-03:52:24.324")
	category, key, ts, ok := Key(logon)
	require.True(t, ok)
	assert.Equal(t, correlation.CategorySession, category)
	assert.Equal(t, "A:1", key)
	assert.Equal(t, "20170606-03:52:24.324", ts)

	report := fix.NewMessage(fix.MsgTypeExecutionReport).
		Set(fix.TagClOrdID, "100").
		Set(fix.TagSendingTime, "20170606-03:52:00.000")
	category, key, ts, ok = Key(report)
	require.True(t, ok)
	assert.Equal(t, correlation.CategoryOrder, category)
	assert.Equal(t, "100", key)
	assert.Equal(t, "20170606-03:52:00.000", ts, "falls back to SendingTime")

	report.Set(fix.TagTransactTime, "20170606-03:52:14.824")
	_, _, ts, _ = Key(report)
	assert.Equal(t, "20170606-03:52:14.824", ts, "TransactTime preferred")

	category, key, _, ok = Key(fix.NewMessage(fix.MsgTypeCollateralReport).Set(fix.TagCollInquiryID, "c-1"))
	require.True(t, ok)
	assert.Equal(t, correlation.CategoryCollateral, category)
	assert.Equal(t, "c-1", key)

	category, key, _, ok = Key(fix.NewMessage(fix.MsgTypeRequestForPositionsAck).Set(fix.TagPosReqID, "p-1"))
	require.True(t, ok)
	assert.Equal(t, correlation.CategoryPosition, category)
	assert.Equal(t, "p-1", key)

	_, _, _, ok = Key(fix.NewMessage("V"))
	assert.False(t, ok)
}

func TestHeartbeatLatencyBreach(t *testing.T) {
	h := newHarness(1)

	h.translator.OnOutbound(fix.NewMessage(fix.MsgTypeHeartbeat).
		Set(fix.TagMsgSeqNum, "1").
		Set(fix.TagSendingTime, "20170606-03:52:34.924"))
	_, ok := h.translator.OnInbound(fix.NewMessage(fix.MsgTypeHeartbeat).
		Set(fix.TagMsgSeqNum, "1").
		Set(fix.TagSendingTime, "20170606-03:52:14.824"))
	assert.False(t, ok, "heartbeats produce no domain event")

	require.Len(t, h.received[events.ChannelLatency], 1)
	breach := h.received[events.ChannelLatency][0].(events.LatencyBreach)
	assert.InDelta(t, 20.1, breach.ObservedSeconds, 1e-9)
}

func TestOrderRoundTripLatency(t *testing.T) {
	h := newHarness(1)

	h.translator.OnOutbound(fix.NewMessage(fix.MsgTypeNewOrderSingle).
		Set(fix.TagClOrdID, "100").
		Set(fix.TagTransactTime, "20170606-03:52:34.924"))
	h.translator.OnInbound(fix.NewMessage(fix.MsgTypeExecutionReport).
		Set(fix.TagClOrdID, "100").
		Set(fix.TagOrdStatus, "0").
		Set(fix.TagTransactTime, "20170606-03:52:14.824"))

	require.Len(t, h.received[events.ChannelLatency], 1)
	assert.InDelta(t, 20.1, h.received[events.ChannelLatency][0].(events.LatencyBreach).ObservedSeconds, 1e-9)
	assert.Len(t, h.received[events.ChannelOrder], 1)
}

func TestExecutionReportDecoding(t *testing.T) {
	h := newHarness(60)

	ev, ok := h.translator.OnInbound(fix.NewMessage(fix.MsgTypeExecutionReport).
		Set(fix.TagClOrdID, "ord-1").
		Set(fix.TagOrdStatus, "2").
		Set(fix.TagSymbol, "6E").
		Set(fix.TagMaturityMonthYear, "201706").
		Set(fix.TagSide, "1").
		Set(fix.TagOrderQty, "1").
		Set(fix.TagAvgPx, "1.1205"))
	require.True(t, ok)

	update := ev.(events.OrderUpdate)
	assert.Equal(t, fix.OrderStatusFilled, update.Status)
	require.NotNil(t, update.Detail)
	assert.Equal(t, "6E", update.Detail.Symbol)
	assert.Equal(t, fix.SideBuy, update.Detail.Side)
	assert.Equal(t, int64(1), update.Detail.Quantity)
	assert.True(t, update.Detail.AvgPx.Equal(decimal.RequireFromString("1.1205")))
	assert.Empty(t, update.OrigClOrdID)

	ev, ok = h.translator.OnInbound(fix.NewMessage(fix.MsgTypeExecutionReport).
		Set(fix.TagClOrdID, "cxl-1").
		Set(fix.TagOrigClOrdID, "ord-1").
		Set(fix.TagOrdStatus, "4"))
	require.True(t, ok)
	assert.Equal(t, "ord-1", ev.(events.OrderUpdate).OrigClOrdID)

	_, ok = h.translator.OnInbound(fix.NewMessage(fix.MsgTypeExecutionReport).
		Set(fix.TagClOrdID, "ord-2").
		Set(fix.TagOrdStatus, "1"))
	assert.False(t, ok, "partial fills are not published")
	assert.Len(t, h.received[events.ChannelOrder], 2)
}

func TestCancelRejectCarriesNoDetail(t *testing.T) {
	h := newHarness(60)

	ev, ok := h.translator.OnInbound(fix.NewMessage(fix.MsgTypeOrderCancelReject).
		Set(fix.TagClOrdID, "cxl-2").
		Set(fix.TagOrigClOrdID, "ord-9").
		Set(fix.TagText, "too late to cancel"))
	require.True(t, ok)

	update := ev.(events.OrderUpdate)
	assert.Equal(t, fix.OrderStatusCancelRejected, update.Status)
	assert.Equal(t, "ord-9", update.OrigClOrdID)
	assert.Nil(t, update.Detail)
}

func TestAccountReports(t *testing.T) {
	h := newHarness(60)

	ev, ok := h.translator.OnInbound(fix.NewMessage(fix.MsgTypeCollateralReport).
		Set(fix.TagCollInquiryID, "c-1").
		Set(fix.TagAccount, "ACC1").
		Set(fix.TagCashOutstanding, "1000").
		Set(fix.TagCurrency, "USD"))
	require.True(t, ok)
	collateral := ev.(events.AccountUpdate)
	assert.Equal(t, events.AccountCollateral, collateral.Kind)
	assert.True(t, collateral.Balance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "USD", collateral.Currency)

	ev, ok = h.translator.OnInbound(fix.NewMessage(fix.MsgTypePositionReport).
		Set(fix.TagPosReqID, "p-1").
		Set(fix.TagSymbol, "6E").
		Set(fix.TagMaturityMonthYear, "201706").
		Set(fix.TagLongQty, "3").
		Set(fix.TagShortQty, "1"))
	require.True(t, ok)
	position := ev.(events.AccountUpdate)
	assert.Equal(t, events.AccountPosition, position.Kind)
	assert.Equal(t, int64(2), position.NetPosition())

	ev, ok = h.translator.OnInbound(fix.NewMessage(fix.MsgTypeRequestForPositionsAck).
		Set(fix.TagPosReqID, "p-2").
		Set(fix.TagTotalNumPosReps, "0"))
	require.True(t, ok)
	ack := ev.(events.AccountUpdate)
	assert.Equal(t, events.AccountPositionAck, ack.Kind)
	assert.Zero(t, ack.LongQty)
	assert.Zero(t, ack.ShortQty)
	assert.Zero(t, ack.TotalReports)

	assert.Len(t, h.received[events.ChannelAccount], 3)
}
