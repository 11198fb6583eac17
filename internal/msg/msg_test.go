package msg

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/events"
	"github.com/ismaiel54/futures-fix-trader/internal/fix"
)

type produced struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	mu      sync.Mutex
	records []produced
}

func (p *fakeProducer) ProduceJSON(_ context.Context, topic, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, produced{topic: topic, key: key, value: data})
	return nil
}

func (p *fakeProducer) snapshot() []produced {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]produced(nil), p.records...)
}

func TestIntentMsg(t *testing.T) {
	var m IntentMsg
	require.NoError(t, json.Unmarshal([]byte(`{
		"event_id": "e-1",
		"new_order_id": "n-1",
		"transaction_time": "1496721144.32",
		"symbol": "6E",
		"maturity": "201706",
		"quantity": 1,
		"side": "BUY",
		"ord_type": "MARKET"
	}`), &m))
	require.NoError(t, m.Validate())

	intent := m.Intent()
	assert.Equal(t, "n-1", intent.ID)
	assert.Equal(t, "1496721144.32", intent.SubmittedAt)
	assert.Equal(t, "BUY", intent.Side)

	m.Quantity = 0
	assert.Error(t, m.Validate())
}

func TestNewEventMsg(t *testing.T) {
	now := time.UnixMilli(1000)

	m := NewEventMsg(events.OrderUpdate{
		ClOrdID: "ord-1",
		Status:  fix.OrderStatusFilled,
		Detail: &events.OrderDetail{
			Symbol:   "6E",
			Side:     fix.SideSell,
			Quantity: 2,
			AvgPx:    decimal.RequireFromString("1.12"),
		},
	}, now)
	assert.Equal(t, "order", m.Channel)
	assert.Equal(t, "ord-1", m.Key)
	assert.Equal(t, "FILLED", m.Status)
	assert.Equal(t, "SELL", m.Side)
	assert.Equal(t, "1.12", m.Price)
	assert.Equal(t, int64(1000), m.TsUnixMillis)
	assert.NotEmpty(t, m.EventID)

	m = NewEventMsg(events.LatencyBreach{Category: "session", Key: "A:1", ObservedSeconds: 10.5}, now)
	assert.Equal(t, "session:A:1", m.Key)
	assert.Equal(t, 10.5, m.Observed)
}

func TestEventForwarder(t *testing.T) {
	producer := &fakeProducer{}
	f := NewEventForwarder(producer, TopicFIXEvents, 2, zap.NewNop())

	require.NoError(t, f.HandleEvent(events.AccountUpdate{InquiryID: "c-1", Kind: events.AccountCollateral}))
	require.NoError(t, f.HandleEvent(events.AccountUpdate{InquiryID: "c-2", Kind: events.AccountCollateral}))
	assert.ErrorIs(t, f.HandleEvent(events.AccountUpdate{InquiryID: "c-3"}), ErrQueueFull)
	assert.Equal(t, int64(1), f.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return len(producer.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	records := producer.snapshot()
	assert.Equal(t, TopicFIXEvents, records[0].topic)
	assert.Equal(t, "c-1", records[0].key)
	assert.Equal(t, "c-2", records[1].key)
}
