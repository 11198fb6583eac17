package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/msg"
	"github.com/ismaiel54/futures-fix-trader/internal/order"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "ledger_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := Open(filepath.Join(tmpDir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testIntent(id string) order.Intent {
	return order.Intent{
		ID:          id,
		SubmittedAt: "1496721144.32",
		Symbol:      "6E",
		Maturity:    "201706",
		Quantity:    1,
		Side:        "BUY",
		OrdType:     "MARKET",
	}
}

func TestClaim_OncePerIntent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Claim(ctx, testIntent("n-1")))

	err := store.Claim(ctx, testIntent("n-1"))
	assert.ErrorIs(t, err, ErrAlreadyClaimed, "second claim of the same intent is refused")

	rec, err := store.Get(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "6E", rec.Intent.Symbol)
}

func TestUpdateStatus_OnlyFromPending(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Claim(ctx, testIntent("n-2")))

	err := store.UpdateStatus(ctx, Update{
		IntentID: "n-2",
		Status:   StatusFilled,
		ClOrdID:  "ord-1",
		Text:     "Confirmed newOrderId: n-2",
	})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "n-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, rec.Status)
	assert.Equal(t, "ord-1", rec.ClOrdID)

	err = store.UpdateStatus(ctx, Update{IntentID: "n-2", Status: StatusInvalid})
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.ErrorIs(t, err, ErrNotPending)

	rec, err = store.Get(ctx, "n-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, rec.Status, "terminal status is not overwritten")

	err = store.UpdateStatus(ctx, Update{IntentID: "missing", Status: StatusInvalid})
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.False(t, errors.Is(err, ErrNotPending))
}

func TestUpdateStatus_WritesOutbox(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Claim(ctx, testIntent("n-3")))
	require.NoError(t, store.UpdateStatus(ctx, Update{IntentID: "n-3", Status: StatusInvalid, Text: "bad symbol"}))

	unpublished, err := store.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	require.Len(t, unpublished, 1)
	assert.Equal(t, msg.TopicOrdersStatus, unpublished[0].Topic)
	assert.Equal(t, "n-3", unpublished[0].Key)

	var event msg.StatusMsg
	require.NoError(t, json.Unmarshal([]byte(unpublished[0].PayloadJSON), &event))
	assert.Equal(t, "INVALID", event.Status)
	assert.Equal(t, "bad symbol", event.Text)

	require.NoError(t, store.MarkPublished(ctx, event.EventID, 2000))
	unpublished, err = store.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, unpublished, 0, "should have no unpublished events after marking as published")
}

type fakeProducer struct {
	mu     sync.Mutex
	keys   []string
	failOn string
}

func (p *fakeProducer) ProduceJSON(_ context.Context, _ string, key string, v any) error {
	if key == p.failOn {
		return errors.New("broker unavailable")
	}
	if _, err := json.Marshal(v); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func TestPublisher_PublishBatch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"n-4", "n-5"} {
		require.NoError(t, store.Claim(ctx, testIntent(id)))
		require.NoError(t, store.UpdateStatus(ctx, Update{IntentID: id, Status: StatusRejected}))
	}

	producer := &fakeProducer{failOn: "n-5"}
	publisher := NewPublisher(store, producer, zap.NewNop())

	n, err := publisher.PublishBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"n-4"}, producer.keys)

	unpublished, err := store.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	require.Len(t, unpublished, 1, "failed event stays in the outbox")
	assert.Equal(t, "n-5", unpublished[0].Key)

	producer.failOn = ""
	n, err = publisher.PublishBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJournal_RecordsOutcomes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	journal := NewJournal(store, zap.NewNop())

	require.NoError(t, journal.Claim(ctx, testIntent("n-6")))
	require.NoError(t, journal.UpdateStatus(ctx, Update{IntentID: "n-6", Status: StatusInvalid, Text: "Error validate_symbol"}))
	err := journal.UpdateStatus(ctx, Update{IntentID: "n-6", Status: StatusFilled, Text: "Confirmed"})
	require.Error(t, err)

	lines := journal.Drain()
	require.Len(t, lines, 2)
	assert.Equal(t, "Error validate_symbol. UpdateItem succeeded.", lines[0])
	assert.Contains(t, lines[1], "Confirmed. ")
	assert.Contains(t, lines[1], ErrNotPending.Error())
	assert.Empty(t, journal.Drain())
}
