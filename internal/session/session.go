package session

import (
	"context"
	"errors"

	"github.com/ismaiel54/futures-fix-trader/internal/events"
	"github.com/ismaiel54/futures-fix-trader/internal/fix"
)

// ErrNotConnected is returned by Send while the session is not logged on.
// Sends fail fast; callers decide whether to retry.
var ErrNotConnected = errors.New("fix session not connected")

// Engine sends FIX messages to the counterparty
type Engine interface {
	Send(ctx context.Context, m *fix.Message) error
	Connected() bool
}

// Observer sees every message crossing the session
type Observer interface {
	OnOutbound(m *fix.Message)
	OnInbound(m *fix.Message) (events.Event, bool)
}

// Credentials are injected into the Logon message
type Credentials struct {
	Username    string
	Password    string
	SenderSubID string
}
