package session

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/fix"
)

// QuickFIX runs an initiator session and implements quickfix.Application
type QuickFIX struct {
	settings *quickfix.Settings
	creds    Credentials
	observer Observer
	logger   *zap.Logger

	initiator *quickfix.Initiator

	mu        sync.RWMutex
	sessionID quickfix.SessionID
	loggedOn  bool
	onState   func(connected bool)
}

// NewQuickFIX parses initiator settings from cfg
func NewQuickFIX(cfg io.Reader, creds Credentials, observer Observer, logger *zap.Logger) (*QuickFIX, error) {
	settings, err := quickfix.ParseSettings(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fix settings: %w", err)
	}
	return &QuickFIX{
		settings: settings,
		creds:    creds,
		observer: observer,
		logger:   logger,
	}, nil
}

// OnStateChange registers fn to be told about logon and logout
func (q *QuickFIX) OnStateChange(fn func(connected bool)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onState = fn
}

// Start creates the initiator and begins connecting
func (q *QuickFIX) Start() error {
	logFactory, err := quickfix.NewFileLogFactory(q.settings)
	if err != nil {
		return fmt.Errorf("failed to create fix log factory: %w", err)
	}

	initiator, err := quickfix.NewInitiator(q, quickfix.NewFileStoreFactory(q.settings), q.settings, logFactory)
	if err != nil {
		return fmt.Errorf("failed to create initiator: %w", err)
	}
	if err := initiator.Start(); err != nil {
		return fmt.Errorf("failed to start initiator: %w", err)
	}
	q.initiator = initiator
	return nil
}

// Stop logs out and stops the initiator
func (q *QuickFIX) Stop() {
	if q.initiator != nil {
		q.initiator.Stop()
	}
	q.setLoggedOn(false)
}

// Connected reports whether the session is logged on
func (q *QuickFIX) Connected() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.loggedOn
}

// Send queues m on the logged-on session
func (q *QuickFIX) Send(_ context.Context, m *fix.Message) error {
	q.mu.RLock()
	loggedOn, sessionID := q.loggedOn, q.sessionID
	q.mu.RUnlock()

	if !loggedOn {
		q.logger.Error("cannot send while session is down", zap.String("msg_type", m.MsgType()))
		return ErrNotConnected
	}

	out := m.Clone()
	if q.creds.SenderSubID != "" {
		out.SetIfAbsent(fix.TagSenderSubID, q.creds.SenderSubID)
	}
	if err := quickfix.SendToTarget(out.Raw(), sessionID); err != nil {
		return fmt.Errorf("failed to send %s: %w", m.MsgType(), err)
	}
	return nil
}

func (q *QuickFIX) setLoggedOn(loggedOn bool) {
	q.mu.Lock()
	changed := q.loggedOn != loggedOn
	q.loggedOn = loggedOn
	onState := q.onState
	q.mu.Unlock()

	if changed && onState != nil {
		onState(loggedOn)
	}
}

// OnCreate implements quickfix.Application
func (q *QuickFIX) OnCreate(sessionID quickfix.SessionID) {
	q.mu.Lock()
	q.sessionID = sessionID
	q.mu.Unlock()
	q.logger.Info("session created", zap.String("session", sessionID.String()))
}

// OnLogon implements quickfix.Application
func (q *QuickFIX) OnLogon(sessionID quickfix.SessionID) {
	q.mu.Lock()
	q.sessionID = sessionID
	q.mu.Unlock()
	q.setLoggedOn(true)
	q.logger.Info("logon", zap.String("session", sessionID.String()))
}

// OnLogout implements quickfix.Application
func (q *QuickFIX) OnLogout(sessionID quickfix.SessionID) {
	q.setLoggedOn(false)
	q.logger.Warn("logout", zap.String("session", sessionID.String()))
}

// ToAdmin implements quickfix.Application
func (q *QuickFIX) ToAdmin(message *quickfix.Message, _ quickfix.SessionID) {
	if msgType, err := message.MsgType(); err == nil && msgType == fix.MsgTypeLogon {
		if q.creds.Username != "" {
			message.Body.SetString(quickfix.Tag(fix.TagUsername), q.creds.Username)
		}
		if q.creds.Password != "" {
			message.Body.SetString(quickfix.Tag(fix.TagPassword), q.creds.Password)
		}
	}
	q.observer.OnOutbound(fix.Wrap(message))
}

// ToApp implements quickfix.Application
func (q *QuickFIX) ToApp(message *quickfix.Message, _ quickfix.SessionID) error {
	m := fix.Wrap(message)
	q.logger.Debug("sending application message", zap.String("msg", m.String()))
	q.observer.OnOutbound(m)
	return nil
}

// FromAdmin implements quickfix.Application
func (q *QuickFIX) FromAdmin(message *quickfix.Message, _ quickfix.SessionID) quickfix.MessageRejectError {
	q.observer.OnInbound(fix.Wrap(message))
	return nil
}

// FromApp implements quickfix.Application
func (q *QuickFIX) FromApp(message *quickfix.Message, _ quickfix.SessionID) quickfix.MessageRejectError {
	m := fix.Wrap(message)
	q.logger.Debug("received application message", zap.String("msg", m.String()))
	q.observer.OnInbound(m)
	return nil
}
