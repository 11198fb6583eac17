package correlation

import (
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/events"
	"github.com/ismaiel54/futures-fix-trader/internal/fix"
	"github.com/ismaiel54/futures-fix-trader/internal/observability"
)

// Category groups correlation keys by the kind of exchange they belong to
type Category string

const (
	CategorySession    Category = "session"
	CategoryOrder      Category = "order"
	CategoryCollateral Category = "collateral"
	CategoryPosition   Category = "position"
)

func (c Category) valid() bool {
	switch c {
	case CategorySession, CategoryOrder, CategoryCollateral, CategoryPosition:
		return true
	}
	return false
}

// Publisher receives latency breach events
type Publisher interface {
	Publish(channel events.Channel, ev events.Event)
}

// Config holds correlation store settings
type Config struct {
	MaxLatencySeconds float64
	// Size bounds each of the request and response maps
	Size int
	// TTL evicts entries that never found their counterpart
	TTL time.Duration
}

// Store pairs outbound requests with inbound responses by key and times the round trip
type Store struct {
	mu        sync.Mutex
	out       *expirable.LRU[string, string]
	in        *expirable.LRU[string, string]
	threshold float64
	publisher Publisher
	logger    *zap.Logger
}

// NewStore creates a correlation store
func NewStore(cfg Config, publisher Publisher, logger *zap.Logger) *Store {
	size := cfg.Size
	if size <= 0 {
		size = 10000
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{
		out:       expirable.NewLRU[string, string](size, nil, ttl),
		in:        expirable.NewLRU[string, string](size, nil, ttl),
		threshold: cfg.MaxLatencySeconds,
		publisher: publisher,
		logger:    logger,
	}
}

// RecordRequest records the send time of an outbound message.
// It returns the round trip in seconds when the response was already recorded.
func (s *Store) RecordRequest(category Category, key, timestamp string) (float64, bool) {
	return s.record(category, key, timestamp, true)
}

// RecordResponse records the receive time of an inbound message.
// It returns the round trip in seconds when the request was already recorded.
func (s *Store) RecordResponse(category Category, key, timestamp string) (float64, bool) {
	return s.record(category, key, timestamp, false)
}

func (s *Store) record(category Category, key, timestamp string, outbound bool) (float64, bool) {
	if !category.valid() {
		s.logger.Warn("ignoring unknown correlation category",
			zap.String("category", string(category)),
			zap.String("key", key),
		)
		return 0, false
	}
	if key == "" {
		s.logger.Warn("ignoring empty correlation key", zap.String("category", string(category)))
		return 0, false
	}

	id := string(category) + "|" + key

	s.mu.Lock()
	var counterpart string
	var found bool
	if outbound {
		s.out.Add(id, timestamp)
		counterpart, found = s.in.Peek(id)
	} else {
		s.in.Add(id, timestamp)
		counterpart, found = s.out.Peek(id)
	}
	s.mu.Unlock()

	if !found {
		return 0, false
	}

	latency, err := elapsedSeconds(timestamp, counterpart)
	if err != nil {
		s.logger.Warn("ignoring unparseable correlation timestamp",
			zap.String("category", string(category)),
			zap.String("key", key),
			zap.Error(err),
		)
		return 0, false
	}

	observability.RoundTripSeconds.WithLabelValues(string(category)).Observe(latency)

	if latency > s.threshold {
		observability.LatencyBreaches.WithLabelValues(string(category)).Inc()
		s.logger.Error("latency threshold exceeded",
			zap.String("category", string(category)),
			zap.String("key", key),
			zap.Float64("latency_seconds", latency),
			zap.Float64("threshold_seconds", s.threshold),
		)
		if s.publisher != nil {
			s.publisher.Publish(events.ChannelLatency, events.LatencyBreach{
				Category:         string(category),
				Key:              key,
				ThresholdSeconds: s.threshold,
				ObservedSeconds:  latency,
			})
		}
	}

	return latency, true
}

func elapsedSeconds(a, b string) (float64, error) {
	ta, err := fix.ParseUTCTimestamp(a)
	if err != nil {
		return 0, err
	}
	tb, err := fix.ParseUTCTimestamp(b)
	if err != nil {
		return 0, err
	}
	return math.Abs(ta.Sub(tb).Seconds()), nil
}

// Len returns the number of pending requests and responses
func (s *Store) Len() (requests, responses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Len(), s.in.Len()
}
