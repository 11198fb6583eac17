package trader

import (
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/correlation"
	"github.com/ismaiel54/futures-fix-trader/internal/events"
	"github.com/ismaiel54/futures-fix-trader/internal/reply"
	"github.com/ismaiel54/futures-fix-trader/internal/submission"
	"github.com/ismaiel54/futures-fix-trader/internal/translator"
	"github.com/ismaiel54/futures-fix-trader/internal/validation"
)

// CoreConfig sizes the correlation state
type CoreConfig struct {
	MaxLatencySeconds float64
	CorrelationSize   int
	CorrelationTTL    time.Duration
	ReplyTimeout      time.Duration
}

// Core holds the components between the session engine and the pipeline.
// The Translator is the session observer; replies reach the correlators
// through the bus.
type Core struct {
	Bus        *events.Bus
	Store      *correlation.Store
	Translator *translator.Translator
	Replies    *validation.Replies
	Orders     *submission.Orders
}

// NewCore creates the bus, correlation store, translator and reply correlators
// and subscribes the correlators
func NewCore(cfg CoreConfig, logger *zap.Logger) *Core {
	bus := events.NewBus(logger)
	store := correlation.NewStore(correlation.Config{
		MaxLatencySeconds: cfg.MaxLatencySeconds,
		Size:              cfg.CorrelationSize,
		TTL:               cfg.CorrelationTTL,
	}, bus, logger)

	replyCfg := reply.Config{Timeout: cfg.ReplyTimeout}
	c := &Core{
		Bus:        bus,
		Store:      store,
		Translator: translator.New(store, bus, logger),
		Replies:    validation.NewReplies(replyCfg, logger),
		Orders:     submission.NewOrders(replyCfg, logger),
	}

	bus.Subscribe(events.ChannelAccount, c.Replies)
	bus.Subscribe(events.ChannelOrder, c.Orders)
	return c
}

// Forward subscribes l on every channel
func (c *Core) Forward(l events.Listener) {
	for _, ch := range []events.Channel{events.ChannelOrder, events.ChannelAccount, events.ChannelLatency} {
		c.Bus.Subscribe(ch, l)
	}
}
