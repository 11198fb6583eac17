package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds configuration for all services
type Config struct {
	// Service name
	ServiceName string

	// gRPC health server port
	GRPCPort int

	// HTTP health and metrics port
	HTTPPort int

	// Log level: debug, info, warn, error
	LogLevel string

	// Kafka brokers (comma-separated)
	KafkaBrokers  string
	IntentsTopic  string
	EventsTopic   string
	StatusTopic   string
	ConsumerGroup string

	// Round-trip threshold above which a latency breach is raised
	MaxLatencySeconds float64
	// Bounded wait for a correlated reply
	ReplyTimeout time.Duration
	// Correlation entries older than this are evicted
	CorrelationTTL  time.Duration
	CorrelationSize int

	// Trading account sent on orders and inquiries
	Account string

	// FIX session
	FIXSettingsFile string
	FIXUsername     string
	FIXPassword     string
	FIXSenderSubID  string

	// Paper mode replaces the FIX session with an in-process counterparty
	PaperMode     bool
	PaperBalance  float64
	PaperCurrency string

	// Reference data: static (from config file) or dynamodb
	RefDataBackend   string
	Securities       []SecurityConfig
	SecuritiesTable  string
	RedisAddr        string
	SecurityCacheTTL time.Duration

	// Order ledger: sqlite or dynamodb
	LedgerBackend string
	OrdersTable   string
	DataDir       string

	AWSRegion        string
	DynamoDBEndpoint string

	// Report delivery; empty SMTPHost logs reports instead
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	ReportFrom   string
	ReportTo     string

	// Pause between drained intent batches
	BatchInterval time.Duration
	BatchSize     int

	Chaos ChaosConfig
}

// SecurityConfig is a statically configured security profile
type SecurityConfig struct {
	Symbol         string  `mapstructure:"symbol"`
	TradingEnabled bool    `mapstructure:"trading_enabled"`
	RiskFactor     float64 `mapstructure:"risk_factor"`
	MarginAmount   float64 `mapstructure:"margin_amount"`
	MarginCurrency string  `mapstructure:"margin_currency"`
	MaxPosition    int64   `mapstructure:"max_position"`
}

// ChaosConfig holds failure injection settings for the paper counterparty
type ChaosConfig struct {
	Enabled    bool
	Profile    string
	TargetOp   string
	DropPct    int
	DelayMsMin int
	DelayMsMax int
	Seed       int64
	WindowMs   int
}

// LoadConfig loads configuration from an optional config file and environment variables
func LoadConfig(serviceName string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		ServiceName:       serviceName,
		GRPCPort:          v.GetInt("PORT_GRPC"),
		HTTPPort:          v.GetInt("PORT_HTTP"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		KafkaBrokers:      v.GetString("KAFKA_BROKERS"),
		IntentsTopic:      v.GetString("INTENTS_TOPIC"),
		EventsTopic:       v.GetString("EVENTS_TOPIC"),
		StatusTopic:       v.GetString("STATUS_TOPIC"),
		ConsumerGroup:     v.GetString("CONSUMER_GROUP"),
		MaxLatencySeconds: v.GetFloat64("MAX_LATENCY_SECONDS"),
		ReplyTimeout:      v.GetDuration("REPLY_TIMEOUT"),
		CorrelationTTL:    v.GetDuration("CORRELATION_TTL"),
		CorrelationSize:   v.GetInt("CORRELATION_SIZE"),
		Account:           v.GetString("ACCOUNT"),
		FIXSettingsFile:   v.GetString("FIX_SETTINGS_FILE"),
		FIXUsername:       v.GetString("FIX_USERNAME"),
		FIXPassword:       v.GetString("FIX_PASSWORD"),
		FIXSenderSubID:    v.GetString("FIX_SENDER_SUB_ID"),
		PaperMode:         v.GetBool("PAPER_MODE"),
		PaperBalance:      v.GetFloat64("PAPER_BALANCE"),
		PaperCurrency:     v.GetString("PAPER_CURRENCY"),
		RefDataBackend:    strings.ToLower(v.GetString("REFDATA_BACKEND")),
		SecuritiesTable:   v.GetString("SECURITIES_TABLE"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		SecurityCacheTTL:  v.GetDuration("SECURITY_CACHE_TTL"),
		LedgerBackend:     strings.ToLower(v.GetString("LEDGER_BACKEND")),
		OrdersTable:       v.GetString("ORDERS_TABLE"),
		DataDir:           v.GetString("DATA_DIR"),
		AWSRegion:         v.GetString("AWS_REGION"),
		DynamoDBEndpoint:  v.GetString("DYNAMODB_ENDPOINT"),
		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetInt("SMTP_PORT"),
		SMTPUsername:      v.GetString("SMTP_USERNAME"),
		SMTPPassword:      v.GetString("SMTP_PASSWORD"),
		ReportFrom:        v.GetString("REPORT_FROM"),
		ReportTo:          v.GetString("REPORT_EMAIL"),
		BatchInterval:     v.GetDuration("BATCH_INTERVAL"),
		BatchSize:         v.GetInt("BATCH_SIZE"),
		Chaos: ChaosConfig{
			Enabled:    v.GetBool("CHAOS_ENABLED"),
			Profile:    v.GetString("CHAOS_PROFILE"),
			TargetOp:   v.GetString("CHAOS_TARGET_OP"),
			DropPct:    v.GetInt("CHAOS_DROP_PCT"),
			DelayMsMin: v.GetInt("CHAOS_DELAY_MS_MIN"),
			DelayMsMax: v.GetInt("CHAOS_DELAY_MS_MAX"),
			Seed:       v.GetInt64("CHAOS_SEED"),
			WindowMs:   v.GetInt("CHAOS_WINDOW_MS"),
		},
	}

	if err := v.UnmarshalKey("securities", &cfg.Securities); err != nil {
		return nil, fmt.Errorf("failed to decode securities: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT_GRPC", 50051)
	v.SetDefault("PORT_HTTP", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("KAFKA_BROKERS", "127.0.0.1:9092")
	v.SetDefault("INTENTS_TOPIC", "orders.intents")
	v.SetDefault("EVENTS_TOPIC", "fix.events")
	v.SetDefault("STATUS_TOPIC", "orders.status")
	v.SetDefault("CONSUMER_GROUP", "futures-trader-v1")
	v.SetDefault("MAX_LATENCY_SECONDS", 1.0)
	v.SetDefault("REPLY_TIMEOUT", 5*time.Second)
	v.SetDefault("CORRELATION_TTL", 10*time.Minute)
	v.SetDefault("CORRELATION_SIZE", 10000)
	v.SetDefault("FIX_SETTINGS_FILE", "config/initiator.cfg")
	v.SetDefault("PAPER_MODE", false)
	v.SetDefault("PAPER_BALANCE", 100000.0)
	v.SetDefault("PAPER_CURRENCY", "USD")
	v.SetDefault("REFDATA_BACKEND", "static")
	v.SetDefault("SECURITIES_TABLE", "Securities")
	v.SetDefault("SECURITY_CACHE_TTL", 5*time.Minute)
	v.SetDefault("LEDGER_BACKEND", "sqlite")
	v.SetDefault("ORDERS_TABLE", "Orders")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("BATCH_INTERVAL", time.Second)
	v.SetDefault("BATCH_SIZE", 50)
	v.SetDefault("CHAOS_SEED", 1)
}

func (c *Config) validate() error {
	if c.MaxLatencySeconds <= 0 {
		return fmt.Errorf("MAX_LATENCY_SECONDS must be positive, got %v", c.MaxLatencySeconds)
	}
	if c.ReplyTimeout <= 0 {
		return fmt.Errorf("REPLY_TIMEOUT must be positive, got %v", c.ReplyTimeout)
	}
	switch c.LedgerBackend {
	case "sqlite", "dynamodb":
	default:
		return fmt.Errorf("unsupported LEDGER_BACKEND %q", c.LedgerBackend)
	}
	switch c.RefDataBackend {
	case "static", "dynamodb":
	default:
		return fmt.Errorf("unsupported REFDATA_BACKEND %q", c.RefDataBackend)
	}
	return nil
}

// Brokers returns the Kafka broker list
func (c *Config) Brokers() []string {
	brokers := make([]string, 0)
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// GRPCAddr returns the gRPC server address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// HTTPAddr returns the HTTP server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// SMTPAddr returns host:port of the mail relay
func (c *Config) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
}
