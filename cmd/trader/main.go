package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/ismaiel54/futures-fix-trader/internal/chaos"
	"github.com/ismaiel54/futures-fix-trader/internal/config"
	"github.com/ismaiel54/futures-fix-trader/internal/ledger"
	"github.com/ismaiel54/futures-fix-trader/internal/logging"
	"github.com/ismaiel54/futures-fix-trader/internal/msg"
	"github.com/ismaiel54/futures-fix-trader/internal/notify"
	"github.com/ismaiel54/futures-fix-trader/internal/observability"
	"github.com/ismaiel54/futures-fix-trader/internal/paper"
	"github.com/ismaiel54/futures-fix-trader/internal/refdata"
	"github.com/ismaiel54/futures-fix-trader/internal/session"
	"github.com/ismaiel54/futures-fix-trader/internal/submission"
	"github.com/ismaiel54/futures-fix-trader/internal/trader"
	"github.com/ismaiel54/futures-fix-trader/internal/validation"
)

func main() {
	cfg, err := config.LoadConfig("trader")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting trader service",
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("kafka_brokers", cfg.KafkaBrokers),
		zap.Bool("paper_mode", cfg.PaperMode),
		zap.String("ledger_backend", cfg.LedgerBackend),
		zap.String("refdata_backend", cfg.RefDataBackend),
		zap.Float64("max_latency_seconds", cfg.MaxLatencySeconds),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthChecker := observability.NewHealthChecker(logger)

	brokers := cfg.Brokers()
	producer, err := msg.NewProducer(brokers, cfg.ServiceName, logger)
	if err != nil {
		logger.Fatal("failed to create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	var dynamoClient *dynamodb.Client
	if cfg.LedgerBackend == "dynamodb" || cfg.RefDataBackend == "dynamodb" {
		dynamoClient, err = newDynamoClient(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to create dynamodb client", zap.Error(err))
		}
	}

	// Ledger
	var base ledger.Ledger
	var publisher *ledger.Publisher
	switch cfg.LedgerBackend {
	case "dynamodb":
		base = ledger.NewDynamoLedger(dynamoClient, cfg.OrdersTable)
		logger.Info("using dynamodb ledger", zap.String("table", cfg.OrdersTable))
	default:
		dbPath := filepath.Join(cfg.DataDir, "ledger.db")
		store, err := ledger.Open(dbPath)
		if err != nil {
			logger.Fatal("failed to open ledger", zap.Error(err))
		}
		defer store.Close()
		store.SetStatusTopic(cfg.StatusTopic)
		base = store
		publisher = ledger.NewPublisher(store, producer, logger)
		logger.Info("ledger opened", zap.String("path", dbPath))
	}
	journal := ledger.NewJournal(base, logger)

	// Reference data
	var securities refdata.Lookup
	switch cfg.RefDataBackend {
	case "dynamodb":
		securities = refdata.NewDynamoLookup(dynamoClient, cfg.SecuritiesTable)
	default:
		securities = refdata.FromConfig(cfg.Securities)
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		securities = refdata.NewCachedLookup(securities, rdb, cfg.SecurityCacheTTL, logger)
		logger.Info("security cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	core := trader.NewCore(trader.CoreConfig{
		MaxLatencySeconds: cfg.MaxLatencySeconds,
		CorrelationSize:   cfg.CorrelationSize,
		CorrelationTTL:    cfg.CorrelationTTL,
		ReplyTimeout:      cfg.ReplyTimeout,
	}, logger)

	forwarder := msg.NewEventForwarder(producer, cfg.EventsTopic, 4096, logger)
	core.Forward(forwarder)

	// Session engine
	var engine session.Engine
	if cfg.PaperMode {
		p := paper.New(paper.Options{
			Account:  cfg.Account,
			Balance:  decimal.NewFromFloat(cfg.PaperBalance),
			Currency: cfg.PaperCurrency,
		}, core.Translator, chaos.New(cfg.Chaos, logger), logger)
		defer p.Close()
		engine = p
		healthChecker.SetSessionReady(true)
		logger.Info("paper counterparty enabled")
	} else {
		q, err := startQuickFIX(cfg, core, healthChecker, logger)
		if err != nil {
			logger.Fatal("failed to start fix session", zap.Error(err))
		}
		defer q.Stop()
		engine = q
	}

	pipeline := validation.NewPipeline(securities, engine, core.Replies, journal, cfg.Account, logger)
	tracker := submission.NewTracker(engine, core.Orders, journal, cfg.Account, logger)

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Addr:     cfg.SMTPAddr(),
			Host:     cfg.SMTPHost,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.ReportFrom,
			To:       cfg.ReportTo,
		}, logger)
	}

	runner := trader.NewRunner(trader.Config{
		BatchInterval: cfg.BatchInterval,
		BatchSize:     cfg.BatchSize,
	}, pipeline, tracker, journal, notifier, logger)

	consumer, err := msg.NewConsumer(brokers, cfg.ConsumerGroup, []string{cfg.IntentsTopic}, logger)
	if err != nil {
		logger.Fatal("failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	// gRPC health server
	grpcServer := grpc.NewServer()
	healthChecker.RegisterGRPC(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}

	errCh := make(chan error, 6)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	go func() {
		if err := healthChecker.StartHTTPServer(cfg.HTTPAddr()); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := forwarder.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("event forwarder: %w", err)
		}
	}()

	go func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("runner: %w", err)
		}
	}()

	go func() {
		if err := consumer.Run(ctx, runner.HandleRecord); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer: %w", err)
		}
	}()

	if publisher != nil {
		go func() {
			if err := publisher.Run(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("outbox publisher: %w", err)
			}
		}()
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := producer.Ping(pingCtx); err != nil {
		logger.Warn("kafka not reachable yet", zap.Error(err))
		healthChecker.SetKafkaReady(false)
	} else {
		healthChecker.SetKafkaReady(true)
	}
	pingCancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("component failed", zap.Error(err))
	}

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := healthChecker.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health checker", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("trader service stopped",
		zap.Int64("events_dropped", forwarder.Dropped()),
	)
}

func newDynamoClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

func startQuickFIX(cfg *config.Config, core *trader.Core, health *observability.HealthChecker, logger *zap.Logger) (*session.QuickFIX, error) {
	f, err := os.Open(cfg.FIXSettingsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open fix settings: %w", err)
	}
	defer f.Close()

	q, err := session.NewQuickFIX(f, session.Credentials{
		Username:    cfg.FIXUsername,
		Password:    cfg.FIXPassword,
		SenderSubID: cfg.FIXSenderSubID,
	}, core.Translator, logger)
	if err != nil {
		return nil, err
	}
	q.OnStateChange(health.SetSessionReady)

	if err := q.Start(); err != nil {
		return nil, err
	}
	logger.Info("fix initiator started", zap.String("settings", cfg.FIXSettingsFile))
	return q, nil
}
