package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/logging"
	"github.com/ismaiel54/futures-fix-trader/internal/msg"
)

func main() {
	var (
		brokers  = flag.String("brokers", "127.0.0.1:9092", "Kafka broker addresses")
		topic    = flag.String("topic", msg.TopicOrdersIntents, "Topic to produce to")
		symbol   = flag.String("symbol", "6E", "Futures symbol")
		maturity = flag.String("maturity", "", "Contract maturity as YYYYMM")
		qty      = flag.Int64("qty", 1, "Order quantity")
		side     = flag.String("side", "BUY", "BUY or SELL")
		ordType  = flag.String("ord-type", "MARKET", "Order type")
		orderID  = flag.String("id", "", "NewOrderId; generated when empty")
	)
	flag.Parse()

	logger, err := logging.NewLogger("push-intent", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *maturity == "" {
		*maturity = time.Now().AddDate(0, 2, 0).Format("200601")
	}
	if *orderID == "" {
		*orderID = uuid.New().String()
	}

	now := time.Now()
	intent := msg.IntentMsg{
		EventID:         uuid.New().String(),
		NewOrderID:      *orderID,
		TransactionTime: fmt.Sprintf("%.3f", float64(now.UnixMilli())/1000),
		Symbol:          *symbol,
		Maturity:        *maturity,
		Quantity:        *qty,
		Side:            strings.ToUpper(*side),
		OrdType:         strings.ToUpper(*ordType),
		TsUnixMillis:    now.UnixMilli(),
	}
	if err := intent.Validate(); err != nil {
		logger.Fatal("invalid intent", zap.Error(err))
	}

	brokerList := make([]string, 0)
	for _, b := range strings.Split(*brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}

	producer, err := msg.NewProducer(brokerList, "push-intent", logger)
	if err != nil {
		logger.Fatal("failed to create producer", zap.Error(err))
	}
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := producer.ProduceJSON(ctx, *topic, intent.NewOrderID, intent); err != nil {
		logger.Error("failed to produce intent",
			zap.String("new_order_id", intent.NewOrderID),
			zap.Error(err),
		)
		os.Exit(1)
	}

	logger.Info("intent pushed",
		zap.String("new_order_id", intent.NewOrderID),
		zap.String("symbol", intent.Symbol),
		zap.String("maturity", intent.Maturity),
		zap.Int64("quantity", intent.Quantity),
		zap.String("side", intent.Side),
		zap.String("topic", *topic),
	)
	fmt.Printf("Pushed intent %s to %s\n", intent.NewOrderID, *topic)
}
