package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/ledger"
	"github.com/ismaiel54/futures-fix-trader/internal/logging"
	"github.com/ismaiel54/futures-fix-trader/internal/msg"
)

// Consumes the ledger status stream for a fixed window and checks that every
// NewOrderId left PENDING exactly once.
func main() {
	var (
		duration = flag.Duration("duration", 30*time.Second, "How long to consume")
		brokers  = flag.String("brokers", "127.0.0.1:9092", "Kafka broker addresses")
		topic    = flag.String("topic", msg.TopicOrdersStatus, "Status topic")
		group    = flag.String("group", "verifier-v1", "Consumer group")
	)
	flag.Parse()

	logger, err := logging.NewLogger("verifier", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	brokerList := strings.Split(*brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	logger.Info("starting verifier",
		zap.Duration("duration", *duration),
		zap.Strings("brokers", brokerList),
		zap.String("topic", *topic),
	)

	consumer, err := msg.NewConsumer(brokerList, *group, []string{*topic}, logger)
	if err != nil {
		logger.Fatal("failed to create consumer", zap.Error(err))
	}
	defer consumer.Close()

	statuses := make(map[string][]string)
	counts := make(map[string]int)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	err = consumer.Run(ctx, func(ctx context.Context, rec msg.Record) error {
		var status msg.StatusMsg
		if err := json.Unmarshal(rec.Value, &status); err != nil {
			logger.Warn("failed to unmarshal status", zap.Error(err))
			return nil
		}

		statuses[status.NewOrderID] = append(statuses[status.NewOrderID], status.Status)
		counts[status.Status]++

		logger.Debug("consumed status",
			zap.String("new_order_id", status.NewOrderID),
			zap.String("status", status.Status),
			zap.Int32("partition", rec.Partition),
			zap.Int64("offset", rec.Offset),
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("consumer error", zap.Error(err))
	}

	var repeated []string
	for id, seen := range statuses {
		if len(seen) > 1 {
			repeated = append(repeated, id)
		}
	}
	sort.Strings(repeated)

	fmt.Println("\n=== Verification Results ===")
	fmt.Printf("Intents seen: %d\n", len(statuses))
	for _, s := range []ledger.Status{ledger.StatusFilled, ledger.StatusRejected, ledger.StatusInvalid} {
		fmt.Printf("  %-8s %d\n", s, counts[string(s)])
	}
	fmt.Printf("Intents with repeated status changes: %d\n", len(repeated))

	if len(repeated) > 0 {
		for _, id := range repeated {
			fmt.Printf("  NewOrderId: %s, Statuses: %s\n", id, strings.Join(statuses[id], ","))
		}
		fmt.Println("\nVERIFICATION FAILED: an intent left PENDING more than once")
		os.Exit(1)
	}

	fmt.Println("\nVERIFICATION PASSED")
}
