/*
Package notify adapts a change-notification stream to sync triggers.

PURPOSE:
  The surrounding application emits a message whenever a payment, expense, or
  purchase changes. This consumer turns every message into a MaybeSync call.
  The message payload is deliberately ignored: the coordinator re-derives
  the missing set itself, so notification granularity and bursts don't
  matter; the cooldown guard coalesces them.

TRANSPORT-AGNOSTIC GUARDS:
  All debounce/single-flight logic lives in the coordinator, not here. This
  package only moves bytes; swap Kafka for anything that can call MaybeSync
  and the behavior is identical.

USAGE:
  consumer := notify.NewConsumer(brokers, "ledger-sync", coordinator)
  go consumer.Run(ctx)

SEE ALSO:
  - ledger/sync.go: Guard logic
  - api/scheduler.go: Timer-driven fallback trigger
*/
package notify

import (
	"context"
	"errors"
	"log"

	"github.com/segmentio/kafka-go"
	"github.com/warp/ledger-engine/ledger"
)

// DefaultTopic is the change-notification topic the business app writes to.
const DefaultTopic = "source_records_changed"

// Consumer reads change notifications and triggers reconciliation.
type Consumer struct {
	reader      *kafka.Reader
	coordinator *ledger.Coordinator
}

// NewConsumer creates a consumer in the given consumer group.
func NewConsumer(brokers []string, groupID string, coordinator *ledger.Coordinator) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   DefaultTopic,
		}),
		coordinator: coordinator,
	}
}

// Run consumes until the context is canceled. Safe to run in its own
// goroutine; errors on individual messages are logged and consumption
// continues.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		// The payload doesn't matter; the diff scanner finds what changed.
		if _, err := c.coordinator.MaybeSync(ctx); err != nil {
			log.Printf("[Notify] sync after message at offset %d: %v", msg.Offset, err)
		}
	}
}
