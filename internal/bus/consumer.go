package bus

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// fetcher is the slice of kafka.Reader the consumer loop uses.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler receives every decoded event, including those this instance
// produced itself. Filtering own-origin records is the handler's business.
type Handler func(ctx context.Context, e Event)

// Consumer runs the single long-lived consumption loop of one gateway
// instance. Each instance uses its own group id so that every instance
// observes every record (at-least-once).
type Consumer struct {
	r       fetcher
	handler Handler
}

func NewConsumer(brokers []string, topic, groupID string, handler Handler) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: kafka.LastOffset,
		}),
		handler: handler,
	}
}

// Run pulls records until ctx is cancelled, then releases the log handle.
// A record that fails to decode is logged, committed and skipped; the loop
// carries on with the next one.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.r.Close(); err != nil {
			log.Error().Err(err).Str("module", "bus.consumer").Msg("reader close")
		}
	}()

	log.Info().Str("module", "bus.consumer").Msg("consumer loop started")
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				log.Info().Str("module", "bus.consumer").Msg("consumer loop stopped")
				return nil
			}
			return err
		}

		e, err := Decode(msg.Value)
		if err != nil {
			log.Error().Err(err).Str("module", "bus.consumer").Int64("offset", msg.Offset).Msg("skipping undecodable record")
		} else {
			c.handler(ctx, e)
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Str("module", "bus.consumer").Int64("offset", msg.Offset).Msg("commit failed")
		}
	}
}
