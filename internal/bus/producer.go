package bus

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// writer is the slice of kafka.Writer the producer uses.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer appends events to the shared log. A publish resolves only after
// the log acknowledges durable receipt from all in-sync replicas; a failed
// ack surfaces to the caller and is not retried here.
type Producer struct {
	w writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, e Event) error {
	key, value, err := Encode(e)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return fmt.Errorf("bus publish %s: %w", e.Kind, err)
	}
	log.Debug().Str("module", "bus.producer").Str("kind", string(e.Kind)).Str("room", string(e.RoomID())).Msg("event published")
	return nil
}

func (p *Producer) Close() error {
	return p.w.Close()
}
