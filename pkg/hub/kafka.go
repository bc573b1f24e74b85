package hub

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaRelay fans broadcasts across processes through a Kafka topic. Every
// process reads with its own consumer group so each one sees every
// publication; the archiver consumes the same topic with a shared group.
type KafkaRelay struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaRelay(brokers []string, topic string) *KafkaRelay {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	// Unique group per process so the topic behaves as a broadcast bus.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     "server-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	})

	return &KafkaRelay{writer: writer, reader: reader}
}

func (k *KafkaRelay) Publish(ctx context.Context, raw []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Value: raw,
		Time:  time.Now(),
	})
}

func (k *KafkaRelay) Run(ctx context.Context, deliver func(raw []byte)) {
	for {
		m, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("hub: kafka relay read: %v", err)
			return
		}
		deliver(m.Value)
	}
}

func (k *KafkaRelay) Close() error {
	werr := k.writer.Close()
	rerr := k.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
