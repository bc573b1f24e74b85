package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/notedhq/noted/pkg/archive"
	"github.com/notedhq/noted/pkg/model"
	"github.com/segmentio/kafka-go"
)

// relayEnvelope mirrors the hub's relay wire format; the archiver only needs
// the body.
type relayEnvelope struct {
	Origin  string          `json:"origin"`
	GroupID int64           `json:"group_id"`
	Body    json.RawMessage `json:"body"`
}

type Consumer struct {
	reader  *kafka.Reader
	archive *archive.Archive
}

func NewConsumer(brokers []string, topic, groupID string, a *archive.Archive) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: r, archive: a}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error reading message: %v. Retrying in 1s...", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var env relayEnvelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			log.Printf("Failed to unmarshal envelope: %v", err)
			continue
		}

		var ev model.ChatEvent
		if err := json.Unmarshal(env.Body, &ev); err != nil {
			log.Printf("Failed to unmarshal chat event: %v", err)
			continue
		}

		// Only message events are archived; error frames never reach the
		// relay, but skip anything unexpected.
		if ev.Type != model.EventMessage {
			log.Printf("Skipping %q event for group %d", ev.Type, env.GroupID)
			continue
		}

		if err := c.archive.Insert(ev); err != nil {
			log.Printf("Failed to archive message %d: %v", ev.ID, err)
		} else {
			log.Printf("Archived message %d for group %d", ev.ID, ev.GroupID)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
