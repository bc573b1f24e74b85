package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/notedhq/noted/pkg/archive"
	"github.com/notedhq/noted/pkg/config"
)

func main() {
	cfg, err := config.LoadArchiver()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	session, err := archive.NewSession(cfg.ScyllaHosts, cfg.Keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	consumer := NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, archive.New(session))
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Printf("Archiver consuming %s...", cfg.KafkaTopic)
	consumer.Consume(ctx)
}
