package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/notedhq/noted/pkg/config"
	"github.com/notedhq/noted/pkg/hub"
	"github.com/notedhq/noted/pkg/store"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		log.Fatalf("Failed to create media dir: %v", err)
	}

	h := hub.New()

	switch cfg.Relay {
	case "local", "":
		// Single-process fan-out; nothing to wire.
	case "redis":
		h.WithRelay(hub.NewRedisRelay(cfg.RedisAddr))
	case "kafka":
		h.WithRelay(hub.NewKafkaRelay(cfg.KafkaBrokers, cfg.KafkaTopic))
	default:
		log.Fatalf("Unknown relay backend %q", cfg.Relay)
	}

	var presence *hub.Presence
	if cfg.Presence {
		presence = hub.NewPresence(cfg.RedisAddr)
		h.WithPresence(presence)
	}

	go h.Run(context.Background())

	srv := newServer(cfg, st, h, presence)

	log.Printf("Server starting on %s...", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, srv.routes()); err != nil {
		log.Fatal(err)
	}
}
