// Package config loads process configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Server configures the combined REST + websocket backend.
type Server struct {
	Addr     string `env:"NOTED_ADDR" envDefault:":8080"`
	DBPath   string `env:"NOTED_DB" envDefault:"noted.db"`
	MediaDir string `env:"NOTED_MEDIA_DIR" envDefault:"media"`

	JWTSecret string `env:"NOTED_JWT_SECRET" envDefault:"dev-secret-change-me"`

	// Relay selects the cross-process fan-out backend: "local" (none),
	// "redis" or "kafka".
	Relay        string   `env:"NOTED_RELAY" envDefault:"local"`
	RedisAddr    string   `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"chat-events"`

	// Presence is optional; leave REDIS_PRESENCE unset to disable the
	// connected-users endpoint.
	Presence bool `env:"REDIS_PRESENCE" envDefault:"false"`
}

// Archiver configures the kafka -> scylla archive sink.
type Archiver struct {
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"chat-events"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"archiver-group"`
	ScyllaHosts  []string `env:"SCYLLA_HOSTS" envSeparator:"," envDefault:"localhost:9042"`
	Keyspace     string   `env:"SCYLLA_KEYSPACE" envDefault:"chat"`
}

func LoadServer() (Server, error) {
	var c Server
	if err := env.Parse(&c); err != nil {
		return Server{}, fmt.Errorf("parse server env: %w", err)
	}
	return c, nil
}

func LoadArchiver() (Archiver, error) {
	var c Archiver
	if err := env.Parse(&c); err != nil {
		return Archiver{}, fmt.Errorf("parse archiver env: %w", err)
	}
	return c, nil
}
