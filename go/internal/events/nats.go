package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Config describes the NATS connection and the transition stream.
type Config struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // how long transitions are kept
	Replicas        int
	DuplicateWindow time.Duration

	// per-instance consumers are removed by the server after this much inactivity
	InactiveThreshold time.Duration
	AckWait           time.Duration
	MaxDeliver        int
}

func DefaultConfig() Config {
	return Config{
		URL:               nats.DefaultURL,
		StreamName:        "RACE_EVENTS",
		SubjectPrefix:     "race.events",
		MaxReconnects:     -1, // infinite
		ReconnectWait:     2 * time.Second,
		MaxAge:            24 * time.Hour,
		Replicas:          1,
		DuplicateWindow:   2 * time.Hour,
		InactiveThreshold: 5 * time.Minute,
		AckWait:           30 * time.Second,
		MaxDeliver:        5,
	}
}

// Subject returns the subject a transition of eventType is published on.
func (c Config) Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", c.SubjectPrefix, eventType)
}

// Connect dials NATS with reconnect logging.
func Connect(cfg Config, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}
