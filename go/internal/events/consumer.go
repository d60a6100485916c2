package events

import (
	"context"
	"fmt"

	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Consumer delivers transitions from the stream to a local announcer,
// normally the gateway. Each gateway instance owns its consumer so every
// instance sees every transition.
type Consumer struct {
	js       jetstream.JetStream
	config   Config
	name     string
	target   competition.Announcer
	consumer jetstream.Consumer
}

// NewConsumer creates the consumer for one gateway instance. Only
// transitions published after it is created are delivered; judges that
// connect later get the current state on admission.
func NewConsumer(ctx context.Context, nc *nats.Conn, cfg Config, instanceID string, target competition.Announcer) (*Consumer, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	if err := EnsureStream(ctx, js, cfg); err != nil {
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	c := &Consumer{
		js:     js,
		config: cfg,
		name:   "gateway-" + instanceID,
		target: target,
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
		Name:              c.name,
		Description:       "Gateway instance " + instanceID,
		FilterSubject:     fmt.Sprintf("%s.>", cfg.SubjectPrefix),
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           cfg.AckWait,
		MaxDeliver:        cfg.MaxDeliver,
		InactiveThreshold: cfg.InactiveThreshold,
		ReplayPolicy:      jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	c.consumer = consumer

	log.Info().
		Str("consumer", c.name).
		Str("stream", cfg.StreamName).
		Msg("created JetStream consumer")
	return c, nil
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().Str("consumer", c.name).Msg("starting transition consumer")

	messages := make(chan jetstream.Msg, 64)
	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messages <- msg:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("consumer", c.name).Msg("transition consumer shutting down")
			return nil
		case msg := <-messages:
			if err := c.handle(ctx, msg.Data()); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process transition")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, data []byte) error {
	env, err := Decode(data)
	if err != nil {
		return err
	}
	t, err := env.Transition()
	if err != nil {
		return err
	}

	log.Debug().
		Str("event_id", env.EventID).
		Str("event_type", env.EventType).
		Int64("competition_id", env.CompetitionID).
		Msg("processing transition")

	return c.target.Announce(ctx, t)
}
