package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/racetime/go/internal/auth"
	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/mcdev12/racetime/go/internal/dbconfig"
	"github.com/mcdev12/racetime/go/internal/events"
	"github.com/mcdev12/racetime/go/internal/gateway"
	"github.com/mcdev12/racetime/go/internal/health"
	"github.com/mcdev12/racetime/go/internal/judges"
	"github.com/mcdev12/racetime/go/internal/teams"
	"github.com/mcdev12/racetime/go/internal/timing"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
	NATS  *nats.Conn

	Auth         *auth.Service
	AuthHandler  *auth.Handler
	Competitions *competition.Handler
	Timing       *timing.Handler
	Gateway      *gateway.Gateway
	Health       *health.Checker

	// set only when NATS is configured
	Consumer *events.Consumer
	// set only in external admin mode
	Watcher *competition.Watcher
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Handler layer
	clock := clockwork.NewRealClock()
	s := &Services{}

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := setupDatabase(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	s.Pool = pool

	if s.Redis, err = setupRedis(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}

	// Competitions
	var cache competition.Cache
	if s.Redis != nil {
		cache = competition.NewRedisCache(s.Redis, cfg.Redis.SnapshotTTL)
	}
	store := competition.NewStore(competition.NewRepository(pool), cache)

	// Judges and teams
	judgesRepo := judges.NewRepository(pool)
	teamsRepo := teams.NewRepository(pool)

	// Auth
	tokens, err := auth.NewTokenManager(cfg.tokenConfig(), clock)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Auth = auth.NewService(tokens, judgesRepo)
	s.AuthHandler = auth.NewHandler(s.Auth)

	// Timing
	processor := timing.NewProcessor(store, teamsRepo, timing.NewRepository(pool), clock, cfg.timingConfig())
	s.Timing = timing.NewHandler(processor, store, teamsRepo)

	// Gateway
	s.Gateway = gateway.New(cfg.gatewayConfig(), tokens, judgesRepo, store, processor, clock)

	// Transitions are broadcast in-process unless NATS carries them to every instance.
	var announcer competition.Announcer = s.Gateway
	if cfg.NATS.URL != "" {
		if err := s.setupEvents(ctx, cfg, clock, &announcer); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.Competitions = competition.NewHandler(competition.NewApp(store, announcer, clock))

	if cfg.Admin.External {
		wcfg := competition.DefaultWatcherConfig()
		wcfg.DatabaseURL = dbCfg.DSN()
		if s.Watcher, err = competition.NewWatcher(store, s.Gateway, wcfg); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to start competition watcher: %w", err)
		}
	}

	var redisClient redis.UniversalClient
	if s.Redis != nil {
		redisClient = s.Redis
	}
	s.Health = health.NewChecker(pool, redisClient, s.NATS, s.Gateway.Hub())

	return s, nil
}

func (s *Services) setupEvents(ctx context.Context, cfg *Config, clock clockwork.Clock, announcer *competition.Announcer) error {
	ecfg := events.DefaultConfig()
	ecfg.URL = cfg.NATS.URL
	if cfg.NATS.Stream != "" {
		ecfg.StreamName = cfg.NATS.Stream
	}
	if cfg.NATS.SubjectPrefix != "" {
		ecfg.SubjectPrefix = cfg.NATS.SubjectPrefix
	}

	instanceID := uuid.NewString()
	nc, err := events.Connect(ecfg, "racetime-"+instanceID)
	if err != nil {
		return err
	}
	s.NATS = nc

	publisher, err := events.NewPublisher(ctx, nc, ecfg, clock)
	if err != nil {
		return err
	}
	if s.Consumer, err = events.NewConsumer(ctx, nc, ecfg, instanceID, s.Gateway); err != nil {
		return err
	}
	*announcer = publisher

	log.Info().
		Str("url", ecfg.URL).
		Str("stream", ecfg.StreamName).
		Str("instance_id", instanceID).
		Msg("transitions fan out through JetStream")
	return nil
}

// Close releases the connections opened by setupServices.
func (s *Services) Close() {
	if s.NATS != nil {
		s.NATS.Close()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
