package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/racetime/go/internal/auth"
	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/mcdev12/racetime/go/internal/timing"
	"github.com/rs/zerolog/log"
)

// TokenVerifier is the identity verifier used at admission.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Principal, error)
}

// JudgeFinder resolves the judge a connection is opened for.
type JudgeFinder interface {
	GetJudge(ctx context.Context, id int64) (*models.Judge, error)
}

// StateReader reads competition snapshots.
type StateReader interface {
	Read(ctx context.Context, id int64) (competition.Snapshot, error)
}

// CommandProcessor executes submit_time commands.
type CommandProcessor interface {
	SubmitTime(ctx context.Context, who timing.Principal, sub timing.Submission) (timing.Receipt, error)
}

// Config holds websocket and dispatch settings.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration // must be shorter than ReadTimeout
	SendTimeout     time.Duration // per-connection bound during a broadcast
	MaxMessageSize  int64
	SendBuffer      int
	ReadBufferSize  int
	WriteBufferSize int
	AllowedOrigins  []string // empty or "*" allows any origin
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		SendTimeout:     2 * time.Second,
		MaxMessageSize:  4096,
		SendBuffer:      64,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.ReadTimeout {
		c.PingInterval = c.ReadTimeout * 9 / 10
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	return c
}

// Gateway admits judge connections, runs their commands and fans out
// lifecycle transitions to the matching competition group.
type Gateway struct {
	hub       *Hub
	verifier  TokenVerifier
	judges    JudgeFinder
	state     StateReader
	processor CommandProcessor
	cfg       Config
	clock     clockwork.Clock
	upgrader  websocket.Upgrader

	// serializes announcements and remembers the last one per competition
	announceMu sync.Mutex
	announced  map[int64]announcement
}

type announcement struct {
	kind competition.TransitionKind
	at   time.Time
}

// New creates a gateway.
func New(cfg Config, verifier TokenVerifier, judges JudgeFinder, state StateReader, processor CommandProcessor, clock clockwork.Clock) *Gateway {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg = cfg.withDefaults()
	g := &Gateway{
		hub:       NewHub(cfg.SendTimeout),
		verifier:  verifier,
		judges:    judges,
		state:     state,
		processor: processor,
		cfg:       cfg,
		clock:     clock,
		announced: make(map[int64]announcement),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// Hub exposes the connection registry.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// TransitionStarted announces that a competition was started. It is called
// after the state change has been committed.
func (g *Gateway) TransitionStarted(ctx context.Context, competitionID int64) error {
	snap, err := g.state.Read(ctx, competitionID)
	if err != nil {
		return fmt.Errorf("read competition %d: %w", competitionID, err)
	}
	if !snap.InProgress() {
		return fmt.Errorf("competition %d is %s, not running", competitionID, snap.Status())
	}
	return g.Announce(ctx, competition.Transition{Kind: competition.TransitionStarted, Snapshot: snap})
}

// TransitionStopped announces that a competition was stopped.
func (g *Gateway) TransitionStopped(ctx context.Context, competitionID int64) error {
	snap, err := g.state.Read(ctx, competitionID)
	if err != nil {
		return fmt.Errorf("read competition %d: %w", competitionID, err)
	}
	if snap.InProgress() {
		return fmt.Errorf("competition %d is still running", competitionID)
	}
	return g.Announce(ctx, competition.Transition{Kind: competition.TransitionStopped, Snapshot: snap})
}

// Announce broadcasts t to the competition group once. A transition already
// announced (same kind and timestamp) is ignored, so redeliveries from the
// event stream or a reconcile pass reach judges only once.
func (g *Gateway) Announce(_ context.Context, t competition.Transition) error {
	id := t.Snapshot.ID
	a := announcement{kind: t.Kind, at: t.At()}

	g.announceMu.Lock()
	defer g.announceMu.Unlock()

	if last, ok := g.announced[id]; ok && last.kind == a.kind && !a.at.IsZero() && last.at.Equal(a.at) {
		log.Debug().
			Int64("competition_id", id).
			Str("transition", t.Kind.String()).
			Msg("transition already announced")
		return nil
	}
	g.announced[id] = a

	data, err := json.Marshal(TransitionEvent(t))
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}
	delivered := g.hub.Broadcast(id, data)

	log.Info().
		Int64("competition_id", id).
		Str("transition", t.Kind.String()).
		Int("delivered", delivered).
		Msg("transition announced")
	return nil
}

// Shutdown closes every connection with 1001 (going away).
func (g *Gateway) Shutdown() {
	g.hub.CloseAll(websocket.CloseGoingAway, "server shutting down")
}

// Run blocks until ctx is done, then closes all connections.
func (g *Gateway) Run(ctx context.Context) error {
	<-ctx.Done()
	log.Info().Msg("gateway shutting down")
	g.Shutdown()
	return nil
}

// handleMessage executes one inbound message and returns the response.
func (g *Gateway) handleMessage(ctx context.Context, c *Connection, raw []byte) []byte {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return g.encode(c, errorMessage{Type: TypeError, Message: "invalid JSON message", Code: timing.KindValidation})
	}

	switch msg.Type {
	case TypePing:
		return g.encode(c, pongMessage{Type: TypePong, Message: "pong", Time: g.clock.Now().UTC()})

	case TypeSubmitTime:
		return g.encode(c, g.submitTime(ctx, c, msg))

	default:
		return g.encode(c, errorMessage{
			Type:    TypeError,
			Message: fmt.Sprintf("unknown message type: %s", msg.Type),
			Code:    timing.KindValidation,
		})
	}
}

func (g *Gateway) submitTime(ctx context.Context, c *Connection, msg clientMessage) any {
	if msg.ElapsedMs == nil {
		return errorMessage{Type: TypeError, Message: "elapsedMs is required", Code: timing.KindValidation}
	}

	sub := timing.Submission{TeamID: msg.TeamID, ElapsedMs: *msg.ElapsedMs}
	if msg.RecordID != nil {
		sub.RecordID = *msg.RecordID
	}
	if msg.Timestamp != nil {
		sub.Timestamp = *msg.Timestamp
	}

	receipt, err := g.processor.SubmitTime(ctx, timing.Principal{JudgeID: c.JudgeID, CompetitionID: c.CompetitionID}, sub)
	if err != nil {
		kind := timing.KindOf(err)
		message := err.Error()
		if kind == timing.KindStorage {
			log.Error().
				Err(err).
				Str("connection_id", c.ID).
				Int64("team_id", msg.TeamID).
				Msg("failed to store time record")
			message = timing.ErrStorage.Error()
		}
		return errorMessage{Type: TypeError, Message: message, Code: kind}
	}
	return recordedMessage{Type: TypeTimeRecorded, Record: receipt.View()}
}

func (g *Gateway) encode(c *Connection, v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal response")
		return nil
	}
	return data
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 || slices.Contains(g.cfg.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(g.cfg.AllowedOrigins, origin)
}
