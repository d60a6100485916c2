package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/racetime/go/internal/httputil"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Status is the outcome of one readiness check.
type Status struct {
	Healthy           bool     `json:"healthy"`
	DatabaseConnected bool     `json:"databaseConnected"`
	RedisConnected    *bool    `json:"redisConnected,omitempty"`
	NATSConnected     *bool    `json:"natsConnected,omitempty"`
	Connections       int      `json:"connections"`
	Errors            []string `json:"errors"`
}

// ConnectionCounter reports live judge connections.
type ConnectionCounter interface {
	ConnectionCount() int
}

// Checker checks the server's dependencies. Redis and NATS are optional.
type Checker struct {
	db          *pgxpool.Pool
	redis       redis.UniversalClient
	nats        *nats.Conn
	connections ConnectionCounter
	timeout     time.Duration
}

func NewChecker(db *pgxpool.Pool, redisClient redis.UniversalClient, nc *nats.Conn, connections ConnectionCounter) *Checker {
	return &Checker{
		db:          db,
		redis:       redisClient,
		nats:        nc,
		connections: connections,
		timeout:     5 * time.Second,
	}
}

func (h *Checker) Check(ctx context.Context) Status {
	status := Status{Healthy: true, Errors: []string{}}

	fail := func(msg string) {
		status.Healthy = false
		status.Errors = append(status.Errors, msg)
	}

	if h.db == nil {
		fail("database not configured")
	} else if err := h.db.Ping(ctx); err != nil {
		fail(fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.redis != nil {
		ok := true
		if err := h.redis.Ping(ctx).Err(); err != nil {
			ok = false
			fail(fmt.Sprintf("redis ping failed: %v", err))
		}
		status.RedisConnected = &ok
	}

	if h.nats != nil {
		ok := h.nats.IsConnected()
		if !ok {
			fail("NATS disconnected")
		}
		status.NATSConnected = &ok
	}

	if h.connections != nil {
		status.Connections = h.connections.ConnectionCount()
	}
	return status
}

// ServeHTTP serves the readiness report; 503 when any check fails.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, status)
}

// Live always answers 200 while the process serves HTTP.
func Live(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics renders the last check in Prometheus text format.
func (h *Checker) Metrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	status := h.Check(ctx)

	var b strings.Builder
	gauge := func(name, help string, value int) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, value)
	}
	gauge("racetime_healthy", "Whether every dependency check passed", boolToInt(status.Healthy))
	gauge("racetime_database_connected", "Whether the database answered a ping", boolToInt(status.DatabaseConnected))
	if status.RedisConnected != nil {
		gauge("racetime_redis_connected", "Whether redis answered a ping", boolToInt(*status.RedisConnected))
	}
	if status.NATSConnected != nil {
		gauge("racetime_nats_connected", "Whether the NATS connection is up", boolToInt(*status.NATSConnected))
	}
	gauge("racetime_websocket_connections", "Live judge connections", status.Connections)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte(b.String()))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
