package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/racetime/go/internal/httputil"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes mounts the judge websocket and the stats endpoint.
func (g *Gateway) RegisterRoutes(r chi.Router) {
	r.Get("/ws/judges/{judgeID}", g.HandleJudgeConnection)
	r.Get("/ws/stats", g.HandleStats)
}

// HandleJudgeConnection handles GET /ws/judges/{judgeID}?token=...
// The upgrade always happens first so refusals can carry a close code.
func (g *Gateway) HandleJudgeConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	judgeID, err := httputil.IDParam(r, "judgeID")
	if err != nil {
		g.refuse(ws, reject(CloseMalformedRequest, "invalid judge id", err))
		return
	}

	ctx := r.Context()
	admission, err := g.Admit(ctx, r.URL.Query().Get("token"), judgeID)
	if err != nil {
		g.refuse(ws, err)
		return
	}

	c := newConnection(ws, admission.Judge.ID, admission.Judge.CompetitionID, g.cfg, g.clock.Now())

	// the snapshot is re-read under the group lock so it cannot miss a
	// transition broadcast to the group; the read is bounded because
	// broadcasts to the group wait on the same lock
	err = g.hub.Join(c, func() error {
		readCtx, cancel := context.WithTimeout(ctx, g.cfg.WriteTimeout)
		defer cancel()
		snap, err := g.activeSnapshot(readCtx, c.CompetitionID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(establishedEvent(snap))
		if err != nil {
			return reject(CloseInternalError, "internal error", err)
		}
		if c.trySend(data) != sendOK {
			return reject(CloseInternalError, "internal error", errors.New("send buffer unavailable"))
		}
		return nil
	})
	if err != nil {
		g.refuse(ws, err)
		return
	}

	log.Info().
		Str("connection_id", c.ID).
		Int64("judge_id", c.JudgeID).
		Int64("competition_id", c.CompetitionID).
		Msg("judge connected")

	go c.writePump()
	c.readPump(ctx, g.handleMessage)
	g.hub.Leave(c)

	log.Info().
		Str("connection_id", c.ID).
		Int64("judge_id", c.JudgeID).
		Dur("duration", g.clock.Since(c.ConnectedAt)).
		Msg("judge disconnected")
}

// HandleStats handles GET /ws/stats
func (g *Gateway) HandleStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, g.hub.Stats())
}

// refuse closes ws with the code carried by err.
func (g *Gateway) refuse(ws *websocket.Conn, err error) {
	var rej *RejectError
	if !errors.As(err, &rej) {
		rej = reject(CloseInternalError, "internal error", err)
	}

	event := log.Info()
	if rej.Code == CloseInternalError {
		event = log.Error()
	}
	event.Err(rej.Err).Int("code", rej.Code).Str("reason", rej.Reason).Msg("connection rejected")

	msg := websocket.FormatCloseMessage(rej.Code, rej.Reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(g.cfg.WriteTimeout))
	ws.Close()
}
