package competition

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/racetime/go/internal/httputil"
)

// Handler exposes competition state and the administrative transitions over HTTP.
type Handler struct {
	app *App
}

// NewHandler creates a new competition handler
func NewHandler(app *App) *Handler {
	return &Handler{app: app}
}

// RegisterReadRoutes mounts the read-only routes.
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/competitions", h.HandleList)
	r.Get("/competitions/{competitionID}", h.HandleGet)
}

// RegisterAdminRoutes mounts the lifecycle transitions.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/competitions/{competitionID}/start", h.transition(h.app.Start))
	r.Post("/competitions/{competitionID}/stop", h.transition(h.app.Stop))
	r.Post("/competitions/{competitionID}/activate", h.transition(func(ctx context.Context, id int64) (Snapshot, error) {
		return h.app.SetActive(ctx, id, true)
	}))
	r.Post("/competitions/{competitionID}/deactivate", h.transition(func(ctx context.Context, id int64) (Snapshot, error) {
		return h.app.SetActive(ctx, id, false)
	}))
}

// HandleList handles GET /competitions
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.app.List(r.Context())
	if err != nil {
		httputil.ServerError(w, r, err)
		return
	}
	views := make([]View, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, s.View())
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleGet handles GET /competitions/{competitionID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "competitionID")
	if err != nil {
		httputil.BadRequest(w, err)
		return
	}
	snap, err := h.app.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.View())
}

func (h *Handler) transition(fn func(ctx context.Context, id int64) (Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httputil.IDParam(r, "competitionID")
		if err != nil {
			httputil.BadRequest(w, err)
			return
		}
		snap, err := fn(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, snap.View())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyRunning),
		errors.Is(err, ErrNotActive),
		errors.Is(err, ErrAnotherRunning),
		errors.Is(err, ErrNotRunning),
		errors.Is(err, ErrStillRunning):
		httputil.Error(w, http.StatusConflict, err.Error())
	default:
		httputil.ServerError(w, r, err)
	}
}
