package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/racetime/go/internal/httputil"
)

var errMissingFields = errors.New("username and password are required")

// Handler serves login and token refresh.
type Handler struct {
	service *Service
}

// NewHandler creates a new auth handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts /auth/login and /auth/refresh.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/refresh", h.HandleRefresh)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type judgeView struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	CompetitionID int64  `json:"competitionId"`
}

type loginResponse struct {
	Tokens
	Judge judgeView `json:"judge"`
}

// HandleLogin handles POST /auth/login
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.BadRequest(w, errMissingFields)
		return
	}

	tokens, judge, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Tokens: tokens,
		Judge: judgeView{
			ID:            judge.ID,
			Username:      judge.Username,
			Name:          judge.FullName(),
			Email:         judge.Email,
			CompetitionID: judge.CompetitionID,
		},
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// HandleRefresh handles POST /auth/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.Refresh)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInactiveJudge):
		httputil.Error(w, http.StatusForbidden, err.Error())
	case IsAuthError(err):
		httputil.Error(w, http.StatusUnauthorized, err.Error())
	default:
		httputil.ServerError(w, r, err)
	}
}
