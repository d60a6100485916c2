package timing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mcdev12/racetime/go/internal/auth"
	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/mcdev12/racetime/go/internal/httputil"
	"github.com/mcdev12/racetime/go/internal/models"
)

// TeamLister lists the teams assigned to a judge.
type TeamLister interface {
	ListTeamsByJudge(ctx context.Context, judgeID int64) ([]models.Team, error)
}

// Handler serves the judge-facing HTTP routes. Every route expects
// auth.Service.RequireJudge to have run.
type Handler struct {
	processor *Processor
	state     StateReader
	teams     TeamLister
}

// NewHandler creates a new timing handler
func NewHandler(processor *Processor, state StateReader, teams TeamLister) *Handler {
	return &Handler{processor: processor, state: state, teams: teams}
}

// RegisterRoutes mounts the judge routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.HandleMe)
	r.Post("/records/batch", h.HandleBatch)
	r.Get("/teams/{teamID}/records", h.HandleTeamRecords)
}

type meResponse struct {
	Judge       judgeView         `json:"judge"`
	Competition *competition.View `json:"competition"`
	Teams       []TeamView        `json:"teams"`
}

type judgeView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// HandleMe handles GET /me
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	judge, ok := auth.JudgeFrom(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, ErrAuth.Error())
		return
	}

	resp := meResponse{
		Judge: judgeView{ID: judge.ID, Username: judge.Username, Name: judge.FullName()},
		Teams: []TeamView{},
	}

	snap, err := h.state.Read(r.Context(), judge.CompetitionID)
	switch {
	case err == nil:
		view := snap.View()
		resp.Competition = &view
	case !errors.Is(err, competition.ErrNotFound):
		httputil.ServerError(w, r, err)
		return
	}

	teams, err := h.teams.ListTeamsByJudge(r.Context(), judge.ID)
	if err != nil {
		httputil.ServerError(w, r, err)
		return
	}
	for _, t := range teams {
		resp.Teams = append(resp.Teams, NewTeamView(t))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

type batchRequest struct {
	TeamID  int64                `json:"teamId"`
	Records []batchRecordRequest `json:"records"`
}

type batchRecordRequest struct {
	RecordID  *uuid.UUID `json:"recordId"`
	Timestamp *time.Time `json:"timestamp"`
	ElapsedMs *int64     `json:"elapsedMs"`
}

type batchResponse struct {
	TeamID    int64                `json:"teamId"`
	Received  int                  `json:"received"`
	Processed int                  `json:"processed"`
	Saved     int                  `json:"saved"`
	Failed    int                  `json:"failed"`
	Results   []batchEntryResponse `json:"results"`
}

type batchEntryResponse struct {
	Index  int         `json:"index"`
	Status string      `json:"status"`
	Record *RecordView `json:"record,omitempty"`
	Error  string      `json:"error,omitempty"`
	Kind   Kind        `json:"kind,omitempty"`
}

// HandleBatch handles POST /records/batch
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	judge, ok := auth.JudgeFrom(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, ErrAuth.Error())
		return
	}

	var req batchRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err)
		return
	}
	if req.TeamID <= 0 {
		httputil.Error(w, http.StatusBadRequest, "teamId is required")
		return
	}
	if len(req.Records) == 0 {
		httputil.Error(w, http.StatusBadRequest, "records must not be empty")
		return
	}

	entries := make([]BatchEntry, len(req.Records))
	for i, rec := range req.Records {
		entries[i].ElapsedMs = rec.ElapsedMs
		if rec.RecordID != nil {
			entries[i].RecordID = *rec.RecordID
		}
		if rec.Timestamp != nil {
			entries[i].Timestamp = *rec.Timestamp
		}
	}

	who := Principal{JudgeID: judge.ID, CompetitionID: judge.CompetitionID}
	result := h.processor.SubmitBatch(r.Context(), who, req.TeamID, entries)

	resp := batchResponse{
		TeamID:    result.TeamID,
		Received:  result.Received,
		Processed: len(result.Outcomes),
		Saved:     result.Saved(),
		Failed:    result.Failed(),
		Results:   make([]batchEntryResponse, 0, len(result.Outcomes)),
	}
	for _, o := range result.Outcomes {
		entry := batchEntryResponse{Index: o.Index}
		switch {
		case o.Err != nil:
			entry.Status = "failed"
			entry.Error = o.Err.Error()
			entry.Kind = KindOf(o.Err)
		case o.Receipt.Duplicate:
			entry.Status = "duplicate"
		default:
			entry.Status = "saved"
		}
		if o.OK() {
			view := o.Receipt.View()
			entry.Record = &view
		}
		resp.Results = append(resp.Results, entry)
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

type teamRecordsResponse struct {
	TeamID     int64        `json:"teamId"`
	TeamName   string       `json:"teamName"`
	TeamNumber int          `json:"teamNumber"`
	Total      int          `json:"total"`
	Max        int          `json:"max"`
	CanSubmit  bool         `json:"canSubmit"`
	Records    []RecordView `json:"records"`
}

// HandleTeamRecords handles GET /teams/{teamID}/records
func (h *Handler) HandleTeamRecords(w http.ResponseWriter, r *http.Request) {
	judge, ok := auth.JudgeFrom(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, ErrAuth.Error())
		return
	}

	teamID, err := httputil.IDParam(r, "teamID")
	if err != nil {
		httputil.BadRequest(w, err)
		return
	}

	status, err := h.processor.TeamStatus(r.Context(), Principal{JudgeID: judge.ID, CompetitionID: judge.CompetitionID}, teamID)
	if err != nil {
		if errors.Is(err, ErrOwnership) {
			httputil.Error(w, http.StatusForbidden, err.Error())
			return
		}
		httputil.ServerError(w, r, err)
		return
	}

	resp := teamRecordsResponse{
		TeamID:     status.Team.ID,
		TeamName:   status.Team.Name,
		TeamNumber: status.Team.Number,
		Total:      len(status.Records),
		Max:        status.Max,
		CanSubmit:  status.CanSubmit(),
		Records:    make([]RecordView, 0, len(status.Records)),
	}
	for _, rec := range status.Records {
		resp.Records = append(resp.Records, NewRecordView(rec, &status.Team))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
