package competition_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestHandler_Routes(t *testing.T) {
	f := newAppFixture(t,
		models.Competition{ID: 1, Name: "Regata", Active: true},
		models.Competition{ID: 2, Name: "Archivada", Active: false},
	)
	h := competition.NewHandler(f.app)
	r := chi.NewRouter()
	h.RegisterReadRoutes(r)
	h.RegisterAdminRoutes(r)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"list", http.MethodGet, "/competitions", http.StatusOK, `"status":"scheduled"`},
		{"get", http.MethodGet, "/competitions/1", http.StatusOK, `"inProgress":false`},
		{"get missing", http.MethodGet, "/competitions/9", http.StatusNotFound, ""},
		{"get bad id", http.MethodGet, "/competitions/x", http.StatusBadRequest, ""},
		{"start", http.MethodPost, "/competitions/1/start", http.StatusOK, `"inProgress":true`},
		{"start again", http.MethodPost, "/competitions/1/start", http.StatusConflict, ""},
		{"start inactive", http.MethodPost, "/competitions/2/start", http.StatusConflict, ""},
		{"deactivate running", http.MethodPost, "/competitions/1/deactivate", http.StatusConflict, ""},
		{"stop", http.MethodPost, "/competitions/1/stop", http.StatusOK, `"status":"finished"`},
		{"stop again", http.MethodPost, "/competitions/1/stop", http.StatusConflict, ""},
		{"activate", http.MethodPost, "/competitions/2/activate", http.StatusOK, `"active":true`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
	assert.Len(t, f.announcer.got, 2)
}
