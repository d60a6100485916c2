package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/racetime/go/internal/judges"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJudges struct {
	byID map[int64]*models.Judge
}

func (f *fakeJudges) GetJudge(_ context.Context, id int64) (*models.Judge, error) {
	j, ok := f.byID[id]
	if !ok {
		return nil, judges.ErrNotFound
	}
	return j, nil
}

func (f *fakeJudges) GetJudgeByUsername(_ context.Context, username string) (*models.Judge, error) {
	for _, j := range f.byID {
		if j.Username == username {
			return j, nil
		}
	}
	return nil, judges.ErrNotFound
}

func newTestService(t *testing.T) (*Service, *fakeJudges) {
	t.Helper()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	store := &fakeJudges{byID: map[int64]*models.Judge{
		1: {ID: 1, CompetitionID: 10, Username: "ana", PasswordHash: hash, Active: true},
		2: {ID: 2, CompetitionID: 10, Username: "luis", PasswordHash: hash, Active: false},
	}}
	return NewService(newTestManager(t, clockwork.NewFakeClock()), store), store
}

func TestService_Login(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tokens, judge, err := svc.Login(ctx, "ana", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(1), judge.ID)

	p, err := svc.Tokens().Verify(ctx, tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.JudgeID)

	_, _, err = svc.Login(ctx, "ana", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "luis", "s3cret")
	assert.ErrorIs(t, err, ErrInactiveJudge)
}

func TestService_RefreshRechecksJudge(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	tokens, _, err := svc.Login(ctx, "ana", "s3cret")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, tokens.Refresh)
	require.NoError(t, err)

	store.byID[1].Active = false
	_, err = svc.Refresh(ctx, tokens.Refresh)
	assert.ErrorIs(t, err, ErrInactiveJudge)
}

func TestRequireJudge(t *testing.T) {
	svc, _ := newTestService(t)
	tokens, _, err := svc.Login(context.Background(), "ana", "s3cret")
	require.NoError(t, err)

	var seen *models.Judge
	h := svc.RequireJudge(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = JudgeFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "Bearer " + tokens.Refresh, http.StatusUnauthorized},
		{"valid", "Bearer " + tokens.Access, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
	require.NotNil(t, seen)
	assert.Equal(t, "ana", seen.Username)
}

func TestRequireAdminKey(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		key        string
		sent       string
		wantStatus int
	}{
		{"matching key", "k1", "k1", http.StatusOK},
		{"wrong key", "k1", "k2", http.StatusForbidden},
		{"missing key", "k1", "", http.StatusForbidden},
		{"disabled", "", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/competitions/1/start", nil)
			if tt.sent != "" {
				req.Header.Set(AdminKeyHeader, tt.sent)
			}
			rec := httptest.NewRecorder()
			RequireAdminKey(tt.key)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandler_Login(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"ok", `{"username":"ana","password":"s3cret"}`, http.StatusOK},
		{"bad password", `{"username":"ana","password":"x"}`, http.StatusUnauthorized},
		{"inactive", `{"username":"luis","password":"s3cret"}`, http.StatusForbidden},
		{"missing fields", `{"username":"ana"}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.HandleLogin(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"access"`)
				assert.Contains(t, rec.Body.String(), `"competitionId":10`)
			}
		})
	}
}
