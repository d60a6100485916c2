package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, clock clockwork.Clock) *TokenManager {
	t.Helper()
	cfg := DefaultTokenConfig()
	cfg.Secret = "test-secret"
	m, err := NewTokenManager(cfg, clock)
	require.NoError(t, err)
	return m
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager(DefaultTokenConfig(), nil)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	m := newTestManager(t, clock)

	tokens, err := m.Issue(42)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Access)
	assert.NotEmpty(t, tokens.Refresh)
	assert.WithinDuration(t, clock.Now().Add(60*time.Minute), tokens.ExpiresAt, time.Second)

	p, err := m.Verify(context.Background(), tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.JudgeID)
}

func TestTokenManager_Expiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	m := newTestManager(t, clock)

	tokens, err := m.Issue(7)
	require.NoError(t, err)

	clock.Advance(61 * time.Minute)
	_, err = m.Verify(context.Background(), tokens.Access)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// refresh token outlives the access token
	refreshed, p, err := m.Refresh(context.Background(), tokens.Refresh)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.JudgeID)
	assert.Empty(t, refreshed.Refresh)

	_, err = m.Verify(context.Background(), refreshed.Access)
	assert.NoError(t, err)
}

func TestTokenManager_Rejections(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestManager(t, clock)
	tokens, err := m.Issue(3)
	require.NoError(t, err)

	otherCfg := DefaultTokenConfig()
	otherCfg.Secret = "another-secret"
	other, err := NewTokenManager(otherCfg, clock)
	require.NoError(t, err)
	forged, err := other.Issue(3)
	require.NoError(t, err)

	tests := []struct {
		name    string
		verify  func() error
		wantErr error
	}{
		{
			name:    "empty token",
			verify:  func() error { _, err := m.Verify(context.Background(), ""); return err },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			verify:  func() error { _, err := m.Verify(context.Background(), "not.a.jwt"); return err },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "wrong secret",
			verify:  func() error { _, err := m.Verify(context.Background(), forged.Access); return err },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "refresh used as access",
			verify:  func() error { _, err := m.Verify(context.Background(), tokens.Refresh); return err },
			wantErr: ErrWrongTokenType,
		},
		{
			name:    "access used as refresh",
			verify:  func() error { _, _, err := m.Refresh(context.Background(), tokens.Access); return err },
			wantErr: ErrWrongTokenType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.verify()
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsAuthError(err))
		})
	}
}
