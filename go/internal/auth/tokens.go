package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Principal is the identity a verified access token resolves to.
type Principal struct {
	JudgeID int64
}

// Claims are the JWT claims issued to judges.
type Claims struct {
	JudgeID   int64  `json:"judge_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		Issuer:     "racetime",
		AccessTTL:  60 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}
}

// Tokens is a signed token pair.
type Tokens struct {
	Access    string    `json:"access"`
	Refresh   string    `json:"refresh,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenManager issues and verifies HS256 judge tokens.
type TokenManager struct {
	secret []byte
	cfg    TokenConfig
	clock  clockwork.Clock
	parser *jwt.Parser
}

// NewTokenManager creates a token manager. The secret must not be empty.
func NewTokenManager(cfg TokenConfig, clock clockwork.Clock) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenManager{
		secret: []byte(cfg.Secret),
		cfg:    cfg,
		clock:  clock,
		// expiry is checked against the injected clock in parse
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Issue signs a fresh access and refresh token for a judge.
func (m *TokenManager) Issue(judgeID int64) (Tokens, error) {
	access, expiresAt, err := m.sign(judgeID, tokenTypeAccess, m.cfg.AccessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, _, err := m.sign(judgeID, tokenTypeRefresh, m.cfg.RefreshTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{Access: access, Refresh: refresh, ExpiresAt: expiresAt}, nil
}

// Verify checks an access token and returns its principal.
func (m *TokenManager) Verify(_ context.Context, token string) (Principal, error) {
	claims, err := m.parse(token, tokenTypeAccess)
	if err != nil {
		return Principal{}, err
	}
	return Principal{JudgeID: claims.JudgeID}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (m *TokenManager) Refresh(_ context.Context, refreshToken string) (Tokens, Principal, error) {
	claims, err := m.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return Tokens{}, Principal{}, err
	}
	access, expiresAt, err := m.sign(claims.JudgeID, tokenTypeAccess, m.cfg.AccessTTL)
	if err != nil {
		return Tokens{}, Principal{}, err
	}
	return Tokens{Access: access, ExpiresAt: expiresAt}, Principal{JudgeID: claims.JudgeID}, nil
}

func (m *TokenManager) sign(judgeID int64, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := m.clock.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		JudgeID:   judgeID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.cfg.Issuer,
			Subject:   strconv.FormatInt(judgeID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *TokenManager) parse(token, wantType string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	now := m.clock.Now()
	switch {
	case !claims.VerifyExpiresAt(now, true):
		return nil, ErrTokenExpired
	case !claims.VerifyNotBefore(now, false):
		return nil, fmt.Errorf("%w: token used before its validity", ErrInvalidToken)
	case m.cfg.Issuer != "" && !claims.VerifyIssuer(m.cfg.Issuer, true):
		return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	case claims.TokenType != wantType:
		return nil, ErrWrongTokenType
	case claims.JudgeID <= 0:
		return nil, fmt.Errorf("%w: missing judge_id", ErrInvalidToken)
	}
	return claims, nil
}

// IsAuthError reports whether err came from token or credential checks.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrWrongTokenType) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInactiveJudge)
}
