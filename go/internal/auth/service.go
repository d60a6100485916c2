package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/racetime/go/internal/judges"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// JudgeFinder resolves judges for login and request authentication.
type JudgeFinder interface {
	GetJudge(ctx context.Context, id int64) (*models.Judge, error)
	GetJudgeByUsername(ctx context.Context, username string) (*models.Judge, error)
}

// Service authenticates judges.
type Service struct {
	tokens *TokenManager
	judges JudgeFinder

	// compared against when the username is unknown so both paths cost a bcrypt run
	dummyHash []byte
}

// NewService creates a new auth service
func NewService(tokens *TokenManager, judges JudgeFinder) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("racetime-dummy-password"), bcrypt.DefaultCost)
	return &Service{tokens: tokens, judges: judges, dummyHash: dummy}
}

// HashPassword returns a bcrypt hash suitable for the judges table.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks a username and password and issues a token pair.
func (s *Service) Login(ctx context.Context, username, password string) (Tokens, *models.Judge, error) {
	judge, err := s.judges.GetJudgeByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, judges.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return Tokens{}, nil, ErrInvalidCredentials
		}
		return Tokens{}, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(judge.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("username", username).Msg("login rejected: bad password")
		return Tokens{}, nil, ErrInvalidCredentials
	}
	if !judge.Active {
		log.Warn().Int64("judge_id", judge.ID).Msg("login rejected: judge inactive")
		return Tokens{}, nil, ErrInactiveJudge
	}

	tokens, err := s.tokens.Issue(judge.ID)
	if err != nil {
		return Tokens{}, nil, err
	}

	log.Info().Int64("judge_id", judge.ID).Msg("judge logged in")
	return tokens, judge, nil
}

// Refresh exchanges a refresh token for a new access token, provided the
// judge is still active.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	tokens, principal, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return Tokens{}, err
	}
	if _, err := s.ActiveJudge(ctx, principal); err != nil {
		return Tokens{}, err
	}
	return tokens, nil
}

// ActiveJudge resolves a principal to an active judge.
func (s *Service) ActiveJudge(ctx context.Context, p Principal) (*models.Judge, error) {
	judge, err := s.judges.GetJudge(ctx, p.JudgeID)
	if err != nil {
		if errors.Is(err, judges.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown judge", ErrInvalidToken)
		}
		return nil, err
	}
	if !judge.Active {
		return nil, ErrInactiveJudge
	}
	return judge, nil
}

// Tokens exposes the token manager for components that verify credentials.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}
