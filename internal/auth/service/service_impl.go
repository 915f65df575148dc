package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/smallbiznis/taxbook/internal/auth/domain"
	"github.com/smallbiznis/taxbook/internal/clock"
	"go.uber.org/zap"
)

type Service struct {
	log         *zap.Logger
	sessionRepo domain.SessionRepository
	clock       clock.Clock
}

func New(log *zap.Logger, sessionRepo domain.SessionRepository, clk clock.Clock) domain.Service {
	return &Service{
		log:         log.Named("auth.service"),
		sessionRepo: sessionRepo,
		clock:       clk,
	}
}

// Authenticate resolves an opaque session token to its session, or a
// classified failure.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrNoToken
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		s.log.Warn("failed to bump session last_seen", zap.Error(err))
	}

	return session, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HashToken exposes the token digest for collaborators that seed sessions.
func HashToken(token string) string {
	return hashToken(token)
}
