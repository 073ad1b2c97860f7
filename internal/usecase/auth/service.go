// Package auth manages signed-in sessions: the secret lives in the vault,
// the database keeps only non-sensitive metadata with the secret's digest.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
)

// Session states reported to the operator.
const (
	StateOK      = "ok"
	StateMissing = "missing"
	StateExpired = "expired"
)

// Vault stores the secrets themselves.
type Vault interface {
	Set(provider, secret string) error
	Get(provider string) (string, error)
	Delete(provider string) error
}

// Service manages auth sessions.
type Service struct {
	vault    Vault
	authRepo repository.AuthSessionRepository
}

// NewService creates the auth service.
func NewService(vault Vault, authRepo repository.AuthSessionRepository) *Service {
	return &Service{vault: vault, authRepo: authRepo}
}

// SetSession stores the secret in the vault and upserts the metadata row.
func (s *Service) SetSession(ctx context.Context, provider, secret string, expiresAt *time.Time) error {
	if secret == "" {
		return fmt.Errorf("SetSession: %w: empty secret", entity.ErrInvalidInput)
	}
	if err := s.vault.Set(provider, secret); err != nil {
		return fmt.Errorf("SetSession: %w", err)
	}
	digest := sha256.Sum256([]byte(secret))
	err := s.authRepo.Upsert(ctx, &entity.AuthSessionEntry{
		Provider:     provider,
		SecretDigest: hex.EncodeToString(digest[:]),
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		return fmt.Errorf("SetSession: %w", err)
	}
	return nil
}

// SessionState reports whether a usable session exists for the provider.
func (s *Service) SessionState(ctx context.Context, provider string) (string, error) {
	entry, err := s.authRepo.Get(ctx, provider)
	if errors.Is(err, entity.ErrNotFound) {
		return StateMissing, nil
	}
	if err != nil {
		return "", fmt.Errorf("SessionState: %w", err)
	}
	if entry.ExpiresAt != nil && entry.ExpiresAt.Before(time.Now().UTC()) {
		return StateExpired, nil
	}
	secret, err := s.vault.Get(provider)
	if err != nil {
		return "", fmt.Errorf("SessionState: %w", err)
	}
	if secret == "" {
		return StateMissing, nil
	}
	return StateOK, nil
}

// ClearSession removes the secret and the metadata row.
func (s *Service) ClearSession(ctx context.Context, provider string) error {
	if err := s.vault.Delete(provider); err != nil {
		return fmt.Errorf("ClearSession: %w", err)
	}
	if err := s.authRepo.Delete(ctx, provider); err != nil {
		return fmt.Errorf("ClearSession: %w", err)
	}
	return nil
}
