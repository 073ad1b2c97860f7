package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

type memVault struct{ secrets map[string]string }

func newMemVault() *memVault { return &memVault{secrets: map[string]string{}} }

func (m *memVault) Set(provider, secret string) error {
	m.secrets[provider] = secret
	return nil
}
func (m *memVault) Get(provider string) (string, error) { return m.secrets[provider], nil }
func (m *memVault) Delete(provider string) error {
	delete(m.secrets, provider)
	return nil
}

type memAuthRepo struct{ entries map[string]*entity.AuthSessionEntry }

func newMemAuthRepo() *memAuthRepo {
	return &memAuthRepo{entries: map[string]*entity.AuthSessionEntry{}}
}

func (m *memAuthRepo) Get(_ context.Context, provider string) (*entity.AuthSessionEntry, error) {
	entry, ok := m.entries[provider]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return entry, nil
}

func (m *memAuthRepo) Upsert(_ context.Context, entry *entity.AuthSessionEntry) error {
	m.entries[entry.Provider] = entry
	return nil
}

func (m *memAuthRepo) Delete(_ context.Context, provider string) error {
	delete(m.entries, provider)
	return nil
}

func TestSetSessionStoresDigestNotSecret(t *testing.T) {
	vault := newMemVault()
	repo := newMemAuthRepo()
	svc := NewService(vault, repo)

	require.NoError(t, svc.SetSession(context.Background(), "weread", "wr_sid=secret", nil))

	entry := repo.entries["weread"]
	require.NotNil(t, entry)
	assert.NotEqual(t, "wr_sid=secret", entry.SecretDigest)
	assert.Len(t, entry.SecretDigest, 64, "sha256 hex digest")
	assert.Equal(t, "wr_sid=secret", vault.secrets["weread"], "the secret itself lives in the vault")
}

func TestSessionStateTransitions(t *testing.T) {
	vault := newMemVault()
	repo := newMemAuthRepo()
	svc := NewService(vault, repo)
	ctx := context.Background()

	state, err := svc.SessionState(ctx, "weread")
	require.NoError(t, err)
	assert.Equal(t, StateMissing, state)

	require.NoError(t, svc.SetSession(ctx, "weread", "token", nil))
	state, err = svc.SessionState(ctx, "weread")
	require.NoError(t, err)
	assert.Equal(t, StateOK, state)

	// Expired metadata wins over a present secret.
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, svc.SetSession(ctx, "weread", "token", &past))
	state, err = svc.SessionState(ctx, "weread")
	require.NoError(t, err)
	assert.Equal(t, StateExpired, state)

	// A vanished vault secret reads as missing.
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, svc.SetSession(ctx, "weread", "token", &future))
	require.NoError(t, vault.Delete("weread"))
	state, err = svc.SessionState(ctx, "weread")
	require.NoError(t, err)
	assert.Equal(t, StateMissing, state)
}

func TestClearSession(t *testing.T) {
	vault := newMemVault()
	repo := newMemAuthRepo()
	svc := NewService(vault, repo)
	ctx := context.Background()

	require.NoError(t, svc.SetSession(ctx, "weread", "token", nil))
	require.NoError(t, svc.ClearSession(ctx, "weread"))

	state, err := svc.SessionState(ctx, "weread")
	require.NoError(t, err)
	assert.Equal(t, StateMissing, state)
}

func TestSetSessionRejectsEmptySecret(t *testing.T) {
	svc := NewService(newMemVault(), newMemAuthRepo())
	err := svc.SetSession(context.Background(), "weread", "", nil)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}
