package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/pixl-ae/leadflow/pkg/adapters/memory"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/persistence/middleware"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.SessionStore, cfg middleware.EncryptionConfig) ports.SessionStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_HidesAnswers(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	s := domain.NewSession("s1", time.Now().UTC())
	s.Status = domain.StatusActive
	s.Answers["email"] = domain.Text("maria@example.com")
	s.Append(domain.SenderUser, domain.KindText, "maria@example.com", nil)
	require.NoError(t, secure.Save(ctx, s))

	raw, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, raw.Answers, "email")
	assert.Empty(t, raw.Log)
	assert.Equal(t, domain.StatusActive, raw.Status, "status stays visible for monitoring")

	loaded, err := secure.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", loaded.Answers.Get("email"))
	require.Len(t, loaded.Log, 1)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	oldStore := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	s := domain.NewSession("rotation", time.Now().UTC())
	s.Answers["broker_name"] = domain.Text("Omar")
	require.NoError(t, oldStore.Save(ctx, s))

	newStore := encrypted(t, underlying, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	loaded, err := newStore.Load(ctx, "rotation")
	require.NoError(t, err, "fallback key decrypts sessions written before rotation")
	assert.Equal(t, "Omar", loaded.Answers.Get("broker_name"))

	require.NoError(t, newStore.Save(ctx, loaded))
	_, err = oldStore.Load(ctx, "rotation")
	assert.Error(t, err, "re-saved session is encrypted with the new key")
}

func TestEncryptionMiddleware_PlainSessionRejected(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(ctx, domain.NewSession("plain", time.Now().UTC())))

	_, err := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)}).Load(ctx, "plain")
	assert.ErrorContains(t, err, "missing encrypted data envelope")
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.ErrorContains(t, err, "active key must be 32 bytes")

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("old")},
	})
	assert.ErrorContains(t, err, "fallback key 0")
}
