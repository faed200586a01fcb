package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pixl-ae/leadflow/internal/config"
	"github.com/pixl-ae/leadflow/internal/logging"
	"github.com/pixl-ae/leadflow/internal/runtime"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_SinkBothWritesCSVAndSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sink.Kind = config.SinkBoth

	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	eng := app.Engine
	s, err := eng.Start(ctx, "both")
	require.NoError(t, err)
	_, err = eng.SelectPersona(ctx, s.ID, "Broker")
	require.NoError(t, err)
	_, err = eng.Say(ctx, s.ID, "Maria")
	require.NoError(t, err)
	_, err = eng.Choose(ctx, s.ID, runtime.OptionDigitalKit)
	require.NoError(t, err)
	_, err = eng.SubmitForm(ctx, s.ID, map[string]domain.Value{
		"fullname": domain.Text("Maria Lopez"),
		"phone":    domain.Text("0501234567"),
		"email":    domain.Text("maria@example.com"),
	})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	_, err = os.Stat(filepath.Join(cfg.Sink.DataDir, "broker_calls.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(cfg.Sink.SQLitePath)
	assert.NoError(t, err)
}

func TestBuild_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Sessions.Backend = config.BackendRedis
	cfg.Sessions.RedisAddr = mr.Addr()

	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close()

	s, err := app.Engine.Start(context.Background(), "shared")
	require.NoError(t, err)
	_, err = app.Engine.SelectPersona(context.Background(), s.ID, "Applicant")
	require.NoError(t, err)

	ids, err := app.Engine.Sessions().List(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ids, "shared")
}

func TestBuild_FileBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sessions.Backend = config.BackendFile
	cfg.Sessions.DataDir = filepath.Join(t.TempDir(), "sessions")

	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Engine.Start(context.Background(), "on-disk")
	require.NoError(t, err)
	_, err = os.Stat(cfg.Sessions.DataDir)
	assert.NoError(t, err)
}

func TestBuild_EncryptedFileBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sessions.Backend = config.BackendFile
	cfg.Sessions.DataDir = filepath.Join(t.TempDir(), "sessions")
	cfg.Sessions.EncryptionKey = bytes.Repeat([]byte{7}, 32)

	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	_, err = app.Engine.Start(ctx, "sealed")
	require.NoError(t, err)
	_, err = app.Engine.SelectPersona(ctx, "sealed", "Applicant")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(cfg.Sessions.DataDir, "sealed.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Applicant")
	assert.Contains(t, string(raw), "__encrypted__")

	s, err := app.Engine.Session(ctx, "sealed")
	require.NoError(t, err)
	assert.Equal(t, domain.PersonaApplicant, s.Persona)
}

func TestBuild_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sessions.Backend = "etcd"
	_, err := Build(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, `unknown session backend "etcd"`)

	cfg = testConfig(t)
	cfg.Sink.Kind = "kafka"
	_, err = Build(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, `unknown submission sink "kafka"`)

	cfg = testConfig(t)
	cfg.Flow.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Build(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)
}
