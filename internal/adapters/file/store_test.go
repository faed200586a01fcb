package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pixl-ae/leadflow/internal/adapters/file"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunSessionStoreContract(t, store)
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	s := domain.NewSession("abc", time.Now())
	require.NoError(t, store.Save(ctx, s))
	s.Append(domain.SenderUser, domain.KindText, "hi", nil)
	require.NoError(t, store.Save(ctx, s))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc.json", entries[0].Name())
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	dir := t.TempDir()
	store := file.New(filepath.Join(dir, "sessions"))
	ctx := context.Background()

	err := store.Save(ctx, domain.NewSession("../escape", time.Now()))
	assert.Error(t, err)
	_, err = store.Load(ctx, "")
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "nope"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
