package docs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(TypePDF))
	assert.True(t, Allowed(TypeDOCX))
	assert.True(t, Allowed("application/pdf; name=brochure.pdf"))
	assert.False(t, Allowed("text/plain"))
	assert.False(t, Allowed("application/msword"))
	assert.False(t, Allowed(""))
}

func TestIntake_UploadLogsNewestFirst(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docsLog.json")
	in := NewIntake(nil, logPath)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	in.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	ctx := context.Background()

	for _, name := range []string{"a.pdf", "b.docx"} {
		ct := TypePDF
		if strings.HasSuffix(name, ".docx") {
			ct = TypeDOCX
		}
		n, err := in.Upload(ctx, ports.Document{Name: name, ContentType: ct, Body: strings.NewReader("content")})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	entries, err := in.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b.docx", entries[0].Name)
	assert.Equal(t, "a.pdf", entries[1].Name)
	assert.True(t, entries[0].UploadedAt.After(entries[1].UploadedAt))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"uploadedAt"`)
}

func TestIntake_RejectsUnsupportedType(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docsLog.json")
	in := NewIntake(nil, logPath)

	_, err := in.Upload(context.Background(), ports.Document{Name: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, statErr := os.Stat(logPath)
	assert.True(t, os.IsNotExist(statErr), "rejected uploads are not logged")
}

func TestIntake_EmptyLog(t *testing.T) {
	in := NewIntake(nil, filepath.Join(t.TempDir(), "missing.json"))
	entries, err := in.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
