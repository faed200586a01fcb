// Package docs accepts uploaded reference documents, hands them to an
// indexer and keeps an upload log.
package docs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
)

// Accepted content types.
const (
	TypePDF  = "application/pdf"
	TypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Allowed reports whether a content type may be uploaded.
func Allowed(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == TypePDF || mt == TypeDOCX
}

// Entry is one line of the upload log.
type Entry struct {
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// StubIndexer drains the document and reports a single chunk.
type StubIndexer struct{}

// Index implements ports.DocumentIndexer.
func (StubIndexer) Index(ctx context.Context, doc ports.Document) (int, error) {
	if _, err := io.Copy(io.Discard, doc.Body); err != nil {
		return 0, fmt.Errorf("failed to read document: %w", err)
	}
	return 1, nil
}

// Intake validates uploads and records them.
type Intake struct {
	indexer ports.DocumentIndexer
	logPath string
	now     func() time.Time

	mu sync.Mutex
}

// NewIntake creates an intake writing its log to logPath.
// A nil indexer uses StubIndexer.
func NewIntake(indexer ports.DocumentIndexer, logPath string) *Intake {
	if indexer == nil {
		indexer = StubIndexer{}
	}
	return &Intake{indexer: indexer, logPath: logPath, now: time.Now}
}

// Upload indexes a document and returns its chunk count.
func (in *Intake) Upload(ctx context.Context, doc ports.Document) (int, error) {
	if !Allowed(doc.ContentType) {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, doc.ContentType)
	}
	chunks, err := in.indexer.Index(ctx, doc)
	if err != nil {
		return 0, err
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	entries, err := in.read()
	if err != nil {
		return 0, err
	}
	entries = append([]Entry{{Name: doc.Name, UploadedAt: in.now().UTC()}}, entries...)
	if err := in.write(entries); err != nil {
		return 0, err
	}
	return chunks, nil
}

// List returns the upload log, newest first.
func (in *Intake) List() ([]Entry, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.read()
}

func (in *Intake) read() ([]Entry, error) {
	data, err := os.ReadFile(in.logPath)
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read upload log: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// An unreadable log starts over.
		return []Entry{}, nil
	}
	return entries, nil
}

func (in *Intake) write(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal upload log: %w", err)
	}
	dir := filepath.Dir(in.logPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure log directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "tmp-docs-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write upload log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync upload log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close upload log: %w", err)
	}
	if err := os.Rename(tmpPath, in.logPath); err != nil {
		return fmt.Errorf("failed to replace upload log: %w", err)
	}
	return nil
}
