// Package sqlsink stores submissions in a SQL database through gorm.
package sqlsink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is one stored submission.
type Record struct {
	ID          uint      `gorm:"primaryKey"`
	Kind        string    `gorm:"size:32;not null;index:idx_kind"`
	Action      string    `gorm:"size:100"`
	SessionID   string    `gorm:"size:64;not null;index:idx_session"`
	Persona     string    `gorm:"size:32"`
	StepID      string    `gorm:"size:100"`
	SubmittedAt time.Time `gorm:"not null"`
	Fields      string    `gorm:"type:text"`
}

// TableName pins the table name.
func (Record) TableName() string {
	return "submissions"
}

// Sink implements ports.SubmissionSink.
type Sink struct {
	db *gorm.DB
}

// Open opens (or creates) a SQLite database at path and migrates it.
func Open(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Sink, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate submissions table: %w", err)
	}
	return &Sink{db: db}, nil
}

// Submit inserts one record. Field values are stored as a JSON object.
func (s *Sink) Submit(ctx context.Context, sub domain.Submission) error {
	fields, err := json.Marshal(sub.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	rec := Record{
		Kind:        sub.Kind,
		Action:      sub.Action,
		SessionID:   sub.SessionID,
		Persona:     string(sub.Persona),
		StepID:      sub.StepID,
		SubmittedAt: sub.Timestamp.UTC(),
		Fields:      string(fields),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// Submissions returns stored submissions of a kind, oldest first.
// An empty kind returns all of them.
func (s *Sink) Submissions(ctx context.Context, kind string) ([]domain.Submission, error) {
	var recs []Record
	q := s.db.WithContext(ctx).Order("id asc")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}

	out := make([]domain.Submission, 0, len(recs))
	for _, r := range recs {
		sub := domain.Submission{
			Kind:      r.Kind,
			Action:    r.Action,
			SessionID: r.SessionID,
			Persona:   domain.Persona(r.Persona),
			StepID:    r.StepID,
			Timestamp: r.SubmittedAt,
		}
		if err := json.Unmarshal([]byte(r.Fields), &sub.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields of submission %d: %w", r.ID, err)
		}
		out = append(out, sub)
	}
	return out, nil
}

// Close releases the database connection.
func (s *Sink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
