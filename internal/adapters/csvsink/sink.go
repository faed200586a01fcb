// Package csvsink appends submissions to delimited log files, one file per
// submission kind.
package csvsink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

// TimestampFormat is ISO 8601 with milliseconds, always in UTC.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Layout fixes the file and column order of one submission kind.
type Layout struct {
	File    string
	Columns []string
}

var brokerColumns = []string{
	"timestamp", "sessionId", "broker_name", "broker_interest",
	"company", "fullname", "phone", "email", "reach",
}

// Layouts per submission kind.
var Layouts = map[string]Layout{
	domain.SubmissionBrokerCall: {File: "broker_calls.csv", Columns: brokerColumns},
	domain.SubmissionBrokerLead: {File: "broker_leads.csv", Columns: append(append([]string{}, brokerColumns...), "budget", "selectedServices")},
	domain.SubmissionCRM:        {File: "crm_actions.csv", Columns: []string{"timestamp", "sessionId", "persona", "action", "step", "fields"}},
}

// Sink implements ports.SubmissionSink on top of CSV files.
type Sink struct {
	dir string
	mu  sync.Mutex
}

// New creates a sink writing below dir.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sink directory: %w", err)
	}
	return &Sink{dir: dir}, nil
}

// Submit appends one row, writing the header first when the file is new.
func (s *Sink) Submit(ctx context.Context, sub domain.Submission) error {
	layout, ok := Layouts[sub.Kind]
	if !ok {
		return fmt.Errorf("no csv layout for submission kind %q", sub.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, layout.File)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", layout.File, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", layout.File, err)
	}

	var sb strings.Builder
	if info.Size() == 0 {
		sb.WriteString(Row(layout.Columns))
	}
	sb.WriteString(Row(Cells(layout, sub)))

	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to append to %s: %w", layout.File, err)
	}
	return f.Sync()
}

// Cells renders a submission in the column order of layout.
func Cells(layout Layout, sub domain.Submission) []string {
	cells := make([]string, len(layout.Columns))
	for i, col := range layout.Columns {
		switch col {
		case "timestamp":
			cells[i] = FormatTimestamp(sub.Timestamp)
		case "sessionId":
			cells[i] = sub.SessionID
		case "persona":
			cells[i] = string(sub.Persona)
		case "action":
			cells[i] = sub.Action
		case "step":
			cells[i] = sub.StepID
		case "fields":
			cells[i] = FlattenFields(sub.Fields)
		default:
			cells[i] = sub.Fields[col].String()
		}
	}
	return cells
}

// Row quotes every cell and terminates the line.
func Row(cells []string) string {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		quoted[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",") + "\n"
}

// FormatTimestamp renders t in TimestampFormat.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// FlattenFields renders sorted key=value pairs joined with "; ".
func FlattenFields(fields map[string]domain.Value) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + fields[k].String()
	}
	return strings.Join(pairs, "; ")
}
