// Package sse reads and writes Server-Sent Events.
package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Event is one dispatched Server-Sent Event.
type Event struct {
	ID   string
	Name string
	Data string
}

// Decoder reads events from a stream. It does not depend on how the
// underlying reader splits the bytes.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next event. Multiple data lines are joined with "\n".
// At the end of the stream a buffered event is returned first, then io.EOF.
func (d *Decoder) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
	)
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return Event{}, err
		}
		eof := err == io.EOF
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			if eof {
				return Event{}, io.EOF
			}
			ev = Event{}
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "":
			// comment
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			ev.Name = value
		case "id":
			ev.ID = value
		}

		if eof {
			if hasData {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			return Event{}, io.EOF
		}
	}
}

// Write encodes ev. Multi-line data is split over several data lines.
func Write(w io.Writer, ev Event) error {
	var sb strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&sb, "id: %s\n", ev.ID)
	}
	if ev.Name != "" {
		fmt.Fprintf(&sb, "event: %s\n", ev.Name)
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(&sb, "data: %s\n", line)
	}
	sb.WriteString("\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
