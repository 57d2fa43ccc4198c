// Package eventlog implements the append-only JSONL event store (spec
// §4.1). It is the single source of truth: the projector and every other
// component rebuild their view from what this package parses, never from
// cached state.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/antigravity-dev/roadmap/internal/model"
)

// FileName is the log's path relative to the roadmap root (spec §6).
const FileName = "activity.jsonl"

// ParseError is raised by Parse for any structurally broken line. It is
// strictly stronger than a domain error (spec §7): callers classify any
// ParseError as store corruption.
type ParseError struct {
	Code    string
	Message string
	Line    int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", e.Code, e.Line, e.Message)
}

// Store wraps a roadmap root directory and exposes the four event-log
// operations as methods, mirroring the teacher's struct-wrapping-a-handle
// idiom (internal/store.Store wrapping *sql.DB) even though here the
// "handle" is just a path reopened per call, consistent with this core's
// synchronous single-writer I/O model (spec §5).
type Store struct {
	Root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// Path returns the absolute path to activity.jsonl.
func (s *Store) Path() string {
	return filepath.Join(s.Root, FileName)
}

// EnsureExists creates the roadmap directory and an empty log file if
// neither exists yet. It never truncates an existing log.
func (s *Store) EnsureExists() error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("eventlog: mkdir %s: %w", s.Root, err)
	}
	f, err := os.OpenFile(s.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: create %s: %w", s.Path(), err)
	}
	return f.Close()
}

// Parse reads the event log and returns its events, strictly validated and
// legacy-normalized (spec §4.1). Blank lines are skipped. Any violation of
// the seven-field/seq/id invariants aborts with a *ParseError.
func (s *Store) Parse() ([]model.Event, error) {
	f, err := os.Open(s.Path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", s.Path(), err)
	}
	defer f.Close()

	var (
		events  []model.Event
		seen    = make(map[string]bool)
		lastSeq = 0
		lineNo  = 0
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytesTrimSpace(line)) == 0 {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, &ParseError{Code: model.CodeJSONLInvalid, Message: err.Error(), Line: lineNo}
		}

		normalizeLegacy(raw)

		evt, perr := decodeEvent(raw, lineNo)
		if perr != nil {
			return nil, perr
		}

		if evt.EventSeq != lastSeq+1 {
			return nil, &ParseError{
				Code:    model.CodeEventSeqNonMonotonic,
				Message: fmt.Sprintf("expected event_seq %d, got %d", lastSeq+1, evt.EventSeq),
				Line:    lineNo,
			}
		}
		lastSeq = evt.EventSeq

		if evt.EventID == "" {
			evt.EventID = fmt.Sprintf("LEGACY-EV-%08d", evt.EventSeq)
		}
		if seen[evt.EventID] {
			return nil, &ParseError{Code: model.CodeEventIDDuplicate, Message: evt.EventID, Line: lineNo}
		}
		seen[evt.EventID] = true

		if !model.CanonicalActions[evt.Action] {
			return nil, &ParseError{Code: model.CodeUnknownAction, Message: evt.Action, Line: lineNo}
		}

		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: scan %s: %w", s.Path(), err)
	}

	return events, nil
}

// NextSeq returns the next event_seq to assign given the events already in
// the log.
func NextSeq(events []model.Event) int {
	if len(events) == 0 {
		return 1
	}
	return events[len(events)-1].EventSeq + 1
}

// Append writes each event as one compact-JSON line, flushing after the
// whole batch (spec §4.1, §5 atomicity). Callers must have already
// assigned contiguous event_seq/event_id values via NextSeq.
func (s *Store) Append(events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	f, err := os.OpenFile(s.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open %s for append: %w", s.Path(), err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("eventlog: marshal event %s: %w", evt.EventID, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("eventlog: write event %s: %w", evt.EventID, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("eventlog: write event %s: %w", evt.EventID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("eventlog: flush: %w", err)
	}
	return f.Sync()
}

func bytesTrimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
