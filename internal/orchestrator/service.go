// Package orchestrator composes the event log, projector, workflow engine,
// and validator into the service operations a caller actually invokes:
// init, project, verify, replay, submit, run, process (spec §4.5). It is
// grounded on the teacher's chief.Chief/store.Store composition idiom — a
// struct holding config, dependencies, and a logger, constructed via New,
// with the public operations as methods.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/antigravity-dev/roadmap/internal/adapter"
	"github.com/antigravity-dev/roadmap/internal/canon"
	"github.com/antigravity-dev/roadmap/internal/eventlog"
	"github.com/antigravity-dev/roadmap/internal/model"
	"github.com/antigravity-dev/roadmap/internal/projector"
	"github.com/antigravity-dev/roadmap/internal/validator"
)

const (
	roadmapFileName = "roadmap.json"
	issuesFileName  = "issues.json"
	lessonsFileName = "lessons.json"
)

// Service owns a roadmap root and the dependencies every operation needs.
// It holds no global state: every method reads the log fresh and writes
// back through the filesystem (spec §9 "Global state").
type Service struct {
	Root      string // the .roadmap directory holding the log and views
	WorkDir   string // project root that file_updates paths are relative to
	Project   string
	Actor     string
	Store     *eventlog.Store
	Validator *validator.Validator
	Adapter   adapter.Adapter
	Log       *slog.Logger
}

// New returns a Service whose event log lives at root (the .roadmap
// directory) and whose file_updates are rooted at workDir. validator and
// adapter may be nil for operations that don't need them (Project, Verify,
// Replay).
func New(root, workDir, project, actor string, v *validator.Validator, a adapter.Adapter, logger *slog.Logger) *Service {
	if project == "" {
		project = projector.DefaultProject
	}
	if workDir == "" {
		workDir = filepath.Dir(root)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Root:      root,
		WorkDir:   workDir,
		Project:   project,
		Actor:     actor,
		Store:     eventlog.New(root),
		Validator: v,
		Adapter:   a,
		Log:       logger,
	}
}

// writeProjectFile writes content to a file_updates path, rooted at
// WorkDir and normalized through the same canon.SafeRelPath rule the
// validator's boundary check already applied — the identical-rule
// guarantee SPEC_FULL calls for.
func (s *Service) writeProjectFile(path, content string) error {
	normalized, err := canon.SafeRelPath(path)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	full := filepath.Join(s.WorkDir, normalized)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("orchestrator: mkdir for %s: %w", full, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("orchestrator: write %s: %w", full, err)
	}
	return nil
}

// composer assigns contiguous event_seq/event_id values and stages
// candidate events for one service operation, so every operation composes
// its whole batch before a single Append call (spec §5 atomicity).
type composer struct {
	existing []model.Event
	project  string
	staged   []model.Event
	nextSeq  int
}

func newComposer(existing []model.Event, project string) *composer {
	return &composer{existing: existing, project: project, nextSeq: eventlog.NextSeq(existing)}
}

func buildEvent(actor, action string, payload map[string]any, seq int) model.Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return model.Event{
		SchemaVersion: model.CurrentSchemaVersion,
		EventID:       fmt.Sprintf("EV-%08d", seq),
		EventSeq:      seq,
		TS:            canon.NowUTC(),
		Actor:         actor,
		Action:        action,
		Payload:       payload,
	}
}

// commit stages events unconditionally (used for framing events whose
// validity is guaranteed by construction, e.g. verify.start/verify.ok).
func (c *composer) commit(actor, action string, payload map[string]any) model.Event {
	evt := buildEvent(actor, action, payload, c.nextSeq)
	c.staged = append(c.staged, evt)
	c.nextSeq++
	return evt
}

// tryCommit stages the events build produces only if materializing
// existing+staged+candidate succeeds; on failure nothing is staged and
// the sequence counter is left untouched, so the caller may retry with a
// different batch (e.g. emit output.rejected instead).
func (c *composer) tryCommit(build func(startSeq int) []model.Event) ([]model.Event, model.Roadmap, error) {
	candidate := build(c.nextSeq)
	trial := make([]model.Event, 0, len(c.existing)+len(c.staged)+len(candidate))
	trial = append(trial, c.existing...)
	trial = append(trial, c.staged...)
	trial = append(trial, candidate...)

	roadmap, _, _, err := projector.Materialize(trial, c.project)
	if err != nil {
		return nil, model.Roadmap{}, err
	}
	c.staged = append(c.staged, candidate...)
	c.nextSeq += len(candidate)
	return candidate, roadmap, nil
}

func (c *composer) all() []model.Event {
	return append(append([]model.Event(nil), c.existing...), c.staged...)
}

// materializeAll folds existing+staged events, the view the caller should
// persist if the operation is not a dry run.
func (c *composer) materializeAll() (model.Roadmap, model.IssuesView, model.LessonsView, error) {
	return projector.Materialize(c.all(), c.project)
}

func newRunID() string  { return "RUN-" + uuid.NewString() }
func newCorrID() string { return "CID-" + uuid.NewString() }

// writeViews atomically rewrites roadmap.json, issues.json, and
// lessons.json (spec §4.5, §5): each is written to a temp file in the same
// directory, then renamed into place.
func (s *Service) writeViews(roadmap model.Roadmap, issues model.IssuesView, lessons model.LessonsView) error {
	if err := writeJSONAtomic(filepath.Join(s.Root, roadmapFileName), roadmap); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(s.Root, issuesFileName), issues); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(s.Root, lessonsFileName), lessons); err != nil {
		return err
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := canon.JSON(v)
	if err != nil {
		return fmt.Errorf("orchestrator: encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("orchestrator: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("orchestrator: rename %s: %w", tmp, err)
	}
	return nil
}

// readStoredRoadmap loads the last-written roadmap.json, if any.
func (s *Service) readStoredRoadmap() (model.Roadmap, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, roadmapFileName))
	if os.IsNotExist(err) {
		return model.Roadmap{}, false, nil
	}
	if err != nil {
		return model.Roadmap{}, false, fmt.Errorf("orchestrator: read %s: %w", roadmapFileName, err)
	}
	var roadmap model.Roadmap
	if err := json.Unmarshal(data, &roadmap); err != nil {
		return model.Roadmap{}, false, nil
	}
	return roadmap, true, nil
}

func taskIDs(tasks []model.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.TaskID
	}
	return ids
}
