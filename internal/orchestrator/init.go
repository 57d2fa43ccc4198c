package orchestrator

import (
	"fmt"
	"os"

	"github.com/antigravity-dev/roadmap/internal/model"
)

// InitResult is the JSON-serializable outcome of Init (spec §6 "successful
// commands print a JSON result").
type InitResult struct {
	RunID               string   `json:"run_id"`
	MasterCorrelationID string   `json:"master_correlation_id"`
	EventsAppended      int      `json:"events_appended"`
	Tasks                []string `json:"tasks"`
	VerifyStatus         string   `json:"verify_status"`
	ProjectionHashSHA256 string   `json:"projection_hash_sha256"`
}

// seedBaseline is the three-task linear baseline S1 requires: a spec task,
// an impl task depending on it, and a qa task depending on the impl task.
func seedBaseline() []map[string]any {
	return []map[string]any{
		{
			"task_id":   "T-1000",
			"task_kind": model.TaskKindSpec,
			"title":     "Write specification",
			"depends_on": []any{},
		},
		{
			"task_id":    "T-1010",
			"task_kind":  model.TaskKindImpl,
			"title":      "Implement",
			"depends_on": []any{"T-1000"},
		},
		{
			"task_id":    "T-1020",
			"task_kind":  model.TaskKindQA,
			"title":      "Verify and QA",
			"depends_on": []any{"T-1010"},
		},
	}
}

// Init seeds a fresh roadmap root (spec §4.5). It is idempotent only when
// force is true: otherwise a log with any content blocks re-initialisation
// (INIT_BLOCKED). force truncates the existing log before seeding so the
// result is the same six-event sequence S1 describes.
func (s *Service) Init(runID, masterCorrelationID string, force bool) (InitResult, error) {
	if err := s.Store.EnsureExists(); err != nil {
		return InitResult{}, err
	}

	existing, err := s.Store.Parse()
	if err != nil {
		return InitResult{}, err
	}
	if len(existing) > 0 {
		if !force {
			return InitResult{}, model.NewError(model.CodeInitBlocked, "roadmap at %s already has %d event(s); use force to re-initialise", s.Root, len(existing))
		}
		if err := truncateLog(s.Store.Path()); err != nil {
			return InitResult{}, err
		}
		existing = nil
	}

	if runID == "" {
		runID = newRunID()
	}
	if masterCorrelationID == "" {
		masterCorrelationID = newCorrID()
	}

	c := newComposer(existing, s.Project)
	c.commit(s.Actor, model.ActionRunStart, map[string]any{
		"run_id":                 runID,
		"master_correlation_id":  masterCorrelationID,
		"status":                 model.RunStatusInitialized,
	})
	for _, task := range seedBaseline() {
		c.commit(s.Actor, model.ActionTaskCreate, task)
	}
	c.commit(s.Actor, model.ActionVerifyStart, nil)

	roadmap, _, _, err := c.materializeAll()
	if err != nil {
		return InitResult{}, err
	}
	c.commit(s.Actor, model.ActionVerifyOK, map[string]any{
		"verify_status":           model.VerifyStatusOK,
		"projection_hash_sha256": roadmap.Meta.Run.ProjectionHashSHA256,
	})

	finalRoadmap, issues, lessons, err := c.materializeAll()
	if err != nil {
		return InitResult{}, err
	}

	if err := s.Store.Append(c.staged); err != nil {
		return InitResult{}, err
	}
	if err := s.writeViews(finalRoadmap, issues, lessons); err != nil {
		return InitResult{}, err
	}

	return InitResult{
		RunID:                runID,
		MasterCorrelationID:  masterCorrelationID,
		EventsAppended:       len(c.staged),
		Tasks:                taskIDs(finalRoadmap.Tasks),
		VerifyStatus:         finalRoadmap.Meta.Run.VerifyStatus,
		ProjectionHashSHA256: finalRoadmap.Meta.Run.ProjectionHashSHA256,
	}, nil
}

func truncateLog(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("orchestrator: truncate %s: %w", path, err)
	}
	return f.Close()
}
