package orchestrator

import (
	"fmt"

	"github.com/antigravity-dev/roadmap/internal/model"
	"github.com/antigravity-dev/roadmap/internal/projector"
	"github.com/antigravity-dev/roadmap/internal/workflow"
)

// SubmitResult is the JSON-serializable outcome of a single-shot
// submission (spec §4.5).
type SubmitResult struct {
	TaskID               string `json:"task_id"`
	Action               string `json:"action"`
	TaskStatus           string `json:"task_status"`
	HotfixTaskID         string `json:"hotfix_task_id,omitempty"`
	EventsAppended       int    `json:"events_appended"`
	VerifyStatus         string `json:"verify_status"`
	ProjectionHashSHA256 string `json:"projection_hash_sha256"`
	DryRun               bool   `json:"dry_run"`
}

// Submit validates one externally-produced agent output document against
// the named task, proposes the corresponding events, and — unless dryRun
// — appends them and rewrites the views (spec §4.5). Any validation or
// projector-level failure is returned directly to the caller without
// touching the log, since the caller is the agent submitting the output
// and needs to know what was wrong.
func (s *Service) Submit(raw map[string]any, actor string, dryRun bool) (SubmitResult, error) {
	if actor == "" {
		actor = s.Actor
	}

	events, err := s.Store.Parse()
	if err != nil {
		return SubmitResult{}, err
	}
	roadmap, _, _, err := projector.Materialize(events, s.Project)
	if err != nil {
		return SubmitResult{}, err
	}

	taskID := taskIDFromRaw(raw)
	task, ok := findTaskByID(roadmap.Tasks, taskID)
	if !ok {
		return SubmitResult{}, model.NewError(model.CodeTaskNotFound, "task %q not found", taskID)
	}

	output, err := s.Validator.Validate(raw, task)
	if err != nil {
		return SubmitResult{}, err
	}

	c := newComposer(events, s.Project)
	hotfixID, roadmapAfter, err := s.stageAgentOutput(c, actor, task, output)
	if err != nil {
		return SubmitResult{}, err
	}

	c.commit(s.Actor, model.ActionVerifyStart, nil)
	if workflow.ShouldTerminate(roadmapAfter.Tasks, roadmapAfter.Meta.Run.Status) {
		c.commit(s.Actor, model.ActionRunEnd, map[string]any{"status": model.RunStatusSuccess})
	}

	finalRoadmap, issues, lessons, err := c.materializeAll()
	if err != nil {
		return SubmitResult{}, err
	}
	c.commit(s.Actor, model.ActionVerifyOK, map[string]any{
		"verify_status":          model.VerifyStatusOK,
		"projection_hash_sha256": finalRoadmap.Meta.Run.ProjectionHashSHA256,
	})
	finalRoadmap, issues, lessons, err = c.materializeAll()
	if err != nil {
		return SubmitResult{}, err
	}

	if !dryRun {
		if err := s.Store.Append(c.staged); err != nil {
			return SubmitResult{}, err
		}
		if err := s.writeViews(finalRoadmap, issues, lessons); err != nil {
			return SubmitResult{}, err
		}
	}

	updatedTask, _ := findTaskByID(finalRoadmap.Tasks, taskID)
	return SubmitResult{
		TaskID:               taskID,
		Action:               output.ActivityEvent.Action(),
		TaskStatus:           updatedTask.Status,
		HotfixTaskID:         hotfixID,
		EventsAppended:       len(c.staged),
		VerifyStatus:         finalRoadmap.Meta.Run.VerifyStatus,
		ProjectionHashSHA256: finalRoadmap.Meta.Run.ProjectionHashSHA256,
		DryRun:               dryRun,
	}, nil
}

// stageAgentOutput stages the validated agent event, any file writes (and
// their audit events), and a synthesised hotfix.create when the output is
// an issue.report naming fixes. File writes only happen once the agent
// event itself has tentatively materialized clean.
func (s *Service) stageAgentOutput(c *composer, actor string, task model.Task, output model.AgentOutput) (string, model.Roadmap, error) {
	action := output.ActivityEvent.Action()
	payload := activityPayload(output.ActivityEvent)

	_, roadmapAfter, err := c.tryCommit(func(seq int) []model.Event {
		return []model.Event{buildEvent(actor, action, payload, seq)}
	})
	if err != nil {
		return "", model.Roadmap{}, err
	}

	for _, fu := range output.FileUpdates {
		if err := s.writeProjectFile(fu.Path, fu.Content); err != nil {
			return "", model.Roadmap{}, err
		}
		c.commit(s.Actor, model.ActionFileWrite, map[string]any{"task_id": task.TaskID, "path": fu.Path})
	}

	hotfixID := ""
	if action == model.ActionIssueReport {
		if hotfixPayload, synth := workflow.SynthesizeHotfix(payload, roadmapAfter.Tasks); synth {
			_, roadmapAfterHotfix, err := c.tryCommit(func(seq int) []model.Event {
				return []model.Event{buildEvent(actor, model.ActionHotfixCreate, hotfixPayload, seq)}
			})
			if err == nil {
				hotfixID = fmt.Sprint(hotfixPayload["task_id"])
				roadmapAfter = roadmapAfterHotfix
			}
		}
	}

	return hotfixID, roadmapAfter, nil
}

func activityPayload(event model.ActivityEvent) map[string]any {
	payload := make(map[string]any, len(event))
	for k, v := range event {
		if k == "action" {
			continue
		}
		payload[k] = v
	}
	return payload
}

func taskIDFromRaw(raw map[string]any) string {
	activity := model.MapMap(raw, "activity_event")
	return model.MapString(activity, "task_id")
}

func findTaskByID(tasks []model.Task, taskID string) (model.Task, bool) {
	for _, t := range tasks {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return model.Task{}, false
}
