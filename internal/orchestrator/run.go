package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/antigravity-dev/roadmap/internal/model"
	"github.com/antigravity-dev/roadmap/internal/workflow"
)

// RunStep records what happened to one selected task during Run.
type RunStep struct {
	TaskID   string `json:"task_id"`
	Action   string `json:"action,omitempty"`
	Accepted bool   `json:"accepted"`
	Rejected string `json:"rejected_reason,omitempty"`
}

// RunResult is the JSON-serializable outcome of an autonomous run batch.
type RunResult struct {
	Steps                []RunStep `json:"steps"`
	EventsAppended        int       `json:"events_appended"`
	Terminated            bool      `json:"terminated"`
	VerifyStatus          string    `json:"verify_status"`
	ProjectionHashSHA256  string    `json:"projection_hash_sha256"`
	DryRun                bool      `json:"dry_run"`
}

// Run drives the configured adapter through up to steps selections,
// validating and applying each proposed output exactly as Submit does,
// except a rejected step never aborts the batch: it is recorded as an
// output.rejected audit event and the loop continues (spec §4.5, §7
// propagation policy).
func (s *Service) Run(ctx context.Context, steps int, dryRun bool) (RunResult, error) {
	events, err := s.Store.Parse()
	if err != nil {
		return RunResult{}, err
	}

	c := newComposer(events, s.Project)
	c.commit(s.Actor, model.ActionVerifyStart, nil)

	result := RunResult{DryRun: dryRun}

	for i := 0; i < steps; i++ {
		roadmap, _, _, err := c.materializeAll()
		if err != nil {
			return RunResult{}, err
		}
		task, ok := workflow.SelectNext(roadmap.Tasks)
		if !ok {
			break
		}

		boundaries := model.Boundaries{}
		if s.Validator != nil && s.Validator.Contract != nil {
			boundaries.Write = s.Validator.Contract.BoundaryFor(task.TaskKind).Allow
		}
		dispatch := workflow.BuildDispatchContext(task, boundaries, roadmap.Meta.Run, s.Project)

		output, err := s.Adapter.Propose(ctx, dispatch)
		if err != nil {
			c.commit(s.Actor, model.ActionOutputRejected, map[string]any{"task_id": task.TaskID, "reason": err.Error()})
			result.Steps = append(result.Steps, RunStep{TaskID: task.TaskID, Accepted: false, Rejected: err.Error()})
			continue
		}

		raw, err := toRawDocument(output)
		if err != nil {
			return RunResult{}, err
		}
		validated, err := s.Validator.Validate(raw, task)
		if err != nil {
			c.commit(s.Actor, model.ActionOutputRejected, map[string]any{"task_id": task.TaskID, "reason": err.Error(), "code": model.CodeOf(err)})
			result.Steps = append(result.Steps, RunStep{TaskID: task.TaskID, Accepted: false, Rejected: err.Error()})
			continue
		}

		_, _, err = s.stageAgentOutput(c, s.Actor, task, validated)
		if err != nil {
			c.commit(s.Actor, model.ActionOutputRejected, map[string]any{"task_id": task.TaskID, "reason": err.Error(), "code": model.CodeOf(err)})
			result.Steps = append(result.Steps, RunStep{TaskID: task.TaskID, Accepted: false, Rejected: err.Error()})
			continue
		}

		result.Steps = append(result.Steps, RunStep{TaskID: task.TaskID, Action: validated.ActivityEvent.Action(), Accepted: true})
	}

	roadmap, issues, lessons, err := c.materializeAll()
	if err != nil {
		return RunResult{}, err
	}
	if workflow.ShouldTerminate(roadmap.Tasks, roadmap.Meta.Run.Status) {
		c.commit(s.Actor, model.ActionRunEnd, map[string]any{"status": model.RunStatusSuccess})
		result.Terminated = true
	}

	finalRoadmap, issues, lessons, err := c.materializeAll()
	if err != nil {
		return RunResult{}, err
	}
	c.commit(s.Actor, model.ActionVerifyOK, map[string]any{
		"verify_status":          model.VerifyStatusOK,
		"projection_hash_sha256": finalRoadmap.Meta.Run.ProjectionHashSHA256,
	})
	finalRoadmap, issues, lessons, err = c.materializeAll()
	if err != nil {
		return RunResult{}, err
	}

	if !dryRun {
		if err := s.Store.Append(c.staged); err != nil {
			return RunResult{}, err
		}
		if err := s.writeViews(finalRoadmap, issues, lessons); err != nil {
			return RunResult{}, err
		}
	}

	result.EventsAppended = len(c.staged)
	result.VerifyStatus = finalRoadmap.Meta.Run.VerifyStatus
	result.ProjectionHashSHA256 = finalRoadmap.Meta.Run.ProjectionHashSHA256
	return result, nil
}

// toRawDocument round-trips a typed AgentOutput into the raw
// map[string]any document validator.Validate expects, the same shape an
// externally-submitted JSON file decodes into.
func toRawDocument(output model.AgentOutput) (map[string]any, error) {
	data, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: marshal adapter output: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("orchestrator: unmarshal adapter output: %w", err)
	}
	return raw, nil
}
