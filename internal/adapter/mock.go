package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/antigravity-dev/roadmap/internal/model"
)

// MockAdapter is the reference adapter named in spec §1's out-of-scope
// list ("concrete agent adapters... mentioned only via interface") — a
// deterministic, table-driven fake. Scripted responses are consulted
// first (keyed by task_id, one response popped per call); absent a
// script entry, a default policy advances the task by its own status so
// a run loop always makes progress without per-task configuration.
type MockAdapter struct {
	Actor string

	// Scripted holds queued responses per task_id, consumed in order.
	Scripted map[string][]model.AgentOutput
}

// NewMockAdapter returns a MockAdapter acting as actor.
func NewMockAdapter(actor string) *MockAdapter {
	return &MockAdapter{Actor: actor, Scripted: make(map[string][]model.AgentOutput)}
}

// Script queues output to be returned the next time Propose is called for
// taskID, before the default policy is consulted.
func (a *MockAdapter) Script(taskID string, output model.AgentOutput) {
	a.Scripted[taskID] = append(a.Scripted[taskID], output)
}

// Propose implements Adapter.
func (a *MockAdapter) Propose(_ context.Context, dispatch model.DispatchContext) (model.AgentOutput, error) {
	taskID := dispatch.Task.TaskID

	if queue := a.Scripted[taskID]; len(queue) > 0 {
		out := queue[0]
		a.Scripted[taskID] = queue[1:]
		return out, nil
	}

	return a.defaultPolicy(dispatch.Task), nil
}

// defaultPolicy advances a task one lifecycle step at a time, by status
// alone (it does not check assigned_to): claim a todo task, complete an
// in_progress task (attaching a second verification check and the
// issue_id/fixes back-link when the task is a hotfix, so a hotfix can
// autonomously complete its contract gate), approve a task in review; any
// other status gets a claim. It never invents a more sophisticated decision
// — tests needing request_changes or issue reports should Script the
// response.
func (a *MockAdapter) defaultPolicy(task model.Task) model.AgentOutput {
	switch task.Status {
	case model.TaskStatusTodo:
		return model.AgentOutput{ActivityEvent: model.ActivityEvent{
			"action":  model.ActionClaim,
			"task_id": task.TaskID,
		}}
	case model.TaskStatusInProgress:
		checks := []any{fmt.Sprintf("mock-check:%s", task.TaskID)}
		if task.IsHotfix {
			checks = append(checks, fmt.Sprintf("mock-hotfix-check:%s", task.TaskID))
		}
		event := model.ActivityEvent{
			"action":       model.ActionComplete,
			"task_id":      task.TaskID,
			"verification": map[string]any{"checks": checks},
		}
		if task.IsHotfix {
			event["issue_id"] = task.IssueID
			event["fixes"] = task.Fixes
		}
		return model.AgentOutput{
			ActivityEvent: event,
			FileUpdates:   []model.FileUpdate{{Path: outputFileFor(task), Content: fileContentFor(task)}},
		}
	case model.TaskStatusReview:
		return model.AgentOutput{ActivityEvent: model.ActivityEvent{
			"action":   model.ActionReview,
			"task_id":  task.TaskID,
			"decision": "approve",
		}}
	default:
		return model.AgentOutput{ActivityEvent: model.ActivityEvent{
			"action":  model.ActionClaim,
			"task_id": task.TaskID,
		}}
	}
}

// outputFileFor picks the file a completed task writes: the task's own
// declared output if it has one, else a kind-appropriate default path.
func outputFileFor(task model.Task) string {
	if len(task.Outputs.Files) > 0 {
		return task.Outputs.Files[0]
	}
	switch task.TaskKind {
	case model.TaskKindSpec:
		return fmt.Sprintf("docs/spec/%s.md", task.TaskID)
	case model.TaskKindImpl:
		return fmt.Sprintf("src/%s.txt", strings.ToLower(task.TaskID))
	default:
		return fmt.Sprintf("docs/qa/%s.md", task.TaskID)
	}
}

func fileContentFor(task model.Task) string {
	return fmt.Sprintf("# %s\n\n- kind: %s\n- generated_by: mock_adapter\n- note: deterministic fixture output\n", task.TaskID, task.TaskKind)
}
