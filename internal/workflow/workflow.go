// Package workflow implements task selection, dispatch-context assembly,
// hotfix synthesis, and run-termination detection over a materialized
// roadmap (spec §4.3).
package workflow

import (
	"fmt"
	"sort"

	"github.com/antigravity-dev/roadmap/internal/model"
)

// DefaultBaseline is used for a synthesised hotfix when the originating
// issue carries no baseline_id (spec §4.3).
const DefaultBaseline = "B-000"

// SelectNext returns the next actionable task per spec §4.3's priority
// order, or ok=false if the run is quiescent:
//
//  1. review tasks, smallest task_id first;
//  2. else in_progress tasks, smallest task_id first;
//  3. else todo tasks in ascending task_id whose every known depends_on is
//     done — unknown dependency ids are ignored, inverting the teacher's
//     beads.isBlocked policy of treating a missing id as blocking (see
//     DESIGN.md).
func SelectNext(tasks []model.Task) (model.Task, bool) {
	if task, ok := firstByStatus(tasks, model.TaskStatusReview); ok {
		return task, true
	}
	if task, ok := firstByStatus(tasks, model.TaskStatusInProgress); ok {
		return task, true
	}

	byID := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.TaskID] = t
	}

	candidates := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == model.TaskStatusTodo && dependenciesSatisfied(t, byID) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return model.Task{}, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].TaskID < candidates[j].TaskID })
	return candidates[0], true
}

func firstByStatus(tasks []model.Task, status string) (model.Task, bool) {
	matches := make([]model.Task, 0)
	for _, t := range tasks {
		if t.Status == status {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return model.Task{}, false
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].TaskID < matches[j].TaskID })
	return matches[0], true
}

// dependenciesSatisfied reports whether every depends_on id that is
// actually present in the roadmap is done. An id with no matching task is
// out-of-scope for this log and does not block (spec §4.3 item 3).
func dependenciesSatisfied(t model.Task, byID map[string]model.Task) bool {
	for _, dep := range t.DependsOn {
		depTask, known := byID[dep]
		if !known {
			continue
		}
		if depTask.Status != model.TaskStatusDone {
			return false
		}
	}
	return true
}

// BuildDispatchContext assembles the read-only bundle handed to an adapter
// (spec §4.3).
func BuildDispatchContext(task model.Task, boundaries model.Boundaries, run model.RunMeta, project string) model.DispatchContext {
	return model.DispatchContext{
		Task:       task.Clone(),
		Boundaries: boundaries,
		ContextPack: model.ContextPack{
			RunMeta: run,
			Project: project,
		},
		Correlation: model.Correlation{
			MasterCorrelationID: run.MasterCorrelationID,
			TaskID:              task.TaskID,
		},
	}
}

// SynthesizeHotfix returns a hotfix.create payload for the given
// issue.report payload, or ok=false if no hotfix should be synthesised
// (the report carries no fixes, no issue_id, or a hotfix for this issue
// already exists). The returned payload is the event payload shape
// consumed by internal/projector's applyHotfixCreate (spec §4.3).
func SynthesizeHotfix(reportPayload map[string]any, existingTasks []model.Task) (map[string]any, bool) {
	issueID := model.MapString(reportPayload, "issue_id")
	fixes := model.MapStringSlice(reportPayload, "fixes")
	if issueID == "" || len(fixes) == 0 {
		return nil, false
	}

	hotfixID := fmt.Sprintf("HF-%s", issueID)
	for _, t := range existingTasks {
		if t.TaskID == hotfixID {
			return nil, false
		}
	}

	baseline := model.MapString(model.MapMap(reportPayload, "affected"), "baseline_id")
	if baseline == "" {
		baseline = DefaultBaseline
	}

	scopePatch := model.MapStringSlice(reportPayload, "scope_patch")
	if len(scopePatch) == 0 {
		scopePatch = []string{"src/hotfix/"}
	}
	requiredVerification := model.MapStringSlice(reportPayload, "required_verification")
	if len(requiredVerification) == 0 {
		requiredVerification = []string{"unit", "regression"}
	}

	return map[string]any{
		"task_id":     hotfixID,
		"task_kind":   model.TaskKindImpl,
		"title":       fmt.Sprintf("Hotfix for %s", issueID),
		"is_hotfix":   true,
		"issue_id":    issueID,
		"fixes":       fixes,
		"baseline_id": baseline,
		"outputs": map[string]any{
			"files": []any{fmt.Sprintf("src/hotfix/%s.patch", hotfixID)},
		},
		"scope_patch":            toAnySlice(scopePatch),
		"required_verification": toAnySlice(requiredVerification),
	}, true
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// ShouldTerminate reports whether every task is done and the run has not
// already been recorded as successful — the condition under which the
// service should append run.end{status: success} (spec §4.3).
func ShouldTerminate(tasks []model.Task, runStatus string) bool {
	if len(tasks) == 0 {
		return false
	}
	if runStatus == model.RunStatusSuccess {
		return false
	}
	for _, t := range tasks {
		if t.Status != model.TaskStatusDone {
			return false
		}
	}
	return true
}
