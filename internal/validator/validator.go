// Package validator checks an agent's proposed output against the
// declarative result schema, the agent contract, and the dispatched
// task's boundaries (spec §4.4).
package validator

import (
	"encoding/json"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/antigravity-dev/roadmap/internal/canon"
	"github.com/antigravity-dev/roadmap/internal/model"
)

// Validator bundles the compiled schema and loaded contract a service
// needs to run every submitted agent output through the spec's eight
// ordered checks.
type Validator struct {
	Schema   *CompiledSchema
	Contract *Contract
}

// New returns a Validator wired with the given compiled schema and
// contract.
func New(schema *CompiledSchema, contract *Contract) *Validator {
	return &Validator{Schema: schema, Contract: contract}
}

// Validate runs the eight ordered checks from spec §4.4 against raw (the
// JSON-decoded {activity_event, file_updates?} document) for the given
// dispatched task, returning the typed output on success.
func (v *Validator) Validate(raw map[string]any, task model.Task) (model.AgentOutput, error) {
	// 1. Structural schema validation.
	doc, err := decodeToDocument(raw)
	if err != nil {
		return model.AgentOutput{}, model.NewError(model.CodeSchemaInvalid, "%v", err)
	}
	if err := v.Schema.Validate(doc); err != nil {
		return model.AgentOutput{}, model.NewError(model.CodeSchemaInvalid, "%v", err)
	}

	// 2. Only activity_event and file_updates as top-level keys.
	for key := range raw {
		if key != "activity_event" && key != "file_updates" {
			return model.AgentOutput{}, model.NewError(model.CodeSchemaInvalid, "unknown top-level key %q", key)
		}
	}

	output, err := decodeOutput(raw)
	if err != nil {
		return model.AgentOutput{}, model.NewError(model.CodeSchemaInvalid, "%v", err)
	}
	event := output.ActivityEvent

	// 3. action must be in the contract's allowed vocabulary.
	action := event.Action()
	if !v.Contract.ActionAllowed(action) {
		return model.AgentOutput{}, model.NewError(model.CodeUnknownAction, "action %q is not in the allowed vocabulary", action)
	}

	// 4. activity_event.task_id must equal the dispatched task_id.
	if event.TaskID() != task.TaskID {
		return model.AgentOutput{}, model.NewError(model.CodeSchemaInvalid, "activity_event.task_id %q does not match dispatched task %q", event.TaskID(), task.TaskID)
	}

	// 5. No forbidden fields on the event.
	if forbidden := v.Contract.ForbiddenFieldsPresent(event.Keys()); len(forbidden) > 0 {
		return model.AgentOutput{}, model.NewError(model.CodeSchemaInvalid, "forbidden fields present: %s", strings.Join(forbidden, ", "))
	}

	// 6. Action-specific workflow gates.
	if action == model.ActionComplete {
		if err := checkCompleteGate(event, task); err != nil {
			return model.AgentOutput{}, err
		}
	}

	// 7. review decision must be approve or request_changes.
	if action == model.ActionReview {
		decision := event.String("decision")
		if decision != "approve" && decision != "request_changes" {
			return model.AgentOutput{}, model.NewError(model.CodeWorkflowGate, "review decision %q is not approve or request_changes", decision)
		}
	}

	// 8. Boundary checks on every file update.
	boundary := v.Contract.BoundaryFor(task.TaskKind)
	for _, update := range output.FileUpdates {
		if err := checkBoundary(update.Path, task, boundary, v.Contract.PatchScope); err != nil {
			return model.AgentOutput{}, err
		}
	}

	return output, nil
}

func checkCompleteGate(event model.ActivityEvent, task model.Task) error {
	checks := event.Map("verification")
	numChecks := len(model.MapStringSlice(checks, "checks"))

	if task.TaskKind == model.TaskKindImpl {
		required := 1
		if task.IsHotfix {
			required = 2
		}
		if numChecks < required {
			return model.NewError(model.CodeWorkflowGate, "complete on task %q requires at least %d verification check(s), got %d", task.TaskID, required, numChecks)
		}
	}

	if task.IsHotfix {
		if event.String("issue_id") == "" || len(event.StringSlice("fixes")) == 0 {
			return model.NewError(model.CodeWorkflowGate, "complete on hotfix task %q must include issue_id and fixes", task.TaskID)
		}
	}
	return nil
}

func checkBoundary(path string, task model.Task, boundary Boundary, patchScope PatchScope) error {
	normalized, err := canon.SafeRelPath(path)
	if err != nil {
		return model.NewError(model.CodeBoundaryViolation, "%v", err)
	}

	if !matchesAny(normalized, boundary.Allow) {
		return model.NewError(model.CodeBoundaryViolation, "path %q does not match any allowed pattern for task kind %q", normalized, task.TaskKind)
	}
	if matchesAny(normalized, boundary.Deny) {
		return model.NewError(model.CodeBoundaryViolation, "path %q matches a denied pattern for task kind %q", normalized, task.TaskKind)
	}

	if patchScope.Enabled && task.IsHotfix {
		if len(task.ScopePatch) == 0 {
			return model.NewError(model.CodeBoundaryViolation, "hotfix task %q has no scope_patch configured", task.TaskID)
		}
		if !hasPrefix(normalized, task.ScopePatch) {
			return model.NewError(model.CodeBoundaryViolation, "path %q is outside hotfix task %q's scope_patch", normalized, task.TaskID)
		}
	}
	return nil
}

func matchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// decodeOutput round-trips raw through JSON into model.AgentOutput so the
// caller always works with the typed shape after the raw-key checks run.
func decodeOutput(raw map[string]any) (model.AgentOutput, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return model.AgentOutput{}, err
	}
	var out model.AgentOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return model.AgentOutput{}, err
	}
	if out.ActivityEvent == nil {
		out.ActivityEvent = model.ActivityEvent{}
	}
	return out, nil
}
