package validator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/antigravity-dev/roadmap/internal/model"
)

func permissiveSchema(t *testing.T) *CompiledSchema {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_result.schema.json")
	if err := os.WriteFile(path, []byte(`{"type":"object"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	schema, err := CompileSchemaFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return schema
}

func specTask() model.Task {
	return model.Task{TaskID: "T-1000", TaskKind: model.TaskKindSpec}
}

func implTask() model.Task {
	return model.Task{TaskID: "T-1010", TaskKind: model.TaskKindImpl}
}

func baseContract() *Contract {
	return &Contract{
		Vocabulary: Vocabulary{
			AllowedAgentActions: []string{model.ActionClaim, model.ActionComplete, model.ActionReview},
			ForbiddenFields:     []string{"event_id", "event_seq", "ts", "schema_version"},
		},
		Boundaries: map[string]Boundary{
			model.TaskKindSpec: {Allow: []string{"docs/spec/**"}},
			model.TaskKindImpl: {Allow: []string{"src/**"}, Deny: []string{"src/secrets/**"}},
		},
	}
}

func TestValidateClaimAccepted(t *testing.T) {
	v := New(permissiveSchema(t), baseContract())
	raw := map[string]any{
		"activity_event": map[string]any{"action": model.ActionClaim, "task_id": "T-1000"},
	}
	out, err := v.Validate(raw, specTask())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ActivityEvent.Action() != model.ActionClaim {
		t.Fatalf("expected claim action, got %s", out.ActivityEvent.Action())
	}
}

func TestValidateRejectsUnknownTopLevelKey(t *testing.T) {
	v := New(permissiveSchema(t), baseContract())
	raw := map[string]any{
		"activity_event": map[string]any{"action": model.ActionClaim, "task_id": "T-1000"},
		"extra":          "nope",
	}
	_, err := v.Validate(raw, specTask())
	if model.CodeOf(err) != model.CodeSchemaInvalid {
		t.Fatalf("expected SCHEMA_INVALID, got %v", err)
	}
}

func TestValidateRejectsDisallowedAction(t *testing.T) {
	v := New(permissiveSchema(t), baseContract())
	raw := map[string]any{
		"activity_event": map[string]any{"action": "hotfix.create", "task_id": "T-1000"},
	}
	_, err := v.Validate(raw, specTask())
	if model.CodeOf(err) != model.CodeUnknownAction {
		t.Fatalf("expected UNKNOWN_ACTION, got %v", err)
	}
}

func TestValidateRejectsMismatchedTaskID(t *testing.T) {
	v := New(permissiveSchema(t), baseContract())
	raw := map[string]any{
		"activity_event": map[string]any{"action": model.ActionClaim, "task_id": "T-WRONG"},
	}
	_, err := v.Validate(raw, specTask())
	if model.CodeOf(err) != model.CodeSchemaInvalid {
		t.Fatalf("expected SCHEMA_INVALID, got %v", err)
	}
}

func TestValidateRejectsForbiddenFields(t *testing.T) {
	v := New(permissiveSchema(t), baseContract())
	raw := map[string]any{
		"activity_event": map[string]any{
			"action": model.ActionClaim, "task_id": "T-1000", "event_seq": 99,
		},
	}
	_, err := v.Validate(raw, specTask())
	if model.CodeOf(err) != model.CodeSchemaInvalid {
		t.Fatalf("expected SCHEMA_INVALID, got %v", err)
	}
}

func TestValidateCompleteRequiresVerificationCheck(t *testing.T) {
	contract := baseContract()
	contract.Vocabulary.AllowedAgentActions = append(contract.Vocabulary.AllowedAgentActions, model.ActionComplete)
	v := New(permissiveSchema(t), contract)
	raw := map[string]any{
		"activity_event": map[string]any{"action": model.ActionComplete, "task_id": "T-1010"},
	}
	_, err := v.Validate(raw, implTask())
	if model.CodeOf(err) != model.CodeWorkflowGate {
		t.Fatalf("expected WORKFLOW_GATE, got %v", err)
	}
}

func TestValidateCompleteHotfixRequiresTwoChecksAndIssueLink(t *testing.T) {
	contract := baseContract()
	v := New(permissiveSchema(t), contract)
	hotfix := implTask()
	hotfix.IsHotfix = true

	raw := map[string]any{
		"activity_event": map[string]any{
			"action": model.ActionComplete, "task_id": "T-1010",
			"verification": map[string]any{"checks": []any{"unit", "integration"}},
		},
	}
	_, err := v.Validate(raw, hotfix)
	if model.CodeOf(err) != model.CodeWorkflowGate {
		t.Fatalf("expected WORKFLOW_GATE (missing issue_id/fixes), got %v", err)
	}

	raw["activity_event"].(map[string]any)["issue_id"] = "ISS-1"
	raw["activity_event"].(map[string]any)["fixes"] = []any{"T-1010"}
	_, err = v.Validate(raw, hotfix)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestValidateReviewDecisionMustBeKnown(t *testing.T) {
	contract := baseContract()
	v := New(permissiveSchema(t), contract)
	raw := map[string]any{
		"activity_event": map[string]any{"action": model.ActionReview, "task_id": "T-1000", "decision": "maybe"},
	}
	_, err := v.Validate(raw, specTask())
	if model.CodeOf(err) != model.CodeWorkflowGate {
		t.Fatalf("expected WORKFLOW_GATE, got %v", err)
	}
}

func TestValidateBoundaryAllowsMatchingPath(t *testing.T) {
	contract := baseContract()
	v := New(permissiveSchema(t), contract)
	raw := map[string]any{
		"activity_event": map[string]any{"action": model.ActionClaim, "task_id": "T-1000"},
		"file_updates":   []any{map[string]any{"path": "docs/spec/T-1000.md", "content": "# spec"}},
	}
	_, err := v.Validate(raw, specTask())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateBoundaryRejectsOutOfScopePath(t *testing.T) {
	contract := baseContract()
	v := New(permissiveSchema(t), contract)
	raw := map[string]any{
		"activity_event": map[string]any{"action": model.ActionClaim, "task_id": "T-1000"},
		"file_updates":   []any{map[string]any{"path": "src/evil.py", "content": "oops"}},
	}
	_, err := v.Validate(raw, specTask())
	if model.CodeOf(err) != model.CodeBoundaryViolation {
		t.Fatalf("expected BOUNDARY_VIOLATION, got %v", err)
	}
}

func TestValidateBoundaryRejectsDeniedPath(t *testing.T) {
	contract := baseContract()
	v := New(permissiveSchema(t), contract)
	raw := map[string]any{
		"activity_event": map[string]any{"action": model.ActionClaim, "task_id": "T-1010"},
		"file_updates":   []any{map[string]any{"path": "src/secrets/keys.txt", "content": "x"}},
	}
	_, err := v.Validate(raw, implTask())
	if model.CodeOf(err) != model.CodeBoundaryViolation {
		t.Fatalf("expected BOUNDARY_VIOLATION, got %v", err)
	}
}

func TestValidateBoundaryRejectsPathEscape(t *testing.T) {
	contract := baseContract()
	v := New(permissiveSchema(t), contract)
	raw := map[string]any{
		"activity_event": map[string]any{"action": model.ActionClaim, "task_id": "T-1000"},
		"file_updates":   []any{map[string]any{"path": "../../etc/passwd", "content": "x"}},
	}
	_, err := v.Validate(raw, specTask())
	if model.CodeOf(err) != model.CodeBoundaryViolation {
		t.Fatalf("expected BOUNDARY_VIOLATION, got %v", err)
	}
}

func TestValidateHotfixPatchScopeEnforced(t *testing.T) {
	contract := baseContract()
	contract.PatchScope.Enabled = true
	v := New(permissiveSchema(t), contract)
	hotfix := implTask()
	hotfix.IsHotfix = true
	hotfix.ScopePatch = []string{"src/hotfix/"}

	raw := map[string]any{
		"activity_event": map[string]any{"action": model.ActionClaim, "task_id": "T-1010"},
		"file_updates":   []any{map[string]any{"path": "src/other/thing.go", "content": "x"}},
	}
	_, err := v.Validate(raw, hotfix)
	if model.CodeOf(err) != model.CodeBoundaryViolation {
		t.Fatalf("expected BOUNDARY_VIOLATION outside scope_patch, got %v", err)
	}

	raw["file_updates"] = []any{map[string]any{"path": "src/hotfix/HF-1.patch", "content": "x"}}
	_, err = v.Validate(raw, hotfix)
	if err != nil {
		t.Fatalf("expected success inside scope_patch, got %v", err)
	}
}
