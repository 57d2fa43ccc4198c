package projector

import (
	"testing"

	"github.com/antigravity-dev/roadmap/internal/model"
)

func ev(seq int, ts, actor, action string, payload map[string]any) model.Event {
	return model.Event{
		SchemaVersion: model.CurrentSchemaVersion,
		EventID:       "EV-" + actor + "-" + action,
		EventSeq:      seq,
		TS:            ts,
		Actor:         actor,
		Action:        action,
		Payload:       payload,
	}
}

func seedEvents() []model.Event {
	return []model.Event{
		ev(1, "2026-07-31T00:00:00Z", "orchestrator", model.ActionRunStart, map[string]any{
			"run_id": "RUN-0001", "master_correlation_id": "CID-1",
		}),
		ev(2, "2026-07-31T00:00:01Z", "orchestrator", model.ActionTaskCreate, map[string]any{
			"task_id": "T-1000", "task_kind": "spec", "title": "Write spec",
		}),
		ev(3, "2026-07-31T00:00:02Z", "orchestrator", model.ActionTaskCreate, map[string]any{
			"task_id": "T-1010", "task_kind": "impl", "title": "Implement",
			"depends_on": []any{"T-1000"},
		}),
	}
}

func TestMaterializeIsDeterministic(t *testing.T) {
	events := seedEvents()
	r1, _, _, err := Materialize(events, "demo")
	if err != nil {
		t.Fatal(err)
	}
	r2, _, _, err := Materialize(events, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if r1.Meta.Run.ProjectionHashSHA256 != r2.Meta.Run.ProjectionHashSHA256 {
		t.Fatalf("hash mismatch across identical materializations")
	}
}

func TestMaterializeHashExcludesUpdatedAt(t *testing.T) {
	events := seedEvents()
	r1, _, _, err := Materialize(events, "demo")
	if err != nil {
		t.Fatal(err)
	}

	later := append([]model.Event(nil), events...)
	later[len(later)-1] = ev(3, "2099-01-01T00:00:00Z", "orchestrator", model.ActionTaskCreate, events[2].Payload)
	r2, _, _, err := Materialize(later, "demo")
	if err != nil {
		t.Fatal(err)
	}

	if r1.Meta.UpdatedAt == r2.Meta.UpdatedAt {
		t.Fatalf("expected different updated_at to demonstrate the exclusion")
	}
	if r1.Meta.Run.ProjectionHashSHA256 != r2.Meta.Run.ProjectionHashSHA256 {
		t.Fatalf("hash must not depend on meta.updated_at")
	}
}

func TestPrefixReplayMatchesTruncatedMaterialize(t *testing.T) {
	events := seedEvents()
	full, _, _, err := Materialize(events, "demo")
	if err != nil {
		t.Fatal(err)
	}
	prefix, _, _, err := Materialize(events[:2], "demo")
	if err != nil {
		t.Fatal(err)
	}
	if full.Meta.Run.ProjectionHashSHA256 == prefix.Meta.Run.ProjectionHashSHA256 {
		t.Fatalf("expected prefix hash to differ from full hash (different task set)")
	}

	// Re-materializing the same prefix twice must still be stable.
	prefixAgain, _, _, err := Materialize(events[:2], "demo")
	if err != nil {
		t.Fatal(err)
	}
	if prefix.Meta.Run.ProjectionHashSHA256 != prefixAgain.Meta.Run.ProjectionHashSHA256 {
		t.Fatalf("prefix materialization is not stable")
	}
}

func TestClaimCompleteApprove(t *testing.T) {
	events := append(seedEvents(),
		ev(4, "2026-07-31T00:00:03Z", "agent-spec", model.ActionClaim, map[string]any{"task_id": "T-1000"}),
		ev(5, "2026-07-31T00:00:04Z", "agent-spec", model.ActionComplete, map[string]any{
			"task_id": "T-1000", "verification": map[string]any{"checks": []any{"reviewed"}},
		}),
		ev(6, "2026-07-31T00:00:05Z", "agent-spec", model.ActionReview, map[string]any{
			"task_id": "T-1000", "decision": "approve",
		}),
	)
	roadmap, _, _, err := Materialize(events, "demo")
	if err != nil {
		t.Fatal(err)
	}
	task := findTask(t, roadmap, "T-1000")
	if task.Status != model.TaskStatusDone {
		t.Fatalf("expected done, got %s", task.Status)
	}
	if task.AssignedTo != "agent-spec" {
		t.Fatalf("expected agent-spec, got %s", task.AssignedTo)
	}
	if task.CompletedAt == "" {
		t.Fatalf("expected completed_at to be set")
	}
}

func TestNonOwnerCompleteRaisesNotLockOwner(t *testing.T) {
	events := append(seedEvents(),
		ev(4, "2026-07-31T00:00:03Z", "agent-a", model.ActionClaim, map[string]any{"task_id": "T-1000"}),
		ev(5, "2026-07-31T00:00:04Z", "agent-b", model.ActionComplete, map[string]any{"task_id": "T-1000"}),
	)
	_, _, _, err := Materialize(events, "demo")
	if model.CodeOf(err) != model.CodeNotLockOwner {
		t.Fatalf("expected NOT_LOCK_OWNER, got %v", err)
	}
}

func TestCompleteOnNeverClaimedTaskRaisesInvalidTransition(t *testing.T) {
	events := append(seedEvents(),
		ev(4, "2026-07-31T00:00:03Z", "agent-a", model.ActionComplete, map[string]any{"task_id": "T-1000"}),
	)
	_, _, _, err := Materialize(events, "demo")
	if model.CodeOf(err) != model.CodeInvalidTransition {
		t.Fatalf("expected INVALID_TRANSITION for a complete on a never-claimed todo task, got %v", err)
	}
}

func TestDoneTaskIsImmutable(t *testing.T) {
	events := append(seedEvents(),
		ev(4, "2026-07-31T00:00:03Z", "agent-spec", model.ActionClaim, map[string]any{"task_id": "T-1000"}),
		ev(5, "2026-07-31T00:00:04Z", "agent-spec", model.ActionComplete, map[string]any{"task_id": "T-1000"}),
		ev(6, "2026-07-31T00:00:05Z", "agent-spec", model.ActionReview, map[string]any{"task_id": "T-1000", "decision": "approve"}),
		ev(7, "2026-07-31T00:00:06Z", "agent-spec", model.ActionClaim, map[string]any{"task_id": "T-1000"}),
	)
	_, _, _, err := Materialize(events, "demo")
	if model.CodeOf(err) != model.CodeImmutableDone {
		t.Fatalf("expected IMMUTABLE_DONE, got %v", err)
	}
}

func TestClaimAlreadyLockedRaisesLockedTask(t *testing.T) {
	events := append(seedEvents(),
		ev(4, "2026-07-31T00:00:03Z", "agent-a", model.ActionClaim, map[string]any{"task_id": "T-1000"}),
		ev(5, "2026-07-31T00:00:04Z", "agent-b", model.ActionClaim, map[string]any{"task_id": "T-1000"}),
	)
	_, _, _, err := Materialize(events, "demo")
	if model.CodeOf(err) != model.CodeLockedTask {
		t.Fatalf("expected LOCKED_TASK, got %v", err)
	}
}

func TestDuplicateTaskCreateRaisesDuplicateTask(t *testing.T) {
	events := append(seedEvents(),
		ev(4, "2026-07-31T00:00:03Z", "orchestrator", model.ActionTaskCreate, map[string]any{
			"task_id": "T-1000", "task_kind": "spec", "title": "Dup",
		}),
	)
	_, _, _, err := Materialize(events, "demo")
	if model.CodeOf(err) != model.CodeDuplicateTask {
		t.Fatalf("expected DUPLICATE_TASK, got %v", err)
	}
}

func TestIssueReportAndResolve(t *testing.T) {
	events := append(seedEvents(),
		ev(4, "2026-07-31T00:00:03Z", "agent-qa", model.ActionIssueReport, map[string]any{
			"issue_id": "ISS-1", "severity": "high", "title": "Broken build",
			"affected": map[string]any{"baseline_id": "B-1"},
		}),
		ev(5, "2026-07-31T00:00:04Z", "agent-qa", model.ActionIssueResolve, map[string]any{
			"issue_id": "ISS-1", "resolution": map[string]any{"summary": "fixed"},
		}),
	)
	_, issues, _, err := Materialize(events, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(issues.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues.Issues))
	}
	if issues.Issues[0].Status != model.IssueStatusResolved {
		t.Fatalf("expected resolved, got %s", issues.Issues[0].Status)
	}
	if len(issues.OpenByBaseline) != 0 {
		t.Fatalf("expected no open issues indexed, got %v", issues.OpenByBaseline)
	}
}

func TestIssueResolveUnknownRaisesIssueNotFound(t *testing.T) {
	events := append(seedEvents(),
		ev(4, "2026-07-31T00:00:03Z", "agent-qa", model.ActionIssueResolve, map[string]any{"issue_id": "ISS-404"}),
	)
	_, _, _, err := Materialize(events, "demo")
	if model.CodeOf(err) != model.CodeIssueNotFound {
		t.Fatalf("expected ISSUE_NOT_FOUND, got %v", err)
	}
}

func TestIssueReportLessonSynthesis(t *testing.T) {
	events := append(seedEvents(),
		ev(4, "2026-07-31T00:00:03Z", "agent-qa", model.ActionIssueReport, map[string]any{
			"issue_id": "ISS-1", "category": "process", "subtype": "lesson",
			"title": "Always run linter", "mistake": "skipped lint", "rule": "run lint before complete",
			"scope":       map[string]any{"task_kinds": []any{"impl"}},
			"enforcement": map[string]any{"applies_to": []any{"impl", "qa"}},
		}),
	)
	_, _, lessons, err := Materialize(events, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(lessons.Lessons) != 1 {
		t.Fatalf("expected 1 lesson, got %d", len(lessons.Lessons))
	}
	if lessons.Lessons[0].LessonID != "LES-0001" {
		t.Fatalf("expected LES-0001, got %s", lessons.Lessons[0].LessonID)
	}
	if len(lessons.ByTaskKind["impl"]) != 1 {
		t.Fatalf("expected lesson indexed under impl")
	}
}

func TestHotfixCreateDuplicateRaisesDuplicateTask(t *testing.T) {
	events := append(seedEvents(),
		ev(4, "2026-07-31T00:00:03Z", "orchestrator", model.ActionHotfixCreate, map[string]any{
			"task_id": "T-1000", "issue_id": "ISS-1",
		}),
	)
	_, _, _, err := Materialize(events, "demo")
	if model.CodeOf(err) != model.CodeDuplicateTask {
		t.Fatalf("expected DUPLICATE_TASK, got %v", err)
	}
}

func TestIndexesAreSortedAndCounted(t *testing.T) {
	roadmap, _, _, err := Materialize(seedEvents(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	if roadmap.Indexes.ByStatus[model.TaskStatusTodo] != 2 {
		t.Fatalf("expected 2 todo tasks, got %d", roadmap.Indexes.ByStatus[model.TaskStatusTodo])
	}
	if roadmap.Indexes.ByKind["spec"] != 1 || roadmap.Indexes.ByKind["impl"] != 1 {
		t.Fatalf("unexpected kind index: %+v", roadmap.Indexes.ByKind)
	}
}

func findTask(t *testing.T, roadmap model.Roadmap, id string) model.Task {
	t.Helper()
	for _, task := range roadmap.Tasks {
		if task.TaskID == id {
			return task
		}
	}
	t.Fatalf("task %s not found", id)
	return model.Task{}
}
