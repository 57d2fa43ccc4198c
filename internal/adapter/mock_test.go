package adapter

import (
	"context"
	"testing"

	"github.com/antigravity-dev/roadmap/internal/model"
)

func TestMockAdapterDefaultPolicyFollowsLifecycle(t *testing.T) {
	a := NewMockAdapter("agent-spec")

	todo := model.DispatchContext{Task: model.Task{TaskID: "T-1", Status: model.TaskStatusTodo}}
	out, err := a.Propose(context.Background(), todo)
	if err != nil {
		t.Fatal(err)
	}
	if out.ActivityEvent.Action() != model.ActionClaim {
		t.Fatalf("expected claim, got %s", out.ActivityEvent.Action())
	}

	inProgress := model.DispatchContext{Task: model.Task{TaskID: "T-1", Status: model.TaskStatusInProgress}}
	out, err = a.Propose(context.Background(), inProgress)
	if err != nil {
		t.Fatal(err)
	}
	if out.ActivityEvent.Action() != model.ActionComplete {
		t.Fatalf("expected complete, got %s", out.ActivityEvent.Action())
	}

	review := model.DispatchContext{Task: model.Task{TaskID: "T-1", Status: model.TaskStatusReview}}
	out, err = a.Propose(context.Background(), review)
	if err != nil {
		t.Fatal(err)
	}
	if out.ActivityEvent.Action() != model.ActionReview || out.ActivityEvent.String("decision") != "approve" {
		t.Fatalf("expected review/approve, got %+v", out.ActivityEvent)
	}
}

func TestMockAdapterDefaultPolicyCompletesHotfixAutonomously(t *testing.T) {
	a := NewMockAdapter("agent-impl")
	task := model.Task{
		TaskID: "HF-ISS-1", TaskKind: model.TaskKindImpl, Status: model.TaskStatusInProgress,
		IsHotfix: true, IssueID: "ISS-1", Fixes: []string{"T-1010"},
	}
	out, err := a.Propose(context.Background(), model.DispatchContext{Task: task})
	if err != nil {
		t.Fatal(err)
	}
	checks := model.MapStringSlice(out.ActivityEvent.Map("verification"), "checks")
	if len(checks) < 2 {
		t.Fatalf("expected at least 2 verification checks for a hotfix, got %v", checks)
	}
	if out.ActivityEvent.String("issue_id") != "ISS-1" {
		t.Fatalf("expected issue_id carried onto complete, got %q", out.ActivityEvent.String("issue_id"))
	}
	if len(out.ActivityEvent.StringSlice("fixes")) != 1 {
		t.Fatalf("expected fixes carried onto complete, got %v", out.ActivityEvent.StringSlice("fixes"))
	}
	if len(out.FileUpdates) != 1 {
		t.Fatalf("expected a file update, got %d", len(out.FileUpdates))
	}
}

func TestMockAdapterScriptedResponseTakesPriority(t *testing.T) {
	a := NewMockAdapter("agent-spec")
	scripted := model.AgentOutput{ActivityEvent: model.ActivityEvent{"action": model.ActionIssueReport, "task_id": "T-1", "issue_id": "ISS-1"}}
	a.Script("T-1", scripted)

	dispatch := model.DispatchContext{Task: model.Task{TaskID: "T-1", Status: model.TaskStatusInProgress}}
	out, err := a.Propose(context.Background(), dispatch)
	if err != nil {
		t.Fatal(err)
	}
	if out.ActivityEvent.Action() != model.ActionIssueReport {
		t.Fatalf("expected scripted issue.report, got %s", out.ActivityEvent.Action())
	}

	// second call falls through to default policy since the queue drained
	out, err = a.Propose(context.Background(), dispatch)
	if err != nil {
		t.Fatal(err)
	}
	if out.ActivityEvent.Action() != model.ActionComplete {
		t.Fatalf("expected default-policy complete after script drained, got %s", out.ActivityEvent.Action())
	}
}
