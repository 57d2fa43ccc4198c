package model

// Task statuses (spec §3). Lifecycle: todo -> in_progress -> review -> done,
// with review -> in_progress on request-changes.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusReview     = "review"
	TaskStatusDone       = "done"
)

// Task kinds.
const (
	TaskKindSpec = "spec"
	TaskKindImpl = "impl"
	TaskKindQA   = "qa"
)

// Verification is the evidence a "complete" event attaches to a task.
type Verification struct {
	Checks []string `json:"checks,omitempty"`
}

// Task is a single roadmap work item (spec §3).
type Task struct {
	TaskID      string   `json:"task_id"`
	TaskKind    string   `json:"task_kind"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	DependsOn   []string `json:"depends_on"`
	Targets     []string `json:"targets,omitempty"`
	Outputs     struct {
		Files []string `json:"files,omitempty"`
	} `json:"outputs"`
	Immutability struct {
		DoneIsImmutable bool `json:"done_is_immutable"`
	} `json:"immutability"`

	// Ownership fields, accrued through the lifecycle.
	AssignedTo   string        `json:"assigned_to,omitempty"`
	StartedAt    string        `json:"started_at,omitempty"`
	CompletedAt  string        `json:"completed_at,omitempty"`
	Verification *Verification `json:"verification,omitempty"`
	IssueID      string        `json:"issue_id,omitempty"`
	Fixes        []string      `json:"fixes,omitempty"`

	// Hotfix fields.
	IsHotfix             bool     `json:"is_hotfix,omitempty"`
	ScopePatch           []string `json:"scope_patch,omitempty"`
	RequiredVerification []string `json:"required_verification,omitempty"`
	BaselineID           string   `json:"baseline_id,omitempty"`
}

// Clone returns a deep copy of the task so projector state can be handed
// out without letting callers mutate it back in (spec §9 Deep copy
// discipline).
func (t Task) Clone() Task {
	out := t
	out.DependsOn = append([]string(nil), t.DependsOn...)
	out.Targets = append([]string(nil), t.Targets...)
	out.Outputs.Files = append([]string(nil), t.Outputs.Files...)
	out.Fixes = append([]string(nil), t.Fixes...)
	out.ScopePatch = append([]string(nil), t.ScopePatch...)
	out.RequiredVerification = append([]string(nil), t.RequiredVerification...)
	if t.Verification != nil {
		v := *t.Verification
		v.Checks = append([]string(nil), t.Verification.Checks...)
		out.Verification = &v
	}
	return out
}
