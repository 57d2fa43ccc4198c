package model

// Indexes are the derived, sorted-key lookup tables attached to the
// roadmap view (spec §4.2).
type Indexes struct {
	ByStatus map[string]int `json:"by_status"`
	ByKind   map[string]int `json:"by_kind"`
}

// Meta wraps the run state and the wall-clock stamp that must never affect
// the projection hash (spec §9).
type Meta struct {
	Run       RunMeta `json:"run"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

// Roadmap is the authoritative projection snapshot (spec §3, §4.2).
type Roadmap struct {
	SchemaVersion string  `json:"schema_version"`
	Project       string  `json:"project"`
	Tasks         []Task  `json:"tasks"`
	Indexes       Indexes `json:"indexes"`
	Meta          Meta    `json:"meta"`
}

// HashedFields is the exact substructure the projection hash is computed
// over: {schema_version, project, tasks, indexes} and nothing else (spec
// §4.2, §9). Keeping this as its own type (rather than hashing a subset of
// Roadmap ad hoc) makes the hash boundary a compile-time contract.
type HashedFields struct {
	SchemaVersion string  `json:"schema_version"`
	Project       string  `json:"project"`
	Tasks         []Task  `json:"tasks"`
	Indexes       Indexes `json:"indexes"`
}

// IssuesView lists issues sorted by issue_id and indexes open issues by
// baseline id (or "unknown" when absent), keys sorted.
type IssuesView struct {
	Issues         []Issue             `json:"issues"`
	OpenByBaseline map[string][]string `json:"open_by_baseline"`
}

// LessonsView preserves lesson insertion order and indexes by task kind and
// enforcement target (spec §4.2).
type LessonsView struct {
	Lessons               []Lesson            `json:"lessons"`
	ByTaskKind            map[string][]string `json:"by_task_kind"`
	ByEnforcementApplies  map[string][]string `json:"by_enforcement_applies_to"`
}
