package model

// Boundaries are the read/write glob sets a task kind is allowed to touch,
// taken from the agent contract (spec §4.3, §4.4).
type Boundaries struct {
	Read  []string `json:"read,omitempty"`
	Write []string `json:"write,omitempty"`
}

// ContextPack is the run-meta/project summary handed to an adapter.
type ContextPack struct {
	RunMeta RunMeta `json:"run_meta"`
	Project string  `json:"project"`
}

// Correlation identifies which run and task a dispatch belongs to.
type Correlation struct {
	MasterCorrelationID string `json:"master_correlation_id"`
	TaskID              string `json:"task_id"`
}

// DispatchContext is the read-only bundle handed to an adapter when asking
// it to act on a task (spec §4.3).
type DispatchContext struct {
	Task        Task        `json:"task"`
	Boundaries  Boundaries  `json:"boundaries"`
	ContextPack ContextPack `json:"context_pack"`
	Correlation Correlation `json:"correlation"`
}

// FileUpdate is a single file an agent output wants written.
type FileUpdate struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ActivityEvent is the raw, agent-authored event proposal inside an
// AgentOutput. It is deliberately an untyped map (spec §9 Dynamic
// payloads): an agent may only ever produce action/task_id and a handful
// of action-specific fields, never the orchestrator-owned identity fields
// (event_id, event_seq, ts, schema_version) that the contract's
// forbidden_fields list polices.
type ActivityEvent map[string]any

func (a ActivityEvent) String(key string) string        { return MapString(a, key) }
func (a ActivityEvent) Bool(key string) bool             { return MapBool(a, key) }
func (a ActivityEvent) StringSlice(key string) []string  { return MapStringSlice(a, key) }
func (a ActivityEvent) Map(key string) map[string]any    { return MapMap(a, key) }
func (a ActivityEvent) Action() string                   { return a.String("action") }
func (a ActivityEvent) TaskID() string                   { return a.String("task_id") }

// Keys returns the top-level field names present, for forbidden-field
// checks.
func (a ActivityEvent) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	return keys
}

// AgentOutput is the shape validated by internal/validator and, once
// accepted, turned into proposed events by internal/orchestrator (spec
// §4.4).
type AgentOutput struct {
	ActivityEvent ActivityEvent `json:"activity_event"`
	FileUpdates   []FileUpdate  `json:"file_updates,omitempty"`
}
