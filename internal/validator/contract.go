package validator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Boundary is the allow/deny glob pair gating writes for one task kind.
type Boundary struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// PatchScope controls whether hotfix write paths must additionally fall
// under the task's scope_patch prefixes (spec §4.4 item 8).
type PatchScope struct {
	Enabled bool `yaml:"enabled"`
}

// Vocabulary names the actions an agent is allowed to propose and the
// event fields it may never set itself.
type Vocabulary struct {
	AllowedAgentActions []string `yaml:"allowed_agent_actions"`
	ForbiddenFields     []string `yaml:"forbidden_fields"`
}

// Contract is the declarative AGENT_CONTRACT.yaml document (spec §4.4,
// §6): vocabulary, forbidden fields, and per-task-kind write boundaries.
// It is loaded once at service construction and passed by reference into
// the validator, mirroring the teacher's load-once-reuse convention for
// its own declarative documents.
type Contract struct {
	Vocabulary  Vocabulary          `yaml:"vocabulary"`
	Boundaries  map[string]Boundary `yaml:"boundaries"`
	PatchScope  PatchScope          `yaml:"patch_scope"`
}

// LoadContract reads and parses a contract document from path.
func LoadContract(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("validator: read contract %s: %w", path, err)
	}
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("validator: parse contract %s: %w", path, err)
	}
	return &c, nil
}

// ActionAllowed reports whether action is in the contract's vocabulary.
func (c *Contract) ActionAllowed(action string) bool {
	for _, a := range c.Vocabulary.AllowedAgentActions {
		if a == action {
			return true
		}
	}
	return false
}

// ForbiddenFieldsPresent returns any contract-forbidden field names found
// among keys.
func (c *Contract) ForbiddenFieldsPresent(keys []string) []string {
	forbidden := make(map[string]bool, len(c.Vocabulary.ForbiddenFields))
	for _, f := range c.Vocabulary.ForbiddenFields {
		forbidden[f] = true
	}
	var present []string
	for _, k := range keys {
		if forbidden[k] {
			present = append(present, k)
		}
	}
	return present
}

// BoundaryFor returns the configured boundary for a task kind, or the
// zero value (which allows nothing) if the kind is unconfigured.
func (c *Contract) BoundaryFor(taskKind string) Boundary {
	return c.Boundaries[taskKind]
}
