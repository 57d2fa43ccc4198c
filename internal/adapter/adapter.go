// Package adapter defines the boundary between the orchestrator core and
// whatever actually performs a task — a human, a scripted worker, or an
// LLM backend. Grounded on the teacher's internal/dispatch.Backend
// interface, narrowed to a single synchronous call: this core has no
// async dispatch/poll/kill lifecycle (spec §5 single-process).
package adapter

import (
	"context"

	"github.com/antigravity-dev/roadmap/internal/model"
)

// Adapter produces one candidate agent output for a dispatch context, or
// an error if it cannot. It is the sole extension point named in spec §1
// as out of scope for this core's implementation — only the interface is
// defined here.
type Adapter interface {
	Propose(ctx context.Context, dispatch model.DispatchContext) (model.AgentOutput, error)
}
