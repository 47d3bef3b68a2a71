// Package applier defines the execution collaborator invoked for approved
// binding decisions. Execution failure never retroactively changes a
// decision - the coordinator records the failed result and moves on.
package applier

import (
	"context"
	"time"

	"github.com/trust-arbor/arbor/consensus"
)

// Result statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Result reports the outcome of applying an approved change.
type Result struct {
	Status    string    `json:"status"`
	Output    string    `json:"output,omitempty"`
	AppliedAt time.Time `json:"appliedAt"`
}

// Service applies an approved change to the running system.
type Service interface {
	Apply(ctx context.Context, proposal *consensus.Proposal) (*Result, error)
}
