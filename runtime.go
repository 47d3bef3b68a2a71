package arbor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trust-arbor/arbor/consensus"
	"github.com/trust-arbor/arbor/service/coordinator"
)

// Runtime orchestrates consensus: it submits proposals, tracks their state
// and surfaces rendered decisions. All methods delegate to the underlying
// coordinator, which owns durability and council execution.
type Runtime struct {
	coordinator *coordinator.Service
}

// Start recovers state from the event log and begins serving proposals.
func (r *Runtime) Start(ctx context.Context) error {
	if r == nil || r.coordinator == nil {
		return fmt.Errorf("runtime not fully initialised - coordinator missing")
	}
	return r.coordinator.Start(ctx)
}

// Shutdown stops accepting proposals and waits for in-flight councils.
func (r *Runtime) Shutdown() {
	r.coordinator.Shutdown()
}

// Propose submits a proposal and returns its id once the submission is
// durable. Evaluation runs asynchronously; use WaitForDecision or the
// signal bus to observe the outcome.
func (r *Runtime) Propose(ctx context.Context, proposal *consensus.Proposal) (string, error) {
	return r.coordinator.Propose(ctx, proposal)
}

// Cancel withdraws a proposal before its decision is rendered.
func (r *Runtime) Cancel(ctx context.Context, proposalID string) error {
	return r.coordinator.Cancel(ctx, proposalID)
}

// Proposal returns the proposal with the given id.
func (r *Runtime) Proposal(ctx context.Context, proposalID string) (*consensus.Proposal, error) {
	return r.coordinator.Proposal(ctx, proposalID)
}

// Decision returns the rendered decision for the given proposal id, or
// consensus.ErrNotFound while the council is still out.
func (r *Runtime) Decision(ctx context.Context, proposalID string) (*consensus.CouncilDecision, error) {
	return r.coordinator.Decision(ctx, proposalID)
}

// Evaluations returns the sealed evaluations collected so far for a
// proposal.
func (r *Runtime) Evaluations(ctx context.Context, proposalID string) ([]*consensus.Evaluation, error) {
	return r.coordinator.Evaluations(ctx, proposalID)
}

// WaitForDecision polls until the proposal's decision is rendered or the
// timeout elapses.
func (r *Runtime) WaitForDecision(ctx context.Context, proposalID string, timeout time.Duration) (*consensus.CouncilDecision, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		decision, err := r.coordinator.Decision(ctx, proposalID)
		if err == nil {
			return decision, nil
		}
		if !errors.Is(err, consensus.ErrNotFound) {
			return nil, err
		}
		// a proposal resolved without a decision (cancelled, interrupted)
		// will never produce one
		if proposal, perr := r.coordinator.Proposal(ctx, proposalID); perr == nil && proposal.Status.IsTerminal() {
			return nil, fmt.Errorf("proposal %s resolved to %s without a decision", proposalID, proposal.Status)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("timeout waiting for decision on %s", proposalID)
		case <-ticker.C:
		}
	}
}
