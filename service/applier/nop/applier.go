// Package nop provides an applier that records approved proposals without
// touching the system, used as the default and in tests.
package nop

import (
	"context"
	"sync"

	"github.com/trust-arbor/arbor/consensus"
	"github.com/trust-arbor/arbor/internal/clock"
	"github.com/trust-arbor/arbor/service/applier"
)

// Applier records every proposal it was asked to apply.
type Applier struct {
	mu      sync.Mutex
	applied []string
}

// New creates a no-op applier.
func New() *Applier {
	return &Applier{}
}

// Apply records the proposal id and reports success.
func (a *Applier) Apply(_ context.Context, proposal *consensus.Proposal) (*applier.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, proposal.ID)
	return &applier.Result{Status: applier.StatusOK, AppliedAt: clock.Now()}, nil
}

// Applied returns the ids of proposals applied so far.
func (a *Applier) Applied() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.applied...)
}

var _ applier.Service = (*Applier)(nil)
