package arbor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-arbor/arbor/consensus"
	anop "github.com/trust-arbor/arbor/service/applier/nop"
)

func TestConsensusEndToEnd(t *testing.T) {
	applied := anop.New()
	srv, err := New(WithApplier(applied))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt := srv.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown()

	proposal, err := consensus.NewProposal("agent/researcher", "adopt new retrieval tool",
		"replace keyword search with embeddings")
	require.NoError(t, err)

	proposalID, err := rt.Propose(ctx, proposal)
	require.NoError(t, err)

	decision, err := rt.WaitForDecision(ctx, proposalID, 10*time.Second)
	require.NoError(t, err)
	// the default rule council approves a clean, low-stakes change
	assert.Equal(t, consensus.OutcomeApproved, decision.Decision)
	assert.True(t, decision.QuorumMet)
	assert.Len(t, decision.Evaluations, 7)
	for _, evaluation := range decision.Evaluations {
		assert.NoError(t, evaluation.VerifySeal())
	}

	require.Eventually(t, func() bool { return len(applied.Applied()) == 1 },
		5*time.Second, 10*time.Millisecond)

	// the audit trail is queryable through the façade
	records, err := srv.EventLog().ReadStream(ctx, consensus.Stream)
	require.NoError(t, err)
	assert.NotEmpty(t, records)

	stored, err := rt.Proposal(ctx, proposalID)
	require.NoError(t, err)
	assert.Equal(t, consensus.StatusApproved, stored.Status)
}

func TestWaitForDecisionTimesOut(t *testing.T) {
	srv, err := New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt := srv.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown()

	_, err = rt.WaitForDecision(ctx, "never-proposed", 50*time.Millisecond)
	assert.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.Coordinator.CouncilSize = 0
	_, err := New(WithConfig(config))
	assert.Error(t, err)

	_, err = NewFromConfig(&Config{
		Coordinator: DefaultConfig().Coordinator,
		EventLog:    EventLogConfig{Backend: "etcd"},
	})
	assert.Error(t, err)
}

func TestCancelThroughRuntime(t *testing.T) {
	srv, err := New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt := srv.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown()

	assert.ErrorIs(t, rt.Cancel(ctx, "no-such-id"), consensus.ErrNotFound)
}
