package rule

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-arbor/arbor/consensus"
	"github.com/trust-arbor/arbor/service/evaluator"
)

func newTestProposal(t *testing.T, topic string, options ...consensus.ProposalOption) *consensus.Proposal {
	t.Helper()
	proposal, err := consensus.NewProposal("agent/tester", topic, "a change worth judging", options...)
	require.NoError(t, err)
	return proposal
}

func TestEvaluateApprovesOrdinaryChange(t *testing.T) {
	proposal := newTestProposal(t, "upgrade cache")
	member := New(consensus.PerspectiveSecurity)

	evaluation, err := member.Evaluate(context.Background(), proposal, consensus.PerspectiveSecurity)
	require.NoError(t, err)
	assert.Equal(t, consensus.VoteApprove, evaluation.Vote)
	assert.Equal(t, proposal.ID, evaluation.ProposalID)
	assert.Equal(t, "rule/security", evaluation.EvaluatorID)
	assert.False(t, evaluation.Sealed)
	assert.InDelta(t, 0.5, evaluation.RiskScore, 1e-9)
}

func TestEvaluateRejectsInvariantViolations(t *testing.T) {
	proposal := newTestProposal(t, "process change",
		consensus.WithContext(map[string]interface{}{"note": "skip quorum for trivial changes"}))

	// every perspective rejects a payload that targets invariants
	for _, perspective := range consensus.DefaultPerspectives() {
		member := New(perspective)
		evaluation, err := member.Evaluate(context.Background(), proposal, perspective)
		require.NoError(t, err)
		assert.Equal(t, consensus.VoteReject, evaluation.Vote, string(perspective))
		assert.NotEmpty(t, evaluation.Concerns)
	}
}

func TestSecurityRejectsHighRisk(t *testing.T) {
	proposal := newTestProposal(t, "governance amendment")
	member := New(consensus.PerspectiveSecurity)

	evaluation, err := member.Evaluate(context.Background(), proposal, consensus.PerspectiveSecurity)
	require.NoError(t, err)
	assert.Equal(t, consensus.VoteReject, evaluation.Vote)
	assert.InDelta(t, 0.8, evaluation.RiskScore, 1e-9)
	assert.Contains(t, evaluation.Concerns, "governance change")
}

func TestStabilityRejectsGovernanceCore(t *testing.T) {
	proposal := newTestProposal(t, "refactor core",
		consensus.WithTargetLayer(1))
	member := New(consensus.PerspectiveStability)

	evaluation, err := member.Evaluate(context.Background(), proposal, consensus.PerspectiveStability)
	require.NoError(t, err)
	assert.Equal(t, consensus.VoteReject, evaluation.Vote)

	outer := newTestProposal(t, "refactor tool", consensus.WithTargetLayer(3))
	evaluation, err = member.Evaluate(context.Background(), outer, consensus.PerspectiveStability)
	require.NoError(t, err)
	assert.Equal(t, consensus.VoteApprove, evaluation.Vote)
}

func TestResourceRejectsOversizedPayload(t *testing.T) {
	proposal := newTestProposal(t, "bulk import",
		consensus.WithContext(map[string]interface{}{"blob": strings.Repeat("x", payloadSoftLimit+1)}))
	member := New(consensus.PerspectiveResource)

	evaluation, err := member.Evaluate(context.Background(), proposal, consensus.PerspectiveResource)
	require.NoError(t, err)
	assert.Equal(t, consensus.VoteReject, evaluation.Vote)
}

func TestAdversarialAbstainsOnElevatedRisk(t *testing.T) {
	proposal := newTestProposal(t, "constitution cleanup")
	member := New(consensus.PerspectiveAdversarial)

	evaluation, err := member.Evaluate(context.Background(), proposal, consensus.PerspectiveAdversarial)
	require.NoError(t, err)
	assert.Equal(t, consensus.VoteAbstain, evaluation.Vote)
}

func TestEmergenceAbstainsOnAdvisory(t *testing.T) {
	proposal := newTestProposal(t, "direction check", consensus.WithMode(consensus.ModeAdvisory))
	member := New(consensus.PerspectiveEmergence)

	evaluation, err := member.Evaluate(context.Background(), proposal, consensus.PerspectiveEmergence)
	require.NoError(t, err)
	assert.Equal(t, consensus.VoteAbstain, evaluation.Vote)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	proposal := newTestProposal(t, "upgrade cache")
	member := New(consensus.PerspectiveRandom)

	first, err := member.Evaluate(context.Background(), proposal, consensus.PerspectiveRandom)
	require.NoError(t, err)
	second, err := member.Evaluate(context.Background(), proposal, consensus.PerspectiveRandom)
	require.NoError(t, err)
	// replaying the same proposal reproduces the verdict
	assert.Equal(t, first.Vote, second.Vote)
	assert.Equal(t, first.RiskScore, second.RiskScore)
}

func TestEvaluateHonoursCancelledContext(t *testing.T) {
	proposal := newTestProposal(t, "upgrade cache")
	member := New(consensus.PerspectiveSecurity)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := member.Evaluate(ctx, proposal, consensus.PerspectiveSecurity)
	assert.Error(t, err)
}

func TestFactorySpawnsFreshInstances(t *testing.T) {
	factory := Factory()
	first, err := factory.New(consensus.PerspectiveSecurity)
	require.NoError(t, err)
	second, err := factory.New(consensus.PerspectiveSecurity)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, evaluator.StrategyRuleBased, first.Strategy())
}
