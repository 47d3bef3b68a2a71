package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluation(t *testing.T, options ...EvaluationOption) *Evaluation {
	t.Helper()
	defaults := []EvaluationOption{
		WithVote(VoteApprove),
		WithReasoning("low blast radius, clear benefit"),
		WithConfidence(0.9),
		WithConcerns("rollback path untested"),
		WithScores(0.2, 0.7),
	}
	evaluation, err := NewEvaluation("prop-1", "evaluator-1", PerspectiveSecurity, append(defaults, options...)...)
	require.NoError(t, err)
	return evaluation
}

func TestSeal(t *testing.T) {
	evaluation := newTestEvaluation(t)
	assert.False(t, evaluation.Sealed)
	assert.Empty(t, evaluation.SealHash)

	err := evaluation.Seal()
	require.NoError(t, err)
	assert.True(t, evaluation.Sealed)
	assert.Len(t, evaluation.SealHash, 64) // sha-256 hex

	// sealing is idempotent
	hash := evaluation.SealHash
	err = evaluation.Seal()
	require.NoError(t, err)
	assert.Equal(t, hash, evaluation.SealHash)
}

func TestSealIsDeterministic(t *testing.T) {
	first := newTestEvaluation(t)
	second := newTestEvaluation(t)
	// identity fields differ but are not covered by the seal
	second.ID = "different-id"
	second.CreatedAt = first.CreatedAt

	require.NoError(t, first.Seal())
	require.NoError(t, second.Seal())
	assert.Equal(t, first.SealHash, second.SealHash)
}

func TestVerifySeal(t *testing.T) {
	evaluation := newTestEvaluation(t)

	// unsealed evaluations never verify
	assert.ErrorIs(t, evaluation.VerifySeal(), ErrNotSealed)

	require.NoError(t, evaluation.Seal())
	assert.NoError(t, evaluation.VerifySeal())
}

func TestVerifySealDetectsTampering(t *testing.T) {
	mutations := []struct {
		description string
		mutate      func(e *Evaluation)
	}{
		{"vote flipped", func(e *Evaluation) { e.Vote = VoteReject }},
		{"reasoning rewritten", func(e *Evaluation) { e.Reasoning = "actually fine" }},
		{"confidence inflated", func(e *Evaluation) { e.Confidence = 1.0 }},
		{"concern dropped", func(e *Evaluation) { e.Concerns = nil }},
		{"risk lowered", func(e *Evaluation) { e.RiskScore = 0.0 }},
		{"perspective swapped", func(e *Evaluation) { e.Perspective = PerspectiveRandom }},
	}
	for _, mutation := range mutations {
		evaluation := newTestEvaluation(t)
		require.NoError(t, evaluation.Seal())
		mutation.mutate(evaluation)
		assert.ErrorIs(t, evaluation.VerifySeal(), ErrInvalidSeal, mutation.description)
	}
}

func TestSealSurvivesRoundTrip(t *testing.T) {
	// a sealed evaluation replayed from the event log must still verify
	original := newTestEvaluation(t)
	require.NoError(t, original.Seal())

	copied := *original
	copied.Concerns = append([]string{}, original.Concerns...)
	assert.NoError(t, copied.VerifySeal())
}
