package nop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-arbor/arbor/consensus"
	"github.com/trust-arbor/arbor/service/applier"
)

func TestApply(t *testing.T) {
	service := New()
	proposal, err := consensus.NewProposal("proposer", "upgrade cache", "versioned keys")
	require.NoError(t, err)

	result, err := service.Apply(context.Background(), proposal)
	require.NoError(t, err)
	assert.Equal(t, applier.StatusOK, result.Status)
	assert.False(t, result.AppliedAt.IsZero())
	assert.Equal(t, []string{proposal.ID}, service.Applied())
}
