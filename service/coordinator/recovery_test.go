package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-arbor/arbor/consensus"
	anop "github.com/trust-arbor/arbor/service/applier/nop"
	"github.com/trust-arbor/arbor/service/eventlog/memory"
	"github.com/trust-arbor/arbor/service/signal"
)

// appendEvent writes a lifecycle event straight to the log, simulating the
// trail a crashed coordinator left behind.
func appendEvent(t *testing.T, log *memory.Store, kind consensus.EventKind, payload interface{}, correlationID string) {
	t.Helper()
	event := consensus.NewEvent(kind, payload)
	event.CorrelationID = correlationID
	record, err := event.Record()
	require.NoError(t, err)
	_, err = log.Append(context.Background(), consensus.Stream, record)
	require.NoError(t, err)
}

func restartedFixture(t *testing.T, log *memory.Store) *testFixture {
	t.Helper()
	config := DefaultConfig()
	config.EvaluatorTimeout = 2 * time.Second
	config.CollectTimeout = 5 * time.Second
	service, err := New(
		WithConfig(config),
		WithEventLog(log),
		WithEvaluatorFactory(&scriptedFactory{votes: votesFor(7, 0, 0)}),
		WithApplier(anop.New()),
		WithSignalBus(signal.New()),
		WithCoordinatorID("coordinator/restarted"),
	)
	require.NoError(t, err)
	return &testFixture{service: service, log: log}
}

func TestRecoverEmptyLog(t *testing.T) {
	fixture := restartedFixture(t, memory.New())
	ctx := fixture.start(t)

	types := fixture.eventTypes(t, ctx)
	assert.Equal(t, []string{"CoordinatorStarted", "RecoveryStarted", "RecoveryCompleted"}, types)
}

func TestRecoverRestoresDecidedProposals(t *testing.T) {
	// run a full consensus round, then restart over the same log
	original := newTestFixture(t, &scriptedFactory{votes: votesFor(5, 1, 1)})
	ctx := original.start(t)
	proposalID, err := original.service.Propose(ctx, newTestProposal(t, "upgrade cache"))
	require.NoError(t, err)
	decision := original.awaitDecision(t, ctx, proposalID)
	original.service.Shutdown()

	restarted := restartedFixture(t, original.log)
	restartCtx := restarted.start(t)

	recovered, err := restarted.service.Proposal(restartCtx, proposalID)
	require.NoError(t, err)
	assert.Equal(t, consensus.StatusApproved, recovered.Status)

	recoveredDecision, err := restarted.service.Decision(restartCtx, proposalID)
	require.NoError(t, err)
	assert.Equal(t, decision.Decision, recoveredDecision.Decision)
	assert.Equal(t, decision.ApproveCount, recoveredDecision.ApproveCount)

	evaluations, err := restarted.service.Evaluations(restartCtx, proposalID)
	require.NoError(t, err)
	assert.Len(t, evaluations, 7)
	for _, evaluation := range evaluations {
		assert.NoError(t, evaluation.VerifySeal())
	}
}

func TestRecoverResolvesInterruptedProposals(t *testing.T) {
	// the trail of a crash mid-council: submitted and started, no decision
	log := memory.New()
	proposal := newTestProposal(t, "upgrade cache")
	appendEvent(t, log, consensus.KindProposalSubmitted, &consensus.ProposalSubmitted{Proposal: proposal}, proposal.ID)
	appendEvent(t, log, consensus.KindEvaluationStarted, &consensus.EvaluationStarted{
		ProposalID:     proposal.ID,
		Perspectives:   consensus.DefaultPerspectives(),
		CouncilSize:    7,
		RequiredQuorum: 5,
	}, proposal.ID)

	fixture := restartedFixture(t, log)
	ctx := fixture.start(t)

	recovered, err := fixture.service.Proposal(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, consensus.StatusDeadlock, recovered.Status)

	// no decision exists and none will be fabricated
	_, err = fixture.service.Decision(ctx, proposal.ID)
	assert.ErrorIs(t, err, consensus.ErrNotFound)

	types := fixture.eventTypes(t, ctx)
	assert.Contains(t, types, "ProposalDeadlocked")
}

func TestRecoverReportsCounts(t *testing.T) {
	log := memory.New()

	decided := newTestProposal(t, "decided change")
	appendEvent(t, log, consensus.KindProposalSubmitted, &consensus.ProposalSubmitted{Proposal: decided}, decided.ID)
	evaluation, err := consensus.NewEvaluation(decided.ID, "evaluator-1", consensus.PerspectiveSecurity,
		consensus.WithVote(consensus.VoteApprove))
	require.NoError(t, err)
	require.NoError(t, evaluation.Seal())
	appendEvent(t, log, consensus.KindEvaluationCompleted,
		&consensus.EvaluationCompleted{ProposalID: decided.ID, Evaluation: evaluation}, decided.ID)
	appendEvent(t, log, consensus.KindDecisionRendered, &consensus.DecisionRendered{
		ProposalID: decided.ID,
		Decision: &consensus.CouncilDecision{
			ID:             "decision-1",
			ProposalID:     decided.ID,
			Decision:       consensus.OutcomeApproved,
			Mode:           consensus.ModeDecision,
			RequiredQuorum: 5,
			QuorumMet:      true,
			ApproveCount:   5,
		},
	}, decided.ID)

	interrupted := newTestProposal(t, "interrupted change")
	appendEvent(t, log, consensus.KindProposalSubmitted, &consensus.ProposalSubmitted{Proposal: interrupted}, interrupted.ID)

	fixture := restartedFixture(t, log)
	ctx := fixture.start(t)

	records, err := fixture.log.ReadStream(ctx, consensus.Stream)
	require.NoError(t, err)
	var completed *consensus.RecoveryCompleted
	for _, record := range records {
		if record.Type != string(consensus.KindRecoveryCompleted) {
			continue
		}
		event, decodeErr := consensus.DecodeEvent(record)
		require.NoError(t, decodeErr)
		completed = event.Payload.(*consensus.RecoveryCompleted)
	}
	require.NotNil(t, completed)
	assert.Equal(t, 2, completed.ProposalsRecovered)
	assert.Equal(t, 1, completed.DecisionsRecovered)
	assert.Equal(t, 1, completed.InterruptedCount)
	// the four crash-trail events plus this coordinator's own start marker
	assert.Equal(t, 5, completed.EventsReplayed)
}

func TestRecoverFailsOnCorruptRecord(t *testing.T) {
	log := memory.New()
	proposal := newTestProposal(t, "upgrade cache")
	appendEvent(t, log, consensus.KindProposalSubmitted, &consensus.ProposalSubmitted{Proposal: proposal}, proposal.ID)

	// corrupt the stored status; replay must fail closed, not guess
	records, err := log.ReadAll(context.Background())
	require.NoError(t, err)
	records[0].Data["proposal"].(map[string]interface{})["status"] = "superseded"

	fixture := restartedFixture(t, log)
	assert.Error(t, fixture.service.Start(context.Background()))
}

func TestProposalsSurviveCrashBeforeCouncil(t *testing.T) {
	// durable-before-act: the submission alone is enough for a restarted
	// coordinator to know the proposal existed
	log := memory.New()
	proposal := newTestProposal(t, "upgrade cache")
	appendEvent(t, log, consensus.KindProposalSubmitted, &consensus.ProposalSubmitted{Proposal: proposal}, proposal.ID)

	fixture := restartedFixture(t, log)
	ctx := fixture.start(t)

	recovered, err := fixture.service.Proposal(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, consensus.StatusDeadlock, recovered.Status)
	require.NotNil(t, recovered.DecidedAt)
}
