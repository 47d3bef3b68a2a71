package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/trust-arbor/arbor/consensus"
)

// recoveredState is the in-memory fold of one replay pass. Replay itself is
// pure: it mutates only this struct, never the log.
type recoveredState struct {
	proposals   map[string]*consensus.Proposal
	decisions   map[string]*consensus.CouncilDecision
	evaluations map[string][]*consensus.Evaluation
	replayed    int
}

// Recover rebuilds coordinator state by replaying the consensus stream.
// Proposals whose decision was never rendered are resolved to deadlock
// rather than silently re-run: with the council gone, re-evaluation would
// produce a second, unauditable verdict for the same submission.
func (s *Service) Recover(ctx context.Context) error {
	records, err := s.log.ReadStream(ctx, consensus.Stream)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", consensus.Stream, err)
	}
	var fromPosition int64
	if len(records) > 0 {
		fromPosition = records[0].Position
	}
	if err := s.append(ctx, consensus.KindRecoveryStarted, &consensus.RecoveryStarted{FromPosition: fromPosition}, ""); err != nil {
		return err
	}

	state := &recoveredState{
		proposals:   make(map[string]*consensus.Proposal),
		decisions:   make(map[string]*consensus.CouncilDecision),
		evaluations: make(map[string][]*consensus.Evaluation),
	}
	for _, record := range records {
		event, err := consensus.DecodeEvent(record)
		if err != nil {
			// a log we cannot decode is a log we cannot trust
			return fmt.Errorf("failed to decode record at position %d: %w", record.Position, err)
		}
		if err := state.apply(event); err != nil {
			return fmt.Errorf("failed to replay record at position %d: %w", record.Position, err)
		}
	}

	interrupted := 0
	for id, proposal := range state.proposals {
		if proposal.Status.IsTerminal() {
			continue
		}
		interrupted++
		s.logger.Warn("proposal interrupted by restart, resolving to deadlock",
			zap.String("proposal", id))
		if err := s.append(ctx, consensus.KindProposalDeadlocked,
			&consensus.ProposalDeadlocked{ProposalID: id, Reason: "interrupted by coordinator restart"}, id); err != nil {
			return err
		}
		if err := proposal.UpdateStatus(consensus.StatusDeadlock); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.proposals = state.proposals
	s.decisions = state.decisions
	s.evaluations = state.evaluations
	s.mu.Unlock()

	if err := s.append(ctx, consensus.KindRecoveryCompleted, &consensus.RecoveryCompleted{
		ProposalsRecovered: len(state.proposals),
		DecisionsRecovered: len(state.decisions),
		InterruptedCount:   interrupted,
		EventsReplayed:     state.replayed,
	}, ""); err != nil {
		return err
	}
	s.logger.Info("recovery completed",
		zap.Int("proposals", len(state.proposals)),
		zap.Int("decisions", len(state.decisions)),
		zap.Int("interrupted", interrupted),
		zap.Int("replayed", state.replayed))
	return nil
}

func (r *recoveredState) apply(event *consensus.Event) error {
	r.replayed++
	switch payload := event.Payload.(type) {
	case *consensus.ProposalSubmitted:
		proposal := *payload.Proposal
		if proposal.Status == consensus.StatusPending {
			if err := proposal.UpdateStatus(consensus.StatusEvaluating); err != nil {
				return err
			}
		}
		r.proposals[proposal.ID] = &proposal
	case *consensus.EvaluationCompleted:
		r.evaluations[payload.ProposalID] = append(r.evaluations[payload.ProposalID], payload.Evaluation)
	case *consensus.DecisionRendered:
		r.decisions[payload.ProposalID] = payload.Decision
		if proposal, ok := r.proposals[payload.ProposalID]; ok && !proposal.Status.IsTerminal() {
			if err := proposal.UpdateStatus(payload.Decision.Decision.Status()); err != nil {
				return err
			}
		}
	case *consensus.ProposalDeadlocked:
		if proposal, ok := r.proposals[payload.ProposalID]; ok && !proposal.Status.IsTerminal() {
			if err := proposal.UpdateStatus(consensus.StatusDeadlock); err != nil {
				return err
			}
		}
	case *consensus.EvaluationStarted, *consensus.EvaluationFailed, *consensus.ProposalExecuted,
		*consensus.CoordinatorStarted, *consensus.RecoveryStarted, *consensus.RecoveryCompleted:
		// carry no state beyond the audit trail
	default:
		return fmt.Errorf("unexpected payload type %T for %s", event.Payload, event.Kind)
	}
	return nil
}
