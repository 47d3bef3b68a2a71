// Package rule provides a deterministic, rule-based evaluator. It scores a
// proposal from its topic risk tier, the invariant scan of its payload and
// coarse context hints, with a per-perspective bias so that a council of
// rule evaluators still produces differentiated votes.
package rule

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/trust-arbor/arbor/consensus"
	"github.com/trust-arbor/arbor/policy"
	"github.com/trust-arbor/arbor/service/evaluator"
)

// payloadSoftLimit is the context payload size above which the resource
// perspective votes reject.
const payloadSoftLimit = 64 * 1024

// Evaluator assesses proposals from a single perspective. Instances are
// cheap; the factory creates a fresh one per council seat.
type Evaluator struct {
	id          string
	perspective consensus.Perspective
}

// New creates an evaluator bound to one perspective.
func New(perspective consensus.Perspective) *Evaluator {
	return &Evaluator{
		id:          fmt.Sprintf("rule/%s", perspective),
		perspective: perspective,
	}
}

// Factory returns an evaluator.Factory producing one fresh rule evaluator
// per council seat.
func Factory() evaluator.Factory {
	return evaluator.FactoryFunc(func(perspective consensus.Perspective) (evaluator.Service, error) {
		return New(perspective), nil
	})
}

func (e *Evaluator) ID() string                   { return e.id }
func (e *Evaluator) Strategy() evaluator.Strategy { return evaluator.StrategyRuleBased }

// Evaluate scores the proposal and casts a vote. The result is a pure
// function of the proposal content, so re-running an evaluation for audit
// reproduces the original verdict.
func (e *Evaluator) Evaluate(ctx context.Context, proposal *consensus.Proposal, perspective consensus.Perspective) (*consensus.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	violations := proposal.ViolatesInvariants()
	risk := baseRisk(proposal.Topic) + 0.2*float64(len(violations))
	if risk > 1 {
		risk = 1
	}
	benefit := baseBenefit(proposal.Topic)

	var concerns []string
	for _, name := range violations {
		concerns = append(concerns, "invariant violation: "+name)
	}
	if policy.IsMetaChange(proposal.Topic) {
		concerns = append(concerns, "governance change")
	}

	vote, reasoning := e.vote(proposal, perspective, violations, risk, benefit)
	confidence := 0.9 - 0.3*risk
	if len(violations) > 0 {
		confidence = 0.95
	}

	return consensus.NewEvaluation(proposal.ID, e.id, perspective,
		consensus.WithVote(vote),
		consensus.WithReasoning(reasoning),
		consensus.WithConfidence(confidence),
		consensus.WithConcerns(concerns...),
		consensus.WithScores(risk, benefit),
	)
}

func (e *Evaluator) vote(proposal *consensus.Proposal, perspective consensus.Perspective, violations []string, risk, benefit float64) (consensus.Vote, string) {
	if len(violations) > 0 {
		return consensus.VoteReject, fmt.Sprintf("payload targets %d protocol invariant(s)", len(violations))
	}
	switch perspective {
	case consensus.PerspectiveSecurity:
		if risk >= 0.8 {
			return consensus.VoteReject, "risk tier too high for automatic approval"
		}
		return consensus.VoteApprove, "no invariant violations detected"
	case consensus.PerspectiveStability:
		if proposal.TargetLayer <= 1 {
			return consensus.VoteReject, "change touches the governance core"
		}
		return consensus.VoteApprove, "blast radius limited to outer layers"
	case consensus.PerspectiveResource:
		if payloadSize(proposal) > payloadSoftLimit {
			return consensus.VoteReject, "payload exceeds resource budget"
		}
		return consensus.VoteApprove, "payload within resource budget"
	case consensus.PerspectiveAdversarial:
		if risk >= 0.6 {
			return consensus.VoteAbstain, "insufficient signal to rule out abuse"
		}
		return consensus.VoteApprove, "no abuse pattern matched"
	case consensus.PerspectiveEmergence:
		if proposal.Mode == consensus.ModeAdvisory {
			return consensus.VoteAbstain, "advisory proposal, observing only"
		}
		return consensus.VoteApprove, "no emergent coupling identified"
	case consensus.PerspectiveRandom:
		// deterministic coin: same proposal, same verdict, for audit replay
		h := fnv.New32a()
		_, _ = h.Write([]byte(proposal.ID))
		_, _ = h.Write([]byte(perspective))
		if h.Sum32()%3 == 0 {
			return consensus.VoteAbstain, "random audit seat abstains"
		}
		return consensus.VoteApprove, "random audit seat concurs"
	default: // capability and domain-specific extensions
		if benefit > risk {
			return consensus.VoteApprove, "expected benefit outweighs risk"
		}
		return consensus.VoteAbstain, "benefit does not clearly outweigh risk"
	}
}

func baseRisk(topic string) float64 {
	switch {
	case policy.IsMetaChange(topic):
		return 0.8
	case policy.IsLowRisk(topic):
		return 0.2
	default:
		return 0.5
	}
}

func baseBenefit(topic string) float64 {
	if policy.IsLowRisk(topic) {
		return 0.4
	}
	return 0.6
}

func payloadSize(proposal *consensus.Proposal) int {
	if len(proposal.Context) == 0 {
		return 0
	}
	data, err := json.Marshal(proposal.Context)
	if err != nil {
		return payloadSoftLimit + 1
	}
	return len(data)
}

var _ evaluator.Service = (*Evaluator)(nil)
