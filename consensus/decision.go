package consensus

import (
	"sort"
	"time"

	"github.com/trust-arbor/arbor/internal/clock"
	"github.com/trust-arbor/arbor/internal/idgen"
)

// primaryConcernLimit caps how many of the most frequent concern strings a
// decision carries.
const primaryConcernLimit = 5

// CouncilDecision is the immutable aggregate verdict of one council over one
// proposal. It is produced exactly once by FromEvaluations and never
// mutated afterward.
type CouncilDecision struct {
	ID              string        `json:"id"`
	ProposalID      string        `json:"proposalId"`
	Decision        Outcome       `json:"decision"`
	Mode            Mode          `json:"mode"`
	RequiredQuorum  int           `json:"requiredQuorum"`
	QuorumMet       bool          `json:"quorumMet"`
	ApproveCount    int           `json:"approveCount"`
	RejectCount     int           `json:"rejectCount"`
	AbstainCount    int           `json:"abstainCount"`
	Evaluations     []*Evaluation `json:"evaluations"`
	PrimaryConcerns []string      `json:"primaryConcerns,omitempty"`
	AvgConfidence   float64       `json:"avgConfidence"`
	AvgRisk         float64       `json:"avgRisk"`
	AvgBenefit      float64       `json:"avgBenefit"`
	CreatedAt       time.Time     `json:"createdAt"`
	DecidedAt       time.Time     `json:"decidedAt"`
}

// FromEvaluations aggregates a set of sealed evaluations into a binding (or
// advisory) decision for the proposal.
//
// The aggregation is a pure function: safe to re-run for recovery and
// audit. It refuses to produce a decision when any input evaluation is
// unsealed or fails seal verification - an untrusted input cannot
// contribute a vote, and dropping it silently would skew the tally.
func FromEvaluations(proposal *Proposal, evaluations []*Evaluation) (*CouncilDecision, error) {
	var unsealed, tampered []string
	for _, evaluation := range evaluations {
		switch err := evaluation.VerifySeal(); err {
		case nil:
		case ErrNotSealed:
			unsealed = append(unsealed, evaluation.ID)
		default:
			tampered = append(tampered, evaluation.ID)
		}
	}
	if len(unsealed) > 0 {
		return nil, &UnsealedEvaluationsError{IDs: unsealed}
	}
	if len(tampered) > 0 {
		return nil, &TamperedEvaluationsError{IDs: tampered}
	}

	var approve, reject, abstain int
	var confidence, risk, benefit float64
	for _, evaluation := range evaluations {
		switch evaluation.Vote {
		case VoteApprove:
			approve++
		case VoteReject:
			reject++
		default:
			abstain++
		}
		confidence += evaluation.Confidence
		risk += evaluation.RiskScore
		benefit += evaluation.BenefitScore
	}

	required := proposal.RequiredQuorum()
	// Exactly one branch holds: with a council of CouncilSize and quorum
	// above half, approve and reject cannot both reach it. A zero quorum
	// (advisory mode) resolves to approved - the outcome is non-binding.
	var outcome Outcome
	switch {
	case approve >= required:
		outcome = OutcomeApproved
	case reject >= required:
		outcome = OutcomeRejected
	default:
		outcome = OutcomeDeadlock
	}

	ret := &CouncilDecision{
		ID:              idgen.New(),
		ProposalID:      proposal.ID,
		Decision:        outcome,
		Mode:            proposal.Mode,
		RequiredQuorum:  required,
		QuorumMet:       outcome != OutcomeDeadlock,
		ApproveCount:    approve,
		RejectCount:     reject,
		AbstainCount:    abstain,
		Evaluations:     evaluations,
		PrimaryConcerns: primaryConcerns(evaluations),
		CreatedAt:       proposal.CreatedAt,
		DecidedAt:       clock.Now(),
	}
	if count := len(evaluations); count > 0 {
		ret.AvgConfidence = confidence / float64(count)
		ret.AvgRisk = risk / float64(count)
		ret.AvgBenefit = benefit / float64(count)
	}
	return ret, nil
}

// primaryConcerns returns the top concern strings across all evaluations,
// most frequent first. Ties break by lexical order so that replaying the
// same evaluations always reproduces the same decision record.
func primaryConcerns(evaluations []*Evaluation) []string {
	frequency := map[string]int{}
	for _, evaluation := range evaluations {
		for _, concern := range evaluation.Concerns {
			frequency[concern]++
		}
	}
	if len(frequency) == 0 {
		return nil
	}
	concerns := make([]string, 0, len(frequency))
	for concern := range frequency {
		concerns = append(concerns, concern)
	}
	sort.Slice(concerns, func(i, j int) bool {
		if frequency[concerns[i]] != frequency[concerns[j]] {
			return frequency[concerns[i]] > frequency[concerns[j]]
		}
		return concerns[i] < concerns[j]
	})
	if len(concerns) > primaryConcernLimit {
		concerns = concerns[:primaryConcernLimit]
	}
	return concerns
}
