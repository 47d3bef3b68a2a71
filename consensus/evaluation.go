package consensus

import (
	"fmt"
	"strings"
	"time"

	"github.com/trust-arbor/arbor/internal/clock"
	"github.com/trust-arbor/arbor/internal/idgen"
)

// Evaluation is one council member's assessment of a proposal from a single
// perspective. Evaluations cross trust boundaries (persisted, replayed,
// reviewed later) and are therefore sealed before aggregation; see seal.go.
type Evaluation struct {
	ID              string      `json:"id"`
	ProposalID      string      `json:"proposalId"`
	EvaluatorID     string      `json:"evaluatorId"`
	Perspective     Perspective `json:"perspective"`
	Vote            Vote        `json:"vote"`
	Reasoning       string      `json:"reasoning,omitempty"`
	Confidence      float64     `json:"confidence"`
	Concerns        []string    `json:"concerns,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
	RiskScore       float64     `json:"riskScore"`
	BenefitScore    float64     `json:"benefitScore"`
	Sealed          bool        `json:"sealed"`
	SealHash        string      `json:"sealHash,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// EvaluationOption customizes an evaluation at construction time.
type EvaluationOption func(e *Evaluation)

// WithVote sets the verdict (default VoteAbstain).
func WithVote(vote Vote) EvaluationOption {
	return func(e *Evaluation) { e.Vote = vote }
}

// WithReasoning attaches free-text reasoning.
func WithReasoning(reasoning string) EvaluationOption {
	return func(e *Evaluation) { e.Reasoning = reasoning }
}

// WithConfidence sets the evaluator's confidence in its own verdict.
func WithConfidence(confidence float64) EvaluationOption {
	return func(e *Evaluation) { e.Confidence = confidence }
}

// WithConcerns attaches concern strings later aggregated across the council.
func WithConcerns(concerns ...string) EvaluationOption {
	return func(e *Evaluation) { e.Concerns = concerns }
}

// WithRecommendations attaches free-text recommendations.
func WithRecommendations(recommendations ...string) EvaluationOption {
	return func(e *Evaluation) { e.Recommendations = recommendations }
}

// WithScores sets the risk and benefit scores (caller-defined scale).
func WithScores(risk, benefit float64) EvaluationOption {
	return func(e *Evaluation) {
		e.RiskScore = risk
		e.BenefitScore = benefit
	}
}

// NewEvaluation constructs and validates an unsealed evaluation.
func NewEvaluation(proposalID, evaluatorID string, perspective Perspective, options ...EvaluationOption) (*Evaluation, error) {
	switch {
	case strings.TrimSpace(proposalID) == "":
		return nil, &MissingFieldError{Field: "proposalId"}
	case strings.TrimSpace(evaluatorID) == "":
		return nil, &MissingFieldError{Field: "evaluatorId"}
	case strings.TrimSpace(string(perspective)) == "":
		return nil, &MissingFieldError{Field: "perspective"}
	}
	ret := &Evaluation{
		ID:          idgen.New(),
		ProposalID:  proposalID,
		EvaluatorID: evaluatorID,
		Perspective: perspective,
		Vote:        VoteAbstain,
		CreatedAt:   clock.Now(),
	}
	for _, option := range options {
		option(ret)
	}
	if _, err := ParseVote(string(ret.Vote)); err != nil {
		return nil, &InvalidFieldError{Field: "vote", Reason: err.Error()}
	}
	if ret.Confidence < 0 || ret.Confidence > 1 {
		return nil, &InvalidFieldError{Field: "confidence", Reason: fmt.Sprintf("must be within 0.0..1.0, got %v", ret.Confidence)}
	}
	return ret, nil
}
