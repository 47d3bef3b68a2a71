package consensus

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// sealPayload is the canonical, ordered tuple of substantive evaluation
// fields covered by the seal. Field order here is irrelevant - RFC 8785
// canonicalization sorts keys - but the set is fixed: adding or removing a
// field is a protocol change that invalidates every existing seal.
type sealPayload struct {
	ProposalID   string   `json:"proposalId"`
	EvaluatorID  string   `json:"evaluatorId"`
	Perspective  string   `json:"perspective"`
	Vote         string   `json:"vote"`
	Reasoning    string   `json:"reasoning"`
	Confidence   float64  `json:"confidence"`
	Concerns     []string `json:"concerns"`
	RiskScore    float64  `json:"riskScore"`
	BenefitScore float64  `json:"benefitScore"`
	CreatedAt    string   `json:"createdAt"`
}

// sealDigest computes the tamper-evidence hash over the evaluation's
// substantive fields: RFC 8785 canonical JSON hashed with SHA-256.
func sealDigest(e *Evaluation) (string, error) {
	payload := sealPayload{
		ProposalID:   e.ProposalID,
		EvaluatorID:  e.EvaluatorID,
		Perspective:  string(e.Perspective),
		Vote:         string(e.Vote),
		Reasoning:    e.Reasoning,
		Confidence:   e.Confidence,
		Concerns:     append([]string{}, e.Concerns...),
		RiskScore:    e.RiskScore,
		BenefitScore: e.BenefitScore,
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal seal payload: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize seal payload: %w", err)
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}

// Seal computes and attaches the tamper-evidence hash. Sealing is
// idempotent: an already sealed evaluation is returned unchanged. After
// sealing the evaluation is treated as immutable - any later field mutation
// is detected by VerifySeal.
func (e *Evaluation) Seal() error {
	if e.Sealed {
		return nil
	}
	digest, err := sealDigest(e)
	if err != nil {
		return err
	}
	e.SealHash = digest
	e.Sealed = true
	return nil
}

// VerifySeal recomputes the hash from current field values and compares it
// against the stored seal. It returns ErrNotSealed for an unsealed
// evaluation and ErrInvalidSeal when any sealed field was mutated.
func (e *Evaluation) VerifySeal() error {
	if !e.Sealed || e.SealHash == "" {
		return ErrNotSealed
	}
	digest, err := sealDigest(e)
	if err != nil {
		return err
	}
	if digest != e.SealHash {
		return ErrInvalidSeal
	}
	return nil
}
