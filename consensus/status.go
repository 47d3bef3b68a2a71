package consensus

import "fmt"

// Status represents the lifecycle status of a proposal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusEvaluating Status = "evaluating"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusDeadlock   Status = "deadlock"
	// StatusVetoed is reserved for out-of-band human override; the
	// coordinator never produces it on its own.
	StatusVetoed Status = "vetoed"
)

// IsTerminal reports whether no further status transition is valid.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusDeadlock, StatusVetoed:
		return true
	}
	return false
}

// ParseStatus converts an untrusted string into a Status. Unrecognized values
// are a hard error, never interned as new statuses.
func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusPending, StatusEvaluating, StatusApproved, StatusRejected, StatusDeadlock, StatusVetoed:
		return Status(value), nil
	}
	return "", fmt.Errorf("unknown proposal status: %q", value)
}

// Mode distinguishes binding decisions from advisory perspective gathering.
type Mode string

const (
	ModeDecision Mode = "decision"
	ModeAdvisory Mode = "advisory"
)

// ParseMode converts an untrusted string into a Mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeDecision, ModeAdvisory:
		return Mode(value), nil
	}
	return "", fmt.Errorf("unknown proposal mode: %q", value)
}

// Vote is a single evaluator's verdict on a proposal.
type Vote string

const (
	VoteApprove Vote = "approve"
	VoteReject  Vote = "reject"
	VoteAbstain Vote = "abstain"
)

// ParseVote converts an untrusted string into a Vote.
func ParseVote(value string) (Vote, error) {
	switch Vote(value) {
	case VoteApprove, VoteReject, VoteAbstain:
		return Vote(value), nil
	}
	return "", fmt.Errorf("unknown vote: %q", value)
}

// Outcome is the aggregate verdict of a council.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeDeadlock Outcome = "deadlock"
)

// ParseOutcome converts an untrusted string into an Outcome.
func ParseOutcome(value string) (Outcome, error) {
	switch Outcome(value) {
	case OutcomeApproved, OutcomeRejected, OutcomeDeadlock:
		return Outcome(value), nil
	}
	return "", fmt.Errorf("unknown decision outcome: %q", value)
}

// Status returns the terminal proposal status corresponding to the outcome.
func (o Outcome) Status() Status {
	switch o {
	case OutcomeApproved:
		return StatusApproved
	case OutcomeRejected:
		return StatusRejected
	}
	return StatusDeadlock
}

// Perspective is the angle from which one evaluator assesses a proposal.
// The set is open ended - the constants below are the default council
// composition, domain-specific extensions are plain values of this type.
type Perspective string

const (
	PerspectiveSecurity    Perspective = "security"
	PerspectiveStability   Perspective = "stability"
	PerspectiveCapability  Perspective = "capability"
	PerspectiveAdversarial Perspective = "adversarial"
	PerspectiveResource    Perspective = "resource"
	PerspectiveEmergence   Perspective = "emergence"
	PerspectiveRandom      Perspective = "random"
)

// DefaultPerspectives returns the default council composition.
func DefaultPerspectives() []Perspective {
	return []Perspective{
		PerspectiveSecurity,
		PerspectiveStability,
		PerspectiveCapability,
		PerspectiveAdversarial,
		PerspectiveResource,
		PerspectiveEmergence,
		PerspectiveRandom,
	}
}
