package consensus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/trust-arbor/arbor/internal/clock"
	"github.com/trust-arbor/arbor/service/eventlog"
)

// Stream is the single logical stream every consensus lifecycle event
// appends to, so replay order is total.
const Stream = "arbor:consensus"

// EventKind enumerates the closed set of consensus lifecycle events.
type EventKind string

const (
	KindProposalSubmitted   EventKind = "ProposalSubmitted"
	KindEvaluationStarted   EventKind = "EvaluationStarted"
	KindEvaluationCompleted EventKind = "EvaluationCompleted"
	KindEvaluationFailed    EventKind = "EvaluationFailed"
	KindDecisionRendered    EventKind = "DecisionRendered"
	KindProposalExecuted    EventKind = "ProposalExecuted"
	KindProposalDeadlocked  EventKind = "ProposalDeadlocked"
	KindCoordinatorStarted  EventKind = "CoordinatorStarted"
	KindRecoveryStarted     EventKind = "RecoveryStarted"
	KindRecoveryCompleted   EventKind = "RecoveryCompleted"
)

// ParseEventKind converts an untrusted string into an EventKind; anything
// outside the closed set is a hard deserialization error.
func ParseEventKind(value string) (EventKind, error) {
	switch EventKind(value) {
	case KindProposalSubmitted, KindEvaluationStarted, KindEvaluationCompleted,
		KindEvaluationFailed, KindDecisionRendered, KindProposalExecuted,
		KindProposalDeadlocked, KindCoordinatorStarted, KindRecoveryStarted,
		KindRecoveryCompleted:
		return EventKind(value), nil
	}
	return "", fmt.Errorf("unknown consensus event kind: %q", value)
}

// Payloads. Each carries the fields needed to reconstruct state without
// consulting anything but the log itself.

type ProposalSubmitted struct {
	Proposal *Proposal `json:"proposal"`
}

type EvaluationStarted struct {
	ProposalID     string        `json:"proposalId"`
	Perspectives   []Perspective `json:"perspectives"`
	CouncilSize    int           `json:"councilSize"`
	RequiredQuorum int           `json:"requiredQuorum"`
}

type EvaluationCompleted struct {
	ProposalID string      `json:"proposalId"`
	Evaluation *Evaluation `json:"evaluation"`
}

type EvaluationFailed struct {
	ProposalID  string      `json:"proposalId"`
	EvaluatorID string      `json:"evaluatorId,omitempty"`
	Perspective Perspective `json:"perspective"`
	Reason      string      `json:"reason"`
}

type DecisionRendered struct {
	ProposalID string           `json:"proposalId"`
	Decision   *CouncilDecision `json:"decision"`
}

type ProposalExecuted struct {
	ProposalID string `json:"proposalId"`
	Result     string `json:"result"`
	Detail     string `json:"detail,omitempty"`
}

type ProposalDeadlocked struct {
	ProposalID string `json:"proposalId"`
	Reason     string `json:"reason"`
}

type CoordinatorStarted struct {
	CoordinatorID string `json:"coordinatorId"`
}

type RecoveryStarted struct {
	FromPosition int64 `json:"fromPosition"`
}

type RecoveryCompleted struct {
	ProposalsRecovered int `json:"proposalsRecovered"`
	DecisionsRecovered int `json:"decisionsRecovered"`
	InterruptedCount   int `json:"interruptedCount"`
	EventsReplayed     int `json:"eventsReplayed"`
}

// Event pairs a kind with its typed payload. Payload holds a pointer to one
// of the structs above, matching Kind.
type Event struct {
	Kind          EventKind
	Timestamp     time.Time
	CausationID   string
	CorrelationID string
	Payload       interface{}
}

// NewEvent stamps a lifecycle event with the current time.
func NewEvent(kind EventKind, payload interface{}) *Event {
	return &Event{Kind: kind, Timestamp: clock.Now(), Payload: payload}
}

// Record serializes the event into the generic wire format for appending to
// the log.
func (e *Event) Record() (*eventlog.Record, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Kind, err)
	}
	payload := map[string]interface{}{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to build %s record: %w", e.Kind, err)
	}
	return &eventlog.Record{
		StreamID:      Stream,
		Type:          string(e.Kind),
		Data:          payload,
		CausationID:   e.CausationID,
		CorrelationID: e.CorrelationID,
		Timestamp:     e.Timestamp,
	}, nil
}

// DecodeEvent parses a persisted record back into a typed lifecycle event.
// The kind and every enum-like field inside the payload are checked against
// their allow-lists; unrecognized values fail decoding rather than being
// coerced or interned.
func DecodeEvent(record *eventlog.Record) (*Event, error) {
	kind, err := ParseEventKind(record.Type)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(record.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal %s record data: %w", kind, err)
	}
	var payload interface{}
	switch kind {
	case KindProposalSubmitted:
		payload = &ProposalSubmitted{}
	case KindEvaluationStarted:
		payload = &EvaluationStarted{}
	case KindEvaluationCompleted:
		payload = &EvaluationCompleted{}
	case KindEvaluationFailed:
		payload = &EvaluationFailed{}
	case KindDecisionRendered:
		payload = &DecisionRendered{}
	case KindProposalExecuted:
		payload = &ProposalExecuted{}
	case KindProposalDeadlocked:
		payload = &ProposalDeadlocked{}
	case KindCoordinatorStarted:
		payload = &CoordinatorStarted{}
	case KindRecoveryStarted:
		payload = &RecoveryStarted{}
	case KindRecoveryCompleted:
		payload = &RecoveryCompleted{}
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}
	if err := validatePayload(kind, payload); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", kind, err)
	}
	return &Event{
		Kind:          kind,
		Timestamp:     record.Timestamp,
		CausationID:   record.CausationID,
		CorrelationID: record.CorrelationID,
		Payload:       payload,
	}, nil
}

// maxPerspectiveLen guards against unbounded identifier creation when
// decoding open-ended perspective tags from untrusted records.
const maxPerspectiveLen = 64

func validatePerspective(perspective Perspective) error {
	if perspective == "" {
		return fmt.Errorf("empty perspective")
	}
	if len(perspective) > maxPerspectiveLen {
		return fmt.Errorf("perspective tag exceeds %d bytes", maxPerspectiveLen)
	}
	return nil
}

func validateEvaluation(evaluation *Evaluation) error {
	if evaluation == nil {
		return fmt.Errorf("missing evaluation")
	}
	if _, err := ParseVote(string(evaluation.Vote)); err != nil {
		return err
	}
	return validatePerspective(evaluation.Perspective)
}

func validatePayload(kind EventKind, payload interface{}) error {
	switch actual := payload.(type) {
	case *ProposalSubmitted:
		if actual.Proposal == nil {
			return fmt.Errorf("missing proposal")
		}
		if _, err := ParseStatus(string(actual.Proposal.Status)); err != nil {
			return err
		}
		if _, err := ParseMode(string(actual.Proposal.Mode)); err != nil {
			return err
		}
	case *EvaluationStarted:
		for _, perspective := range actual.Perspectives {
			if err := validatePerspective(perspective); err != nil {
				return err
			}
		}
	case *EvaluationCompleted:
		return validateEvaluation(actual.Evaluation)
	case *EvaluationFailed:
		return validatePerspective(actual.Perspective)
	case *DecisionRendered:
		if actual.Decision == nil {
			return fmt.Errorf("missing decision")
		}
		if _, err := ParseOutcome(string(actual.Decision.Decision)); err != nil {
			return err
		}
		if _, err := ParseMode(string(actual.Decision.Mode)); err != nil {
			return err
		}
		for _, evaluation := range actual.Decision.Evaluations {
			if err := validateEvaluation(evaluation); err != nil {
				return err
			}
		}
	}
	return nil
}
