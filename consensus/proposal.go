package consensus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/trust-arbor/arbor/internal/clock"
	"github.com/trust-arbor/arbor/internal/idgen"
	"github.com/trust-arbor/arbor/policy"
)

// Proposal represents a requested system change submitted for consensus.
// It is owned exclusively by the coordinator for the duration of its
// lifecycle and immutable except for Status/DecidedAt transitions.
type Proposal struct {
	ID          string                 `json:"id"`
	Proposer    string                 `json:"proposer"`
	Topic       string                 `json:"topic"`
	Mode        Mode                   `json:"mode"`
	TargetLayer int                    `json:"targetLayer"`
	Description string                 `json:"description"`
	Status      Status                 `json:"status"`
	Context     map[string]interface{} `json:"context,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
	DecidedAt   *time.Time             `json:"decidedAt,omitempty"`
}

// ProposalOption customizes a proposal at construction time.
type ProposalOption func(p *Proposal)

// WithMode sets the proposal mode (default ModeDecision).
func WithMode(mode Mode) ProposalOption {
	return func(p *Proposal) { p.Mode = mode }
}

// WithContext attaches the free-form change payload (diff, config delta...).
func WithContext(context map[string]interface{}) ProposalOption {
	return func(p *Proposal) { p.Context = context }
}

// WithTargetLayer overrides the inferred architecture blast-radius layer.
func WithTargetLayer(layer int) ProposalOption {
	return func(p *Proposal) { p.TargetLayer = layer }
}

// WithProposalID sets an explicit id instead of a generated one.
func WithProposalID(id string) ProposalOption {
	return func(p *Proposal) { p.ID = id }
}

// layerHints maps target-module name fragments to architecture layers; the
// first match wins, unknown modules default to the outermost layer.
var layerHints = []struct {
	fragment string
	layer    int
}{
	{"governance", 1},
	{"constitution", 1},
	{"consensus", 2},
	{"coordinat", 2},
	{"service", 3},
	{"tool", 3},
	{"agent", 4},
	{"sandbox", 4},
}

const defaultTargetLayer = 4

// NewProposal constructs and validates a proposal. Proposer, topic and
// description are required; everything else has a default.
func NewProposal(proposer, topic, description string, options ...ProposalOption) (*Proposal, error) {
	switch {
	case strings.TrimSpace(proposer) == "":
		return nil, &MissingFieldError{Field: "proposer"}
	case strings.TrimSpace(topic) == "":
		return nil, &MissingFieldError{Field: "topic"}
	case strings.TrimSpace(description) == "":
		return nil, &MissingFieldError{Field: "description"}
	}
	now := clock.Now()
	ret := &Proposal{
		ID:          idgen.New(),
		Proposer:    proposer,
		Topic:       topic,
		Mode:        ModeDecision,
		TargetLayer: -1,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, option := range options {
		option(ret)
	}
	if _, err := ParseMode(string(ret.Mode)); err != nil {
		return nil, &InvalidFieldError{Field: "mode", Reason: err.Error()}
	}
	if ret.TargetLayer == -1 {
		ret.TargetLayer = inferTargetLayer(ret.Context)
	}
	if ret.TargetLayer < 0 || ret.TargetLayer > 4 {
		return nil, &InvalidFieldError{Field: "targetLayer", Reason: fmt.Sprintf("must be 0..4, got %d", ret.TargetLayer)}
	}
	return ret, nil
}

// inferTargetLayer inspects the context payload for a target-module hint and
// maps known name patterns to layers.
func inferTargetLayer(context map[string]interface{}) int {
	if context == nil {
		return defaultTargetLayer
	}
	hint, ok := context["target_module"].(string)
	if !ok || hint == "" {
		return defaultTargetLayer
	}
	normalized := strings.ToLower(hint)
	for _, candidate := range layerHints {
		if strings.Contains(normalized, candidate.fragment) {
			return candidate.layer
		}
	}
	return defaultTargetLayer
}

// RequiredQuorum returns the approve (or reject) count out of the council
// size required for a binding decision; advisory proposals require none.
func (p *Proposal) RequiredQuorum() int {
	if p.Mode == ModeAdvisory {
		return 0
	}
	return policy.QuorumFor(p.Topic)
}

// valid forward transitions of the status machine; terminal statuses have
// no entry.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusEvaluating, StatusVetoed, StatusDeadlock},
	StatusEvaluating: {StatusApproved, StatusRejected, StatusDeadlock, StatusVetoed},
}

// UpdateStatus advances the status machine, stamping DecidedAt when a
// terminal status is entered. Transitions out of a terminal status, or any
// transition not listed in the machine, fail.
func (p *Proposal) UpdateStatus(status Status) error {
	if status == p.Status {
		return nil
	}
	allowed := false
	for _, next := range statusTransitions[p.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return &InvalidTransitionError{From: p.Status, To: status}
	}
	p.Status = status
	p.UpdatedAt = clock.Now()
	if status.IsTerminal() {
		decidedAt := p.UpdatedAt
		p.DecidedAt = &decidedAt
	}
	return nil
}

// ViolatesInvariants scans the proposal payload against the immutable
// protocol invariants and returns the names of those it appears to target.
// The scan is best-effort pattern matching, not formal verification.
func (p *Proposal) ViolatesInvariants() []string {
	var payload strings.Builder
	payload.WriteString(p.Description)
	if len(p.Context) > 0 {
		payload.WriteString("\n")
		if data, err := json.Marshal(p.Context); err == nil {
			payload.Write(data)
		}
		// a diff payload is scanned in diff-aware mode on its own
		if raw, ok := p.Context["diff"].(string); ok {
			return policy.Violations(p.Description + "\n" + raw)
		}
	}
	return policy.Violations(payload.String())
}
