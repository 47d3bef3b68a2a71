package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trust-arbor/arbor/consensus"
	"github.com/trust-arbor/arbor/internal/idgen"
	"github.com/trust-arbor/arbor/policy"
	"github.com/trust-arbor/arbor/service/applier"
	"github.com/trust-arbor/arbor/service/evaluator"
	"github.com/trust-arbor/arbor/service/eventlog"
	"github.com/trust-arbor/arbor/service/mailbox"
	"github.com/trust-arbor/arbor/service/signal"
	"github.com/trust-arbor/arbor/tracing"
)

// Config represents coordinator service configuration.
type Config struct {
	// CouncilSize is the number of evaluators spawned per proposal.
	CouncilSize int

	// Perspectives is the list councils draw their seats from; when it is
	// shorter than CouncilSize the list is cycled.
	Perspectives []consensus.Perspective

	// EvaluatorTimeout bounds a single evaluator invocation.
	EvaluatorTimeout time.Duration

	// CollectTimeout bounds the whole collection phase of one council.
	CollectTimeout time.Duration

	// MailboxSize bounds the inbound proposal buffer.
	MailboxSize int

	// ReservedHighPriority is the mailbox sub-allocation kept free for
	// meta/governance proposals.
	ReservedHighPriority int
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		CouncilSize:          policy.CouncilSize,
		Perspectives:         consensus.DefaultPerspectives(),
		EvaluatorTimeout:     30 * time.Second,
		CollectTimeout:       2 * time.Minute,
		MailboxSize:          64,
		ReservedHighPriority: 8,
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c.CouncilSize <= 0 {
		return fmt.Errorf("councilSize must be > 0")
	}
	if len(c.Perspectives) == 0 {
		return fmt.Errorf("at least one perspective is required")
	}
	if c.EvaluatorTimeout <= 0 || c.CollectTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	if c.MailboxSize < 1 || c.ReservedHighPriority < 0 || c.ReservedHighPriority > c.MailboxSize {
		return fmt.Errorf("invalid mailbox sizing %d/%d", c.MailboxSize, c.ReservedHighPriority)
	}
	return nil
}

// InvariantViolationError rejects a binding proposal whose payload
// textually targets protocol invariants.
type InvariantViolationError struct {
	Invariants []string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("proposal payload targets protocol invariants: %s", strings.Join(e.Invariants, ", "))
}

// councilResult is one evaluator's contribution arriving on the fan-in
// channel.
type councilResult struct {
	perspective consensus.Perspective
	evaluatorID string
	evaluation  *consensus.Evaluation
	err         error
}

// Service is the consensus coordinator actor.
type Service struct {
	id      string
	config  Config
	log     eventlog.Service
	factory evaluator.Factory
	applier applier.Service
	bus     signal.Bus
	logger  *zap.Logger

	mu          sync.RWMutex
	proposals   map[string]*consensus.Proposal
	decisions   map[string]*consensus.CouncilDecision
	evaluations map[string][]*consensus.Evaluation
	cancelled   map[string]bool

	// decisionMu serializes rendering a decision against cancelling the
	// proposal, so exactly one of the two reaches the log.
	decisionMu sync.Mutex

	inboxMu sync.Mutex
	inbox   *mailbox.Mailbox
	wake    chan struct{}

	councilWg  sync.WaitGroup
	shutdownCh chan struct{}
	started    bool
}

// New creates a coordinator service.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:      DefaultConfig(),
		proposals:   make(map[string]*consensus.Proposal),
		decisions:   make(map[string]*consensus.CouncilDecision),
		evaluations: make(map[string][]*consensus.Evaluation),
		cancelled:   make(map[string]bool),
		wake:        make(chan struct{}, 1),
		shutdownCh:  make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	if s.log == nil {
		return nil, fmt.Errorf("event log is required")
	}
	if s.factory == nil {
		return nil, fmt.Errorf("evaluator factory is required")
	}
	if s.applier == nil {
		return nil, fmt.Errorf("applier is required")
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.id == "" {
		s.id = "coordinator/" + idgen.New()
	}
	inbox, err := mailbox.New(s.config.MailboxSize, s.config.ReservedHighPriority)
	if err != nil {
		return nil, err
	}
	s.inbox = inbox
	return s, nil
}

// Start recovers in-flight state from the event log and begins serving
// proposals. It must complete before the first Propose call.
func (s *Service) Start(ctx context.Context) error {
	if err := s.append(ctx, consensus.KindCoordinatorStarted, &consensus.CoordinatorStarted{CoordinatorID: s.id}, ""); err != nil {
		return err
	}
	if err := s.Recover(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	go s.loop(ctx)
	return nil
}

// Shutdown stops accepting proposals and waits for in-flight councils.
func (s *Service) Shutdown() {
	s.mu.Lock()
	if s.started {
		s.started = false
		close(s.shutdownCh)
	}
	s.mu.Unlock()
	s.councilWg.Wait()
}

// Propose submits a proposal for consensus and returns its id once the
// submission is durable. The council itself runs asynchronously; use
// Decision or a signal consumer to observe the outcome.
func (s *Service) Propose(ctx context.Context, proposal *consensus.Proposal) (proposalID string, err error) {
	ctx, span := tracing.StartSpan(ctx, "coordinator.propose", "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()
	if proposal == nil {
		return "", fmt.Errorf("proposal cannot be nil")
	}
	span.WithAttributes(map[string]string{"proposal.id": proposal.ID, "proposal.topic": proposal.Topic})
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return "", fmt.Errorf("coordinator is not started")
	}
	if proposal.Status != consensus.StatusPending {
		return "", fmt.Errorf("proposal %s is not pending", proposal.ID)
	}
	if proposal.Mode == consensus.ModeDecision {
		if violated := proposal.ViolatesInvariants(); len(violated) > 0 {
			return "", &InvariantViolationError{Invariants: violated}
		}
	}

	priority := mailbox.PriorityNormal
	if policy.IsMetaChange(proposal.Topic) {
		priority = mailbox.PriorityHigh
	}

	// The mailbox lock spans the capacity check, the durable append and the
	// enqueue so that an accepted submission is always both durable and
	// buffered, in that order.
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()
	if !s.hasCapacity(priority) {
		return "", mailbox.ErrMailboxFull
	}
	if err := s.append(ctx, consensus.KindProposalSubmitted, &consensus.ProposalSubmitted{Proposal: proposal}, proposal.ID); err != nil {
		return "", err
	}
	if err := proposal.UpdateStatus(consensus.StatusEvaluating); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.proposals[proposal.ID] = proposal
	s.mu.Unlock()
	if err := s.inbox.Enqueue(mailbox.NewEnvelope(proposal), priority); err != nil {
		// capacity was checked above; treat as a hard fault
		return "", err
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return proposal.ID, nil
}

func (s *Service) hasCapacity(priority mailbox.Priority) bool {
	info := s.inbox.CapacityInfo()
	if priority == mailbox.PriorityHigh {
		return info.HighSlotsFree > 0
	}
	return info.NormalSlotsFree > 0
}

// Cancel withdraws a proposal before its decision is rendered. Evaluator
// results arriving after cancellation are discarded, not persisted.
func (s *Service) Cancel(ctx context.Context, proposalID string) error {
	s.decisionMu.Lock()
	defer s.decisionMu.Unlock()
	s.mu.Lock()
	proposal, ok := s.proposals[proposalID]
	if !ok {
		s.mu.Unlock()
		return consensus.ErrNotFound
	}
	if _, decided := s.decisions[proposalID]; decided || proposal.Status.IsTerminal() {
		s.mu.Unlock()
		return fmt.Errorf("proposal %s is already decided", proposalID)
	}
	s.cancelled[proposalID] = true
	s.mu.Unlock()

	if err := s.append(ctx, consensus.KindProposalDeadlocked,
		&consensus.ProposalDeadlocked{ProposalID: proposalID, Reason: "cancelled"}, proposalID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return proposal.UpdateStatus(consensus.StatusDeadlock)
}

// Proposal returns the proposal with the given id.
func (s *Service) Proposal(_ context.Context, proposalID string) (*consensus.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[proposalID]
	if !ok {
		return nil, consensus.ErrNotFound
	}
	return proposal, nil
}

// Decision returns the rendered decision for the given proposal id.
func (s *Service) Decision(_ context.Context, proposalID string) (*consensus.CouncilDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	decision, ok := s.decisions[proposalID]
	if !ok {
		return nil, consensus.ErrNotFound
	}
	return decision, nil
}

// Evaluations returns the sealed evaluations collected for a proposal.
func (s *Service) Evaluations(_ context.Context, proposalID string) ([]*consensus.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.proposals[proposalID]; !ok {
		return nil, consensus.ErrNotFound
	}
	return append([]*consensus.Evaluation{}, s.evaluations[proposalID]...), nil
}

// loop drains the inbound mailbox, spawning one council per proposal. It is
// the only goroutine dequeuing, so mailbox access needs no lock beyond the
// one shared with Propose.
func (s *Service) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-s.wake:
		}
		for {
			s.inboxMu.Lock()
			envelope, ok := s.inbox.Dequeue()
			s.inboxMu.Unlock()
			if !ok {
				break
			}
			proposal, ok := envelope.Payload.(*consensus.Proposal)
			if !ok {
				s.logger.Warn("dropping foreign envelope", zap.String("envelope", envelope.ID))
				continue
			}
			s.councilWg.Add(1)
			go func() {
				defer s.councilWg.Done()
				s.runCouncil(ctx, proposal)
			}()
		}
	}
}

// perspectives returns the seat assignment for one council.
func (s *Service) perspectives() []consensus.Perspective {
	ret := make([]consensus.Perspective, s.config.CouncilSize)
	for i := range ret {
		ret[i] = s.config.Perspectives[i%len(s.config.Perspectives)]
	}
	return ret
}

// runCouncil fans out one evaluator per perspective, collects their sealed
// results under the collection deadline and renders the decision.
func (s *Service) runCouncil(ctx context.Context, proposal *consensus.Proposal) {
	ctx, span := tracing.StartSpan(ctx, "coordinator.council", "INTERNAL")
	var err error
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"proposal.id": proposal.ID})

	seats := s.perspectives()
	required := proposal.RequiredQuorum()
	err = s.append(ctx, consensus.KindEvaluationStarted, &consensus.EvaluationStarted{
		ProposalID:     proposal.ID,
		Perspectives:   seats,
		CouncilSize:    s.config.CouncilSize,
		RequiredQuorum: required,
	}, proposal.ID)
	if err != nil {
		s.logger.Error("council start not durable, refusing to evaluate",
			zap.String("proposal", proposal.ID), zap.Error(err))
		return
	}

	results := make(chan councilResult, len(seats))
	for _, seat := range seats {
		go s.runEvaluator(ctx, proposal, seat, results)
	}

	deadline := time.NewTimer(s.config.CollectTimeout)
	defer deadline.Stop()

	sealed := make([]*consensus.Evaluation, 0, len(seats))
	reported := make(map[consensus.Perspective]int, len(seats))
	received := 0
collect:
	for received < len(seats) {
		select {
		case result := <-results:
			received++
			reported[result.perspective]++
			if evaluation := s.acceptResult(ctx, proposal, result); evaluation != nil {
				sealed = append(sealed, evaluation)
			}
		case <-deadline.C:
			break collect
		case <-ctx.Done():
			return
		}
	}
	// evaluators that never reported are failures, not cancellations
	for _, seat := range seats {
		if reported[seat] > 0 {
			reported[seat]--
			continue
		}
		s.appendEvaluationFailed(ctx, proposal, seat, "", "collection deadline elapsed")
	}

	s.decide(ctx, proposal, sealed)
}

// runEvaluator invokes one isolated council member. Each member gets a
// fresh instance from the factory, its own timeout and a private copy of
// the proposal - evaluators never share state with each other.
func (s *Service) runEvaluator(ctx context.Context, proposal *consensus.Proposal, seat consensus.Perspective, results chan<- councilResult) {
	evalCtx, cancel := context.WithTimeout(ctx, s.config.EvaluatorTimeout)
	defer cancel()
	member, err := s.factory.New(seat)
	if err != nil {
		results <- councilResult{perspective: seat, err: fmt.Errorf("failed to spawn evaluator: %w", err)}
		return
	}
	snapshot := *proposal
	evaluation, err := member.Evaluate(evalCtx, &snapshot, seat)
	results <- councilResult{perspective: seat, evaluatorID: member.ID(), evaluation: evaluation, err: err}
}

// acceptResult seals and persists one evaluator result, degrading every
// failure mode to an EvaluationFailed event. It returns the sealed
// evaluation when it may contribute a vote.
func (s *Service) acceptResult(ctx context.Context, proposal *consensus.Proposal, result councilResult) *consensus.Evaluation {
	if s.isCancelled(proposal.ID) {
		return nil
	}
	if result.err != nil {
		s.appendEvaluationFailed(ctx, proposal, result.perspective, result.evaluatorID, result.err.Error())
		return nil
	}
	evaluation := result.evaluation
	if evaluation == nil || evaluation.ProposalID != proposal.ID {
		s.appendEvaluationFailed(ctx, proposal, result.perspective, result.evaluatorID, "evaluator returned a foreign evaluation")
		return nil
	}
	if err := evaluation.Seal(); err != nil {
		s.appendEvaluationFailed(ctx, proposal, result.perspective, result.evaluatorID, fmt.Sprintf("sealing failed: %v", err))
		return nil
	}
	if err := evaluation.VerifySeal(); err != nil {
		s.appendEvaluationFailed(ctx, proposal, result.perspective, result.evaluatorID, fmt.Sprintf("seal verification failed: %v", err))
		return nil
	}
	if err := s.append(ctx, consensus.KindEvaluationCompleted,
		&consensus.EvaluationCompleted{ProposalID: proposal.ID, Evaluation: evaluation}, proposal.ID); err != nil {
		// not durable, therefore not eligible to vote
		s.logger.Error("evaluation not durable, excluding from tally",
			zap.String("proposal", proposal.ID), zap.String("perspective", string(result.perspective)), zap.Error(err))
		return nil
	}
	s.mu.Lock()
	s.evaluations[proposal.ID] = append(s.evaluations[proposal.ID], evaluation)
	s.mu.Unlock()
	return evaluation
}

func (s *Service) appendEvaluationFailed(ctx context.Context, proposal *consensus.Proposal, seat consensus.Perspective, evaluatorID, reason string) {
	if s.isCancelled(proposal.ID) {
		return
	}
	if err := s.append(ctx, consensus.KindEvaluationFailed, &consensus.EvaluationFailed{
		ProposalID:  proposal.ID,
		EvaluatorID: evaluatorID,
		Perspective: seat,
		Reason:      reason,
	}, proposal.ID); err != nil {
		s.logger.Error("failed to record evaluator failure",
			zap.String("proposal", proposal.ID), zap.Error(err))
	}
}

// decide aggregates whatever sealed evaluations exist; missing or failed
// evaluators simply contribute no vote, pushing the tally toward deadlock.
func (s *Service) decide(ctx context.Context, proposal *consensus.Proposal, sealed []*consensus.Evaluation) {
	decision := s.render(ctx, proposal, sealed)
	if decision == nil {
		return
	}
	if proposal.Mode == consensus.ModeDecision && decision.Decision == consensus.OutcomeApproved {
		s.execute(ctx, proposal)
	}
}

// render persists the decision under the same lock Cancel takes: a
// cancellation observed here is final, so the log never carries both a
// cancellation and a decision for one proposal. It returns the rendered
// decision, or nil when none was persisted.
func (s *Service) render(ctx context.Context, proposal *consensus.Proposal, sealed []*consensus.Evaluation) *consensus.CouncilDecision {
	s.decisionMu.Lock()
	defer s.decisionMu.Unlock()
	if s.isCancelled(proposal.ID) {
		return nil
	}
	decision, err := consensus.FromEvaluations(proposal, sealed)
	if err != nil {
		s.logger.Error("aggregation refused", zap.String("proposal", proposal.ID), zap.Error(err))
		if appendErr := s.append(ctx, consensus.KindProposalDeadlocked,
			&consensus.ProposalDeadlocked{ProposalID: proposal.ID, Reason: "aggregation failed: " + err.Error()}, proposal.ID); appendErr != nil {
			s.logger.Error("failed to record aggregation failure", zap.Error(appendErr))
			return nil
		}
		s.transition(proposal, consensus.StatusDeadlock)
		return nil
	}
	if err := s.append(ctx, consensus.KindDecisionRendered,
		&consensus.DecisionRendered{ProposalID: proposal.ID, Decision: decision}, proposal.ID); err != nil {
		s.logger.Error("decision not durable, refusing to advance",
			zap.String("proposal", proposal.ID), zap.Error(err))
		return nil
	}
	s.mu.Lock()
	s.decisions[proposal.ID] = decision
	s.mu.Unlock()
	s.transition(proposal, decision.Decision.Status())
	s.logger.Info("decision rendered",
		zap.String("proposal", proposal.ID),
		zap.String("decision", string(decision.Decision)),
		zap.Int("approve", decision.ApproveCount),
		zap.Int("reject", decision.RejectCount),
		zap.Int("requiredQuorum", decision.RequiredQuorum))
	return decision
}

// execute applies an approved binding change. Execution failure is recorded
// but never retroactively changes the decision.
func (s *Service) execute(ctx context.Context, proposal *consensus.Proposal) {
	ctx, span := tracing.StartSpan(ctx, "coordinator.execute", "INTERNAL")
	var err error
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"proposal.id": proposal.ID})

	executed := &consensus.ProposalExecuted{ProposalID: proposal.ID}
	result, err := s.applier.Apply(ctx, proposal)
	if err != nil {
		executed.Result = applier.StatusFailed
		executed.Detail = err.Error()
	} else {
		executed.Result = result.Status
		executed.Detail = result.Output
	}
	if appendErr := s.append(ctx, consensus.KindProposalExecuted, executed, proposal.ID); appendErr != nil {
		s.logger.Error("failed to record execution result",
			zap.String("proposal", proposal.ID), zap.Error(appendErr))
	}
}

func (s *Service) transition(proposal *consensus.Proposal, status consensus.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := proposal.UpdateStatus(status); err != nil {
		s.logger.Warn("status transition rejected",
			zap.String("proposal", proposal.ID), zap.Error(err))
	}
}

func (s *Service) isCancelled(proposalID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancelled[proposalID]
}

// append makes an event durable and, best-effort, mirrors it onto the
// signal bus.
func (s *Service) append(ctx context.Context, kind consensus.EventKind, payload interface{}, correlationID string) error {
	event := consensus.NewEvent(kind, payload)
	event.CorrelationID = correlationID
	record, err := event.Record()
	if err != nil {
		return err
	}
	if _, err := s.log.Append(ctx, consensus.Stream, record); err != nil {
		return fmt.Errorf("failed to append %s: %w", kind, err)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, "arbor.consensus."+string(kind), payload)
	}
	return nil
}
