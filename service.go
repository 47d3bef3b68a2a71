package arbor

import (
	"fmt"

	"github.com/viant/afs"
	"go.uber.org/zap"

	"github.com/trust-arbor/arbor/consensus"
	"github.com/trust-arbor/arbor/service/applier"
	anop "github.com/trust-arbor/arbor/service/applier/nop"
	"github.com/trust-arbor/arbor/service/coordinator"
	"github.com/trust-arbor/arbor/service/evaluator"
	"github.com/trust-arbor/arbor/service/evaluator/rule"
	"github.com/trust-arbor/arbor/service/eventlog"
	efs "github.com/trust-arbor/arbor/service/eventlog/fs"
	ememory "github.com/trust-arbor/arbor/service/eventlog/memory"
	esqlite "github.com/trust-arbor/arbor/service/eventlog/sqlite"
	"github.com/trust-arbor/arbor/service/signal"
)

// Service is the high-level engine façade. It assembles the event store,
// evaluator factory, applier and signal bus into a running coordinator and
// exposes it through Runtime.
type Service struct {
	runtime      *Runtime
	config       *Config
	eventLog     eventlog.Service
	factory      evaluator.Factory
	applier      applier.Service
	bus          signal.Bus
	logger       *zap.Logger
	perspectives []consensus.Perspective
}

// New creates an engine with the supplied options. Unset collaborators
// default to the in-memory event store, the deterministic rule evaluator
// and the no-op applier.
func New(options ...Option) (*Service, error) {
	s := &Service{}
	if err := s.init(options); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromConfig creates an engine from a configuration, typically loaded
// with LoadConfig.
func NewFromConfig(config *Config, options ...Option) (*Service, error) {
	return New(append([]Option{WithConfig(config)}, options...)...)
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.ensureBaseSetup(); err != nil {
		return err
	}
	cfg := coordinator.DefaultConfig()
	cfg.CouncilSize = s.config.Coordinator.CouncilSize
	cfg.EvaluatorTimeout = s.config.Coordinator.EvaluatorTimeout()
	cfg.CollectTimeout = s.config.Coordinator.CollectTimeout()
	cfg.MailboxSize = s.config.Coordinator.MailboxSize
	cfg.ReservedHighPriority = s.config.Coordinator.ReservedHighPriority
	if len(s.perspectives) > 0 {
		cfg.Perspectives = s.perspectives
	}
	svc, err := coordinator.New(
		coordinator.WithConfig(cfg),
		coordinator.WithEventLog(s.eventLog),
		coordinator.WithEvaluatorFactory(s.factory),
		coordinator.WithApplier(s.applier),
		coordinator.WithSignalBus(s.bus),
		coordinator.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}
	s.runtime = &Runtime{coordinator: svc}
	return nil
}

func (s *Service) ensureBaseSetup() error {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.eventLog == nil {
		log, err := newEventLog(&s.config.EventLog)
		if err != nil {
			return err
		}
		s.eventLog = log
	}
	if s.factory == nil {
		s.factory = rule.Factory()
	}
	if s.applier == nil {
		s.applier = anop.New()
	}
	if s.bus == nil {
		s.bus = signal.New()
	}
	return nil
}

func newEventLog(config *EventLogConfig) (eventlog.Service, error) {
	switch config.Backend {
	case BackendMemory, "":
		return ememory.New(), nil
	case BackendFs:
		return efs.New(afs.New(), efs.Config{BaseURL: config.Location})
	case BackendSqlite:
		return esqlite.New(config.Location)
	}
	return nil, fmt.Errorf("unknown event log backend: %q", config.Backend)
}

// Runtime returns the consensus runtime.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// EventLog exposes the backing event store, e.g. for audit tooling.
func (s *Service) EventLog() eventlog.Service {
	return s.eventLog
}

// SignalBus exposes the observability bus so callers can subscribe to
// lifecycle signals.
func (s *Service) SignalBus() signal.Bus {
	return s.bus
}
