package arbor

import (
	"go.uber.org/zap"

	"github.com/trust-arbor/arbor/consensus"
	"github.com/trust-arbor/arbor/service/applier"
	"github.com/trust-arbor/arbor/service/evaluator"
	"github.com/trust-arbor/arbor/service/eventlog"
	"github.com/trust-arbor/arbor/service/signal"
)

// Option customises the arbor service
type Option func(s *Service)

// WithConfig sets the engine configuration
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithEventLog sets the event store backing the consensus stream
func WithEventLog(log eventlog.Service) Option {
	return func(s *Service) { s.eventLog = log }
}

// WithEvaluatorFactory sets the factory spawning council members
func WithEvaluatorFactory(factory evaluator.Factory) Option {
	return func(s *Service) { s.factory = factory }
}

// WithApplier sets the service applying approved changes
func WithApplier(service applier.Service) Option {
	return func(s *Service) { s.applier = service }
}

// WithSignalBus sets the observability bus
func WithSignalBus(bus signal.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithPerspectives overrides the council perspective roster
func WithPerspectives(perspectives ...consensus.Perspective) Option {
	return func(s *Service) { s.perspectives = perspectives }
}
