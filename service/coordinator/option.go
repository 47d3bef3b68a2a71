package coordinator

import (
	"go.uber.org/zap"

	"github.com/trust-arbor/arbor/consensus"
	"github.com/trust-arbor/arbor/service/applier"
	"github.com/trust-arbor/arbor/service/evaluator"
	"github.com/trust-arbor/arbor/service/eventlog"
	"github.com/trust-arbor/arbor/service/signal"
)

// Option customizes the coordinator service.
type Option func(s *Service)

// WithEventLog sets the append-only event store (required).
func WithEventLog(log eventlog.Service) Option {
	return func(s *Service) { s.log = log }
}

// WithEvaluatorFactory sets the factory producing one fresh evaluator per
// council seat (required).
func WithEvaluatorFactory(factory evaluator.Factory) Option {
	return func(s *Service) { s.factory = factory }
}

// WithApplier sets the execution collaborator invoked for approved binding
// decisions (required).
func WithApplier(service applier.Service) Option {
	return func(s *Service) { s.applier = service }
}

// WithSignalBus sets the best-effort observability bus.
func WithSignalBus(bus signal.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithLogger sets the structured logger (default no-op).
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithConfig replaces the whole configuration.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithCouncilSize overrides the number of evaluators per council.
func WithCouncilSize(size int) Option {
	return func(s *Service) { s.config.CouncilSize = size }
}

// WithPerspectives overrides the perspective list councils draw from.
func WithPerspectives(perspectives ...consensus.Perspective) Option {
	return func(s *Service) { s.config.Perspectives = perspectives }
}

// WithCoordinatorID sets an explicit coordinator identity for events.
func WithCoordinatorID(id string) Option {
	return func(s *Service) { s.id = id }
}
