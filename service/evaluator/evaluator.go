// Package evaluator defines the pluggable council-member interface. An
// evaluator assesses one proposal from one perspective and returns an
// evaluation; its internal strategy (LLM, rules, anything deterministic) is
// opaque to the coordinator, which treats all strategies identically.
package evaluator

import (
	"context"
	"fmt"

	"github.com/trust-arbor/arbor/consensus"
)

// Strategy tags an evaluator implementation for operational visibility
// only; it carries no protocol semantics.
type Strategy string

const (
	StrategyLLM           Strategy = "llm"
	StrategyRuleBased     Strategy = "rule_based"
	StrategyDeterministic Strategy = "deterministic"
	StrategyHybrid        Strategy = "hybrid"
)

// ParseStrategy converts an untrusted string into a Strategy.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(value) {
	case StrategyLLM, StrategyRuleBased, StrategyDeterministic, StrategyHybrid:
		return Strategy(value), nil
	}
	return "", fmt.Errorf("unknown evaluator strategy: %q", value)
}

// Service is one council member.
type Service interface {
	// ID identifies this evaluator instance in evaluations and events.
	ID() string

	// Strategy declares how this evaluator forms its verdict.
	Strategy() Strategy

	// Evaluate assesses the proposal from the given perspective. The
	// returned evaluation may be sealed or unsealed; the coordinator seals
	// unsealed results before aggregation.
	Evaluate(ctx context.Context, proposal *consensus.Proposal, perspective consensus.Perspective) (*consensus.Evaluation, error)
}

// Factory produces one fresh evaluator per council seat. A fresh instance
// per seat keeps council members mutually isolated: no shared mutable
// state, independent failure domains.
type Factory interface {
	New(perspective consensus.Perspective) (Service, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(perspective consensus.Perspective) (Service, error)

func (f FactoryFunc) New(perspective consensus.Perspective) (Service, error) {
	return f(perspective)
}
