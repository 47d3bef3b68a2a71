// Package coordinator implements the stateful orchestrator of the
// consensus protocol. It accepts proposals through a bounded two-priority
// mailbox, spawns a fresh, mutually isolated council per proposal, collects
// sealed evaluations under a timeout budget, aggregates them into a
// decision, triggers execution of approved binding changes and persists
// every lifecycle transition to the append-only event log.
//
// Durability ordering is the contract recovery depends on: a proposal is
// durably submitted before any evaluator is spawned, and a decision is
// durably rendered before execution is triggered. The coordinator never
// advances its in-memory state past a failed append.
package coordinator
