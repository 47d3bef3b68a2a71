// Package arbor provides an auditable multi-agent consensus engine.
//
// Proposals are judged by a council of independently spawned evaluators,
// each assessing the change from its own perspective (security, stability,
// capability, adversarial, resource, emergence, random). Evaluations are
// sealed with a canonical-JSON hash before aggregation, decisions require a
// risk-dependent quorum, and every lifecycle step is persisted to an
// append-only event log before the system acts on it, so a crashed
// coordinator recovers by replay.
//
// End-users interact with the engine via the high-level Service façade
// exposed by the root package:
//
//	srv, _ := arbor.New()
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	proposal, _ := consensus.NewProposal("agent/researcher", "adopt new retrieval tool", "...")
//	id, _ := rt.Propose(ctx, proposal)
//	decision, _ := rt.WaitForDecision(ctx, id, time.Minute)
//
// For more details see the README and individual sub-packages.
package arbor
