// Package consensus defines the data model of the arbor consensus protocol:
// proposals under consideration, sealed evaluations produced by council
// members, council decisions aggregated from those evaluations and the
// closed set of lifecycle events appended to the audit log.
//
// Everything in this package is side-effect free.  The stateful
// orchestration lives in service/coordinator; the types here can be
// constructed, sealed, aggregated and serialized without touching any
// external collaborator, which keeps them safe to re-run during recovery
// and audit replay.
package consensus
