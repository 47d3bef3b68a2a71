// Package eventlog defines the append-only, per-stream-ordered event store
// consumed by the coordinator for durability and crash recovery, together
// with the generic wire format of a persisted event.
//
// Implementations live in sub-packages (memory, fs, sqlite). The log
// assigns every record its position; writers never choose positions, which
// keeps the store single-writer-per-position without any caller-side
// locking beyond serializing the caller's own Append calls.
package eventlog
