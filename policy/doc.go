// Package policy holds the pure risk classification and quorum rules of the
// consensus protocol, plus the immutable protocol invariants and a
// best-effort scanner that flags proposal payloads which textually attempt
// to defeat those invariants.
//
// Nothing in this package has side effects or state; every function is a
// total function of its arguments so that quorum computations can be
// re-run during recovery and audit with identical results.
package policy
