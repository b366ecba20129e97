// Package store defines the consumer-facing contracts of the refchain
// event log: RefStore (per-aggregate CAS pointer) and EventStore
// (commit/query over the append-only log), plus validation helpers shared
// by the backends.
//
// # Concurrency protocol
//
// Commit is optimistic concurrency control: read the ref, validate the
// caller's expected version, persist the event, and atomically advance the
// ref to the event's content hash. No lock is held between the read and
// the atomic append+swap; a concurrent committer is detected when the swap
// finds the ref moved, at which point the append is rolled back and the
// caller gets a CONCURRENCY_CONFLICT. Exactly one of any set of racing
// committers on the same expected version wins. Retry policy belongs to
// the caller; the store never retries.
//
// Backends: memory (per-cell-locked maps), sqlite (transactional,
// cross-process), badger (transactional, embedded KV). All three satisfy
// the same contract and are covered by the storetest conformance suite.
package store
