// Package sqlite implements the refchain store contract on a single
// SQLite file. Refs live in a one-row-per-aggregate table whose
// check-and-set is a guarded UPDATE; commits insert the event and swap
// the ref in one transaction. WAL mode keeps reads concurrent with the
// single writer.
package sqlite
