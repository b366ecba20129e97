// Package badger implements the refchain store contract on BadgerDB.
// Every commit runs in one serializable transaction that reads the ref,
// writes the event record, and swaps the ref; Badger's conflict
// detection turns a lost race into a concurrency conflict without any
// locks of our own.
package badger
