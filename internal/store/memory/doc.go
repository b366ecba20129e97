// Package memory implements the refchain store contract with in-process
// maps: one independently locked ref cell per aggregate and a seq-stamped
// append-only log. It exists for tests, tooling, and single-process
// embedding; durability comes from the sqlite and badger backends.
package memory
