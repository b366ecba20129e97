// Package event defines the immutable event value, its content-addressed
// hashing, and the query filter.
//
// Every committed event for an aggregate forms a singly-linked chain via
// CurrentVersion: the first event links to the zero hash, every subsequent
// event links to the hash of its immediate predecessor. Because the hash is
// a pure function of event content, a restored log's integrity can be
// verified without external metadata — altering any committed event changes
// its hash and breaks every later link.
//
// Hashing uses RFC 8785 canonical JSON (see MarshalCanonical) under the
// refchain/event/v1 domain, so semantically distinct events never collide
// and identical events always agree.
package event
