package badger

import (
	"fmt"
	"net/url"
)

// Key layout. Aggregate and event ids are path-escaped so the "/"
// delimiter stays unambiguous.
//
//	ref/<agg>            current ref, hex hash
//	evt/<agg>/<seq>      stored event record, JSON
//	id/<event-id>        uniqueness marker for event ids
//	meta/seq             commit sequence counter
const (
	refPrefix   = "ref/"
	eventPrefix = "evt/"
	idPrefix    = "id/"
	seqKey      = "meta/seq"
)

func refKey(aggregateID string) []byte {
	return []byte(refPrefix + url.PathEscape(aggregateID))
}

func eventKey(aggregateID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%016x", eventPrefix, url.PathEscape(aggregateID), seq))
}

func eventKeyPrefix(aggregateID string) []byte {
	return []byte(eventPrefix + url.PathEscape(aggregateID) + "/")
}

func idKey(eventID string) []byte {
	return []byte(idPrefix + url.PathEscape(eventID))
}
