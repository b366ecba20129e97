package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
)

// Events implements store.EventStore.
func (s *Store) Events(ctx context.Context, f event.Filter) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT id, aggregate_id, timestamp, current_version, type, payload
		FROM events
		WHERE aggregate_id = ?
	`)
	args := []any{f.AggregateID}
	if f.Type != "" {
		sb.WriteString(" AND type = ?")
		args = append(args, f.Type)
	}
	if f.Start != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, *f.Start)
	}
	if f.End != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, *f.End)
	}
	sb.WriteString(" ORDER BY timestamp, seq")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		ev, err := s.scanEvent(rows)
		if err != nil {
			continue // bad record already logged
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return events, nil
}

// All implements store.EventStore. The query runs when the sequence is
// consumed, not when All is called.
func (s *Store) All(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, aggregate_id, timestamp, current_version, type, payload
			FROM events
			ORDER BY timestamp, seq
		`)
		if err != nil {
			yield(event.Event{}, fmt.Errorf("query all events: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			ev, err := s.scanEvent(rows)
			if err != nil {
				continue // bad record already logged
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(event.Event{}, fmt.Errorf("query all events: %w", err))
		}
	}
}

// scanEvent reads one row and decodes its payload through the registry.
// A row that fails to parse or decode is reported and skipped by callers.
func (s *Store) scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		id, aggregateID, currentVersion, eventType string
		timestamp                                  int64
		payload                                    []byte
	)
	if err := rows.Scan(&id, &aggregateID, &timestamp, &currentVersion, &eventType, &payload); err != nil {
		return event.Event{}, fmt.Errorf("scan event: %w", err)
	}

	version, err := hash.Parse(currentVersion)
	if err != nil {
		s.logger.Warn("skipping undecodable event record",
			"aggregate_id", aggregateID, "event_id", id, "type", eventType, "error", err)
		return event.Event{}, err
	}
	body, err := s.reg.Decode(eventType, payload)
	if err != nil {
		s.logger.Warn("skipping undecodable event record",
			"aggregate_id", aggregateID, "event_id", id, "type", eventType, "error", err)
		return event.Event{}, err
	}

	return event.Event{
		ID:             id,
		AggregateID:    aggregateID,
		Timestamp:      timestamp,
		CurrentVersion: version,
		Body:           body,
	}, nil
}
