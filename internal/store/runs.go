package store

import (
	"context"
	"fmt"
	"time"
)

// RunRecord summarizes one batch cycle for the status endpoint and audit.
type RunRecord struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	Status          string
	Analyzed        int
	TicketsCreated  int
	TicketsExtended int
	TicketsClosed   int
	RiskFlags       int
	Errors          []string
}

// InsertRun records a finished cycle.
func (s *Store) InsertRun(ctx context.Context, r RunRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_runs (
			id, started_at, finished_at, status, analyzed_count,
			tickets_created, tickets_extended, tickets_closed, risk_flags, errors
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.StartedAt, r.FinishedAt, r.Status, r.Analyzed,
		r.TicketsCreated, r.TicketsExtended, r.TicketsClosed, r.RiskFlags, r.Errors,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LastRun returns the most recent cycle, or nil when none has run yet.
func (s *Store) LastRun(ctx context.Context) (*RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, status, analyzed_count,
		       tickets_created, tickets_extended, tickets_closed, risk_flags, errors
		FROM analysis_runs
		ORDER BY started_at DESC LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var r RunRecord
	if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Analyzed,
		&r.TicketsCreated, &r.TicketsExtended, &r.TicketsClosed, &r.RiskFlags, &r.Errors); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &r, nil
}
