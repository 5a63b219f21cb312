package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saleops/pagepulse/internal/analyzer"
	"github.com/saleops/pagepulse/internal/ticket"
)

// TicketRange is the persisted coverage unit: the first and last message of
// one analyzed window.
type TicketRange struct {
	TicketID       string
	StartMessageID string
	EndMessageID   string
}

// ListTicketRanges returns every ticket range recorded for a conversation,
// open and closed alike.
func (s *Store) ListTicketRanges(ctx context.Context, conversationID string) ([]TicketRange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, start_message_id, end_message_id
		FROM tickets WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list ticket ranges for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var out []TicketRange
	for rows.Next() {
		var r TicketRange
		if err := rows.Scan(&r.TicketID, &r.StartMessageID, &r.EndMessageID); err != nil {
			return nil, fmt.Errorf("scan ticket range: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ApplyAnalysis persists one batch outcome in a single transaction: warehouse
// dimensions, the ticket upsert, the risk fact, per-message flags, and the
// conversation cursor. The cursor update is the final statement so a failure
// anywhere earlier leaves it untouched and the batch re-runnable.
func (s *Store) ApplyAnalysis(ctx context.Context, conv Conversation, tr ticket.Transition, res *analyzer.Analysis) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	dateKey := dimDateKey(now)

	if err := upsertDimensions(ctx, tx, conv, res, now); err != nil {
		return err
	}

	staffKey := StaffKey(res.RepQuality.StaffName)
	locationKey := locationKey(res.Customer.LocationType, res.Customer.LocationDetail)

	var riskEvidence *string
	if res.Risk.HasRisk && res.Risk.Evidence != "" {
		riskEvidence = &res.Risk.Evidence
	}

	if tr.CreateNew {
		var closedAt *time.Time
		var closedKey *int
		if tr.Status == ticket.StatusClosed {
			closedAt, closedKey = &now, &dateKey
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO tickets (
				id, conversation_id, customer_key, staff_key, location_key,
				customer_type_key, outcome_key, created_date_key, closed_date_key,
				start_message_id, end_message_id, status,
				outcome_reason, rep_quality_summary, summary,
				has_risk, risk_evidence, created_at, closed_at, last_updated
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$18)
			ON CONFLICT (id) DO NOTHING`,
			tr.TicketID, conv.ID, conv.ID, staffKey, locationKey,
			res.Customer.Type, res.Outcome.Outcome, dateKey, closedKey,
			tr.StartMessageID, tr.EndMessageID, tr.Status,
			res.Outcome.Reason, res.RepQuality.QualitySummary, res.TicketSummary,
			res.Risk.HasRisk, riskEvidence, now, closedAt,
		)
		if err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
	} else {
		tag, err := tx.Exec(ctx, `
			UPDATE tickets SET
				end_message_id = $2, status = $3, staff_key = $4, outcome_key = $5,
				closed_date_key = CASE WHEN $3 = 'CLOSED' THEN $6 ELSE closed_date_key END,
				outcome_reason = $7, rep_quality_summary = $8, summary = $9,
				has_risk = tickets.has_risk OR $10, risk_evidence = COALESCE($11, risk_evidence),
				closed_at = CASE WHEN $3 = 'CLOSED' THEN $12 ELSE closed_at END,
				last_updated = $12
			WHERE id = $1`,
			tr.TicketID, tr.EndMessageID, tr.Status, staffKey, res.Outcome.Outcome,
			dateKey, res.Outcome.Reason, res.RepQuality.QualitySummary, res.TicketSummary,
			res.Risk.HasRisk, riskEvidence, now,
		)
		if err != nil {
			return fmt.Errorf("extend ticket %s: %w", tr.TicketID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("open ticket %s not found for conversation %s", tr.TicketID, conv.ID)
		}
	}

	if res.Risk.HasRisk {
		_, err = tx.Exec(ctx, `
			INSERT INTO fact_risk_incidents (
				incident_id, ticket_id, staff_key, created_date_key,
				conversation_id, evidence, review_status, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, 'Pending', $7)`,
			newIncidentID(), tr.TicketID, staffKey, dateKey,
			conv.ID, res.Risk.Evidence, now,
		)
		if err != nil {
			return fmt.Errorf("insert risk incident: %w", err)
		}
	}

	for id, auto := range res.AutoReplyByID {
		_, err = tx.Exec(ctx, `
			UPDATE messages SET is_auto_reply = $2, has_risk_flag = $3 WHERE id = $1`,
			id, auto, res.RiskByID[id],
		)
		if err != nil {
			return fmt.Errorf("update message flags for %s: %w", id, err)
		}
	}

	// Cursor advance last: a partial commit must never leave it moved.
	_, err = tx.Exec(ctx, `
		UPDATE conversations SET
			last_analyzed_message_count = $2,
			active_ticket_id = NULLIF($3, ''),
			active_ticket_summary = $4,
			last_analyzed_at = $5
		WHERE id = $1`,
		conv.ID, tr.NewAnalyzedCount, tr.NextActiveTicketID, res.TicketSummary, now,
	)
	if err != nil {
		return fmt.Errorf("advance cursor for %s: %w", conv.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// StaffKey derives the dimension key from a staff name, e.g.
// "H. Anh" -> "staff_h._anh". Empty for Unknown staff.
func StaffKey(name string) *string {
	if name == "" || name == "Unknown" {
		return nil
	}
	k := "staff_" + strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	return &k
}

func locationKey(locType, detail string) string {
	if detail == "" || detail == "Unknown" {
		return "Unknown"
	}
	return locType + "_" + strings.ReplaceAll(detail, " ", "_")
}

func dimDateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

func newIncidentID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "risk_" + hex[:12]
}
