package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/saleops/pagepulse/internal/segment"
)

// InsertSessions persists segmenter output as immutable artifacts. Re-running
// the same upload with the same prefix is a no-op per session id.
func (s *Store) InsertSessions(ctx context.Context, sourceRef string, sessions []segment.Session) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sess := range sessions {
		payload, err := json.Marshal(sess.Messages)
		if err != nil {
			return fmt.Errorf("marshal session %s: %w", sess.SessionID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO sessions (session_id, source_ref, start_time, end_time, message_count, messages)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (session_id) DO NOTHING`,
			sess.SessionID, sourceRef, sess.StartTime, sess.EndTime, sess.MessageCount, payload,
		)
		if err != nil {
			return fmt.Errorf("insert session %s: %w", sess.SessionID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
