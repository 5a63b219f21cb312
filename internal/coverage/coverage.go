// Package coverage computes which part of a conversation's message sequence
// is not yet accounted for by any ticket range, and selects the
// conversations whose backlog justifies a model call.
package coverage

import (
	"log/slog"

	"github.com/saleops/pagepulse/internal/store"
)

// Uncovered returns the messages not covered by any ticket range, preserving
// original order. Ranges are resolved through an id→position index, so the
// whole computation is O(n + r) — never O(n·r).
//
// A range whose endpoints no longer resolve (message deleted, or a stale id
// from a corrupted write) is skipped with a warning instead of failing the
// computation: partial history must never block progress.
func Uncovered(messages []store.Message, ranges []store.TicketRange, logger *slog.Logger) []store.Message {
	if len(messages) == 0 {
		return nil
	}

	pos := make(map[string]int, len(messages))
	for i, m := range messages {
		pos[m.ID] = i
	}

	covered := make([]bool, len(messages))
	for _, r := range ranges {
		start, okStart := pos[r.StartMessageID]
		end, okEnd := pos[r.EndMessageID]
		if !okStart || !okEnd {
			logger.Warn("skipping unresolvable ticket range",
				"ticket_id", r.TicketID,
				"start_message_id", r.StartMessageID,
				"end_message_id", r.EndMessageID,
			)
			continue
		}
		if start > end {
			logger.Warn("skipping inverted ticket range",
				"ticket_id", r.TicketID,
				"start", start,
				"end", end,
			)
			continue
		}
		for i := start; i <= end; i++ {
			covered[i] = true
		}
	}

	var out []store.Message
	for i, m := range messages {
		if !covered[i] {
			out = append(out, m)
		}
	}
	return out
}

// SelectBacklog filters to conversations whose unanalyzed message count has
// reached the threshold. Pure filter; order is preserved.
func SelectBacklog(convs []store.Conversation, threshold int) []store.Conversation {
	var out []store.Conversation
	for _, c := range convs {
		if c.Cursor().Backlog() >= threshold {
			out = append(out, c)
		}
	}
	return out
}
