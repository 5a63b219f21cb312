package coverage

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/saleops/pagepulse/internal/store"
)

func mkMessages(n int) []store.Message {
	base := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	out := make([]store.Message, n)
	for i := range out {
		out[i] = store.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: "conv_1",
			Content:        fmt.Sprintf("message %d", i),
			InsertedAt:     base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func ids(msgs []store.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestUncovered_NoRangesReturnsEverything(t *testing.T) {
	msgs := mkMessages(5)
	got := Uncovered(msgs, nil, slog.Default())
	if len(got) != 5 {
		t.Fatalf("expected all 5 messages, got %d", len(got))
	}
	for i := range got {
		if got[i].ID != msgs[i].ID {
			t.Errorf("order changed at %d: %s", i, got[i].ID)
		}
	}
}

func TestUncovered_FullRangeReturnsNothing(t *testing.T) {
	msgs := mkMessages(5)
	ranges := []store.TicketRange{{TicketID: "tkt_1", StartMessageID: "m0", EndMessageID: "m4"}}
	if got := Uncovered(msgs, ranges, slog.Default()); len(got) != 0 {
		t.Errorf("expected empty, got %v", ids(got))
	}
}

func TestUncovered_PrefixCovered(t *testing.T) {
	// 10 messages, one closed ticket over indices 0-4 — expect 5-9 in order.
	msgs := mkMessages(10)
	ranges := []store.TicketRange{{TicketID: "tkt_1", StartMessageID: "m0", EndMessageID: "m4"}}

	got := Uncovered(msgs, ranges, slog.Default())
	want := []string{"m5", "m6", "m7", "m8", "m9"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestUncovered_MultipleRangesWithHole(t *testing.T) {
	msgs := mkMessages(10)
	ranges := []store.TicketRange{
		{TicketID: "tkt_1", StartMessageID: "m0", EndMessageID: "m2"},
		{TicketID: "tkt_2", StartMessageID: "m6", EndMessageID: "m8"},
	}

	got := Uncovered(msgs, ranges, slog.Default())
	want := []string{"m3", "m4", "m5", "m9"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestUncovered_UnresolvableRangeSkipped(t *testing.T) {
	// A stale end id must not fail the computation, and the other range
	// still applies.
	msgs := mkMessages(10)
	ranges := []store.TicketRange{
		{TicketID: "tkt_stale", StartMessageID: "m1", EndMessageID: "deleted_id"},
		{TicketID: "tkt_ok", StartMessageID: "m0", EndMessageID: "m4"},
	}

	got := Uncovered(msgs, ranges, slog.Default())
	want := []string{"m5", "m6", "m7", "m8", "m9"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestUncovered_OverlappingRanges(t *testing.T) {
	msgs := mkMessages(6)
	ranges := []store.TicketRange{
		{TicketID: "tkt_1", StartMessageID: "m0", EndMessageID: "m3"},
		{TicketID: "tkt_2", StartMessageID: "m2", EndMessageID: "m4"},
	}

	got := Uncovered(msgs, ranges, slog.Default())
	if len(got) != 1 || got[0].ID != "m5" {
		t.Errorf("expected only m5, got %v", ids(got))
	}
}

func TestUncovered_EmptyMessages(t *testing.T) {
	if got := Uncovered(nil, []store.TicketRange{{StartMessageID: "a", EndMessageID: "b"}}, slog.Default()); got != nil {
		t.Errorf("expected nil, got %v", ids(got))
	}
}

func TestSelectBacklog(t *testing.T) {
	convs := []store.Conversation{
		{ID: "a", MessageCountTotal: 40, LastAnalyzedCount: 10}, // backlog 30
		{ID: "b", MessageCountTotal: 40, LastAnalyzedCount: 20}, // backlog 20
		{ID: "c", MessageCountTotal: 25, LastAnalyzedCount: 0},  // backlog 25
		{ID: "d", MessageCountTotal: 10, LastAnalyzedCount: 10}, // backlog 0
	}

	got := SelectBacklog(convs, 25)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("expected [a c], got %+v", got)
	}

	if got := SelectBacklog(nil, 25); len(got) != 0 {
		t.Errorf("expected empty selection, got %+v", got)
	}
}
