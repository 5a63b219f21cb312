package store

import (
	"context"
	"fmt"
	"time"

	"github.com/saleops/pagepulse/internal/ticket"
)

// Conversation is one customer's page-chat thread plus its analysis cursor.
type Conversation struct {
	ID                  string
	PageID              string
	CustomerName        string
	MessageCountTotal   int
	LastAnalyzedCount   int
	ActiveTicketID      string // empty when no ticket is open
	ActiveTicketSummary string
}

// Cursor converts the persisted columns into the lifecycle cursor.
func (c Conversation) Cursor() ticket.Cursor {
	return ticket.Cursor{
		ConversationID:    c.ID,
		MessageCountTotal: c.MessageCountTotal,
		LastAnalyzedCount: c.LastAnalyzedCount,
		ActiveTicketID:    c.ActiveTicketID,
	}
}

// Message is one stored chat message. IsAutoReply and HasRiskFlag are
// derived by analysis; everything else is immutable once scraped.
type Message struct {
	ID             string
	ConversationID string
	SenderName     string
	Content        string
	IsFromShop     bool
	InsertedAt     time.Time
	IsAutoReply    bool
	HasRiskFlag    bool
}

// ListConversations returns every conversation with its cursor, newest
// activity first. The batch selector filters this down to the backlog.
func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, page_id, COALESCE(customer_name, ''), message_count_total,
		       last_analyzed_message_count, COALESCE(active_ticket_id, ''),
		       COALESCE(active_ticket_summary, '')
		FROM conversations
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.PageID, &c.CustomerName, &c.MessageCountTotal,
			&c.LastAnalyzedCount, &c.ActiveTicketID, &c.ActiveTicketSummary); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversation re-reads one conversation's current cursor state. Each
// batch does this rather than trusting anything cached in process.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, page_id, COALESCE(customer_name, ''), message_count_total,
		       last_analyzed_message_count, COALESCE(active_ticket_id, ''),
		       COALESCE(active_ticket_summary, '')
		FROM conversations WHERE id = $1`, id).
		Scan(&c.ID, &c.PageID, &c.CustomerName, &c.MessageCountTotal,
			&c.LastAnalyzedCount, &c.ActiveTicketID, &c.ActiveTicketSummary)
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

// GetMessages returns a conversation's full message sequence in
// chronological order.
func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, COALESCE(sender_name, ''), content, is_from_shop,
		       inserted_at, is_auto_reply, has_risk_flag
		FROM messages
		WHERE conversation_id = $1
		ORDER BY inserted_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get messages for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderName, &m.Content,
			&m.IsFromShop, &m.InsertedAt, &m.IsAutoReply, &m.HasRiskFlag); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
