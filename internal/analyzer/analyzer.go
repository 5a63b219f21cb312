// Package analyzer formats batch windows for the external model and parses
// its classification back into domain terms.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const maxOutputTokens = 8192

// generator is the slice of the model client the analyzer needs.
type generator interface {
	GenerateJSON(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

type Analyzer struct {
	llm    generator
	logger *slog.Logger
}

func New(llm generator, logger *slog.Logger) *Analyzer {
	return &Analyzer{llm: llm, logger: logger}
}

// Analyze submits one batch window and returns the parsed classification.
// The transcript uses short 1-based ids (msg_1, msg_2, ...) to keep the
// model's output compact; indices in the response are resolved back to real
// message ids here, and out-of-window indices are dropped with a warning.
func (a *Analyzer) Analyze(ctx context.Context, conversationID, customerName, priorSummary string, window []Message) (*Analysis, error) {
	if len(window) == 0 {
		return nil, fmt.Errorf("empty batch window for conversation %s", conversationID)
	}

	transcript, idsByIndex := FormatTranscript(window)

	if priorSummary == "" {
		priorSummary = "New conversation"
	}
	if customerName == "" {
		customerName = "Unknown"
	}
	prompt := fmt.Sprintf(userPromptTemplate, customerName, priorSummary, transcript)

	a.logger.Info("analyzing batch window",
		"conversation_id", conversationID,
		"window_size", len(window),
		"transcript_len", len(transcript),
	)

	raw, err := a.llm.GenerateJSON(ctx, systemPrompt, prompt, maxOutputTokens)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		a.logger.Error("failed to parse model response",
			"conversation_id", conversationID,
			"error", err,
		)
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	normalize(&res)

	analysis := &Analysis{
		Result:        res,
		AutoReplyByID: make(map[string]bool),
		RiskByID:      make(map[string]bool),
	}
	for _, mark := range res.Messages {
		idx := mark.MessageIndex - 1 // short ids are 1-based
		if idx < 0 || idx >= len(idsByIndex) {
			a.logger.Warn("model reported message index outside window",
				"conversation_id", conversationID,
				"message_index", mark.MessageIndex,
			)
			continue
		}
		analysis.AutoReplyByID[idsByIndex[idx]] = mark.IsAutoReply
		if mark.HasRisk {
			analysis.RiskByID[idsByIndex[idx]] = true
		}
	}

	a.logger.Info("window analyzed",
		"conversation_id", conversationID,
		"customer_type", res.Customer.Type,
		"outcome", res.Outcome.Outcome,
		"ticket_closed", res.IsTicketClosed,
		"has_risk", res.Risk.HasRisk,
	)
	return analysis, nil
}

// FormatTranscript renders a window as prompt lines and returns the real
// message id for each short index:
//
//	[msg_1] [2026-01-10T10:00:00Z] KHÁCH: chào shop
//	[msg_2] [2026-01-10T10:00:05Z] [AUTO] SHOP: Cảm ơn bạn đã liên hệ
func FormatTranscript(window []Message) (string, []string) {
	var sb strings.Builder
	ids := make([]string, len(window))

	for i, m := range window {
		ids[i] = m.ID

		sender := "KHÁCH"
		if m.FromShop {
			sender = "SHOP"
		}
		auto := ""
		if m.IsAutoReply {
			auto = "[AUTO] "
		}
		fmt.Fprintf(&sb, "[msg_%d] [%s] %s%s: %s\n", i+1, m.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), auto, sender, m.Content)
	}
	return sb.String(), ids
}

// normalize maps off-taxonomy values to the canonical sets so downstream
// dimension keys stay closed.
func normalize(res *Result) {
	if !customerTypes[res.Customer.Type] {
		res.Customer.Type = CustomerUnknown
	}
	if !outcomes[res.Outcome.Outcome] {
		res.Outcome.Outcome = OutcomePending
	}
	switch res.Customer.LocationType {
	case "HCM", "Provincial":
	default:
		res.Customer.LocationType = "Unknown"
	}
	if res.RepQuality.StaffName == "" {
		res.RepQuality.StaffName = "Unknown"
	}
}
