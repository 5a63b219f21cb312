// Package runner orchestrates one analysis cycle: select conversations with
// enough backlog, compute each one's uncovered window, call the model, and
// apply the ticket lifecycle transition.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saleops/pagepulse/internal/analyzer"
	"github.com/saleops/pagepulse/internal/coverage"
	"github.com/saleops/pagepulse/internal/events"
	"github.com/saleops/pagepulse/internal/store"
	"github.com/saleops/pagepulse/internal/ticket"
)

// Store is the persistence surface the runner needs.
type Store interface {
	ListConversations(ctx context.Context) ([]store.Conversation, error)
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	ListTicketRanges(ctx context.Context, conversationID string) ([]store.TicketRange, error)
	ApplyAnalysis(ctx context.Context, conv store.Conversation, tr ticket.Transition, res *analyzer.Analysis) error
	InsertRun(ctx context.Context, r store.RunRecord) error
}

// Model is the classification surface.
type Model interface {
	Analyze(ctx context.Context, conversationID, customerName, priorSummary string, window []analyzer.Message) (*analyzer.Analysis, error)
}

// Publisher is the event surface. May be nil when NATS is not configured.
type Publisher interface {
	Publish(subject string, data any) error
}

type Options struct {
	BatchThreshold int           // minimum backlog to select a conversation
	WindowMax      int           // cap on messages per model call
	Workers        int           // conversations processed in parallel
	ModelTimeout   time.Duration // per-call bound on the model round trip
}

// Report is the user-visible result of one cycle. Individual conversation
// failures land in Errors; they never fail the cycle.
type Report struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Selected        int       `json:"selected"`
	Analyzed        int       `json:"analyzed"`
	TicketsCreated  int       `json:"tickets_created"`
	TicketsExtended int       `json:"tickets_extended"`
	TicketsClosed   int       `json:"tickets_closed"`
	RiskFlags       int       `json:"risk_flags"`
	Errors          []string  `json:"errors"`
}

type Runner struct {
	store  Store
	model  Model
	events Publisher
	logger *slog.Logger
	opts   Options

	mu       sync.Mutex
	inFlight map[string]bool // conversation ids currently being processed
}

func New(s Store, m Model, ev Publisher, opts Options, logger *slog.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{
		store:    s,
		model:    m,
		events:   ev,
		logger:   logger,
		opts:     opts,
		inFlight: make(map[string]bool),
	}
}

// RunCycle executes one full batch cycle. It returns an error only for
// whole-cycle infrastructure failures; per-conversation failures are
// reported in the Report.
func (r *Runner) RunCycle(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     "run_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12],
		StartedAt: time.Now().UTC(),
	}

	convs, err := r.store.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	selected := coverage.SelectBacklog(convs, r.opts.BatchThreshold)
	report.Selected = len(selected)
	r.logger.Info("cycle starting",
		"run_id", report.RunID,
		"conversations", len(convs),
		"selected", len(selected),
	)

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.opts.Workers)
		rmu sync.Mutex
	)
	for _, conv := range selected {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := r.ProcessConversation(ctx, id)
			rmu.Lock()
			defer rmu.Unlock()
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", id, err))
				return
			}
			if outcome == nil {
				return // nothing uncovered, or another writer held the conversation
			}
			report.Analyzed++
			switch {
			case outcome.Created && outcome.Closed:
				report.TicketsCreated++
				report.TicketsClosed++
			case outcome.Created:
				report.TicketsCreated++
			case outcome.Closed:
				report.TicketsExtended++
				report.TicketsClosed++
			default:
				report.TicketsExtended++
			}
			if outcome.RiskFlagged {
				report.RiskFlags++
			}
		}(conv.ID)
	}
	wg.Wait()

	report.FinishedAt = time.Now().UTC()
	r.finishCycle(ctx, report)
	return report, nil
}

// Outcome describes what one conversation's batch did.
type Outcome struct {
	TicketID    string
	Created     bool
	Closed      bool
	RiskFlagged bool
	WindowSize  int
}

// ProcessConversation runs a single conversation's batch end to end.
// Returns (nil, nil) when there is nothing to do. Same-conversation calls
// are serialized: the cursor advance and the open-ticket extension are
// non-commutative, so a second concurrent writer is rejected up front.
func (r *Runner) ProcessConversation(ctx context.Context, conversationID string) (*Outcome, error) {
	if !r.acquire(conversationID) {
		r.logger.Warn("conversation already in flight, skipping", "conversation_id", conversationID)
		return nil, nil
	}
	defer r.release(conversationID)

	// Re-read the cursor and ticket state; another instance may have moved
	// them since selection.
	conv, err := r.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	msgs, err := r.store.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	ranges, err := r.store.ListTicketRanges(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("read ticket ranges: %w", err)
	}

	window := coverage.Uncovered(msgs, ranges, r.logger)
	if len(window) == 0 {
		r.logger.Debug("no uncovered messages", "conversation_id", conversationID)
		return nil, nil
	}
	if r.opts.WindowMax > 0 && len(window) > r.opts.WindowMax {
		window = window[:r.opts.WindowMax]
	}

	modelWindow := make([]analyzer.Message, len(window))
	for i, m := range window {
		modelWindow[i] = analyzer.Message{
			ID:          m.ID,
			Timestamp:   m.InsertedAt,
			FromShop:    m.IsFromShop,
			Content:     m.Content,
			IsAutoReply: m.IsAutoReply,
		}
	}

	modelCtx := ctx
	if r.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		modelCtx, cancel = context.WithTimeout(ctx, r.opts.ModelTimeout)
		defer cancel()
	}

	// Any failure from here to the store commit abandons the batch with the
	// cursor untouched; the next cycle retries the same window.
	res, err := r.model.Analyze(modelCtx, conversationID, conv.CustomerName, conv.ActiveTicketSummary, modelWindow)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	w := ticket.Window{
		StartMessageID: window[0].ID,
		EndMessageID:   window[len(window)-1].ID,
		Size:           len(window),
	}
	tr, err := ticket.Advance(conv.Cursor(), w, res.IsTicketClosed)
	if err != nil {
		return nil, err
	}

	if err := r.store.ApplyAnalysis(ctx, *conv, tr, res); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}

	r.logger.Info("batch applied",
		"conversation_id", conversationID,
		"ticket_id", tr.TicketID,
		"status", tr.Status,
		"window_size", w.Size,
		"analyzed_count", tr.NewAnalyzedCount,
	)

	outcome := &Outcome{
		TicketID:    tr.TicketID,
		Created:     tr.CreateNew,
		Closed:      tr.Status == ticket.StatusClosed,
		RiskFlagged: res.Risk.HasRisk,
		WindowSize:  w.Size,
	}

	if res.Risk.HasRisk && r.events != nil {
		evt := events.RiskFlagged{
			ConversationID: conversationID,
			TicketID:       tr.TicketID,
			Evidence:       res.Risk.Evidence,
		}
		if key := store.StaffKey(res.RepQuality.StaffName); key != nil {
			evt.StaffKey = *key
		}
		if err := r.events.Publish(events.SubjectRiskFlagged, evt); err != nil {
			r.logger.Error("failed to publish risk event", "error", err)
		}
	}
	return outcome, nil
}

// HandleAnalyzeRequest is the NATS handler for on-demand analysis. An empty
// payload or one without a conversation_id triggers a full cycle.
func (r *Runner) HandleAnalyzeRequest(subject string, data []byte) {
	ctx := context.Background()

	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			r.logger.Error("failed to parse analyze request", "error", err)
			return
		}
	}

	if req.ConversationID != "" {
		if _, err := r.ProcessConversation(ctx, req.ConversationID); err != nil {
			r.logger.Error("on-demand analysis failed",
				"conversation_id", req.ConversationID,
				"error", err,
			)
		}
		return
	}

	if _, err := r.RunCycle(ctx); err != nil {
		r.logger.Error("on-demand cycle failed", "error", err)
	}
}

func (r *Runner) finishCycle(ctx context.Context, report *Report) {
	status := "completed"
	if len(report.Errors) > 0 {
		status = "completed_with_errors"
	}
	rec := store.RunRecord{
		ID:              report.RunID,
		StartedAt:       report.StartedAt,
		FinishedAt:      report.FinishedAt,
		Status:          status,
		Analyzed:        report.Analyzed,
		TicketsCreated:  report.TicketsCreated,
		TicketsExtended: report.TicketsExtended,
		TicketsClosed:   report.TicketsClosed,
		RiskFlags:       report.RiskFlags,
		Errors:          report.Errors,
	}
	if err := r.store.InsertRun(ctx, rec); err != nil {
		r.logger.Error("failed to record run", "run_id", report.RunID, "error", err)
	}

	if r.events != nil {
		if err := r.events.Publish(events.SubjectCycleCompleted, report); err != nil {
			r.logger.Error("failed to publish cycle summary", "error", err)
		}
	}

	r.logger.Info("cycle finished",
		"run_id", report.RunID,
		"analyzed", report.Analyzed,
		"tickets_created", report.TicketsCreated,
		"tickets_extended", report.TicketsExtended,
		"tickets_closed", report.TicketsClosed,
		"errors", len(report.Errors),
	)
}

func (r *Runner) acquire(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[conversationID] {
		return false
	}
	r.inFlight[conversationID] = true
	return true
}

func (r *Runner) release(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, conversationID)
}
