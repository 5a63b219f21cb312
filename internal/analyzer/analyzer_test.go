package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeLLM struct {
	response string
	err      error
	prompt   string
	system   string
}

func (f *fakeLLM) GenerateJSON(_ context.Context, system, prompt string, _ int) (string, error) {
	f.system = system
	f.prompt = prompt
	return f.response, f.err
}

func testWindow() []Message {
	base := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	return []Message{
		{ID: "fb_901", Timestamp: base, FromShop: false, Content: "da mình bị mụn"},
		{ID: "fb_902", Timestamp: base.Add(5 * time.Second), FromShop: true, IsAutoReply: true, Content: "Cảm ơn bạn đã liên hệ"},
		{ID: "fb_903", Timestamp: base.Add(2 * time.Minute), FromShop: true, Content: "Mình là Lan, bạn mô tả thêm nhé"},
	}
}

func validResponse() string {
	return `{
		"is_ticket_closed": false,
		"ticket_summary": "Khách hỏi về điều trị mụn",
		"customer": {"customer_type": "Potential", "location_type": "HCM", "location_detail": "Q1"},
		"outcome": {"outcome": "Pending", "outcome_reason": "khách chưa quyết định"},
		"rep_quality": {"staff_name": "Lan", "quality_summary": "tư vấn nhiệt tình"},
		"risk": {"has_risk": false, "risk_evidence": "N/A"},
		"messages": [{"message_index": 2, "is_auto_reply": true}, {"message_index": 3, "is_auto_reply": false, "has_risk": true}]
	}`
}

func TestAnalyze_MapsShortIndicesToRealIDs(t *testing.T) {
	llm := &fakeLLM{response: validResponse()}
	a := New(llm, slog.Default())

	res, err := a.Analyze(context.Background(), "conv_1", "Minh", "", testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.AutoReplyByID["fb_902"] {
		t.Error("expected fb_902 marked auto-reply")
	}
	if auto, ok := res.AutoReplyByID["fb_903"]; !ok || auto {
		t.Errorf("expected fb_903 marked not auto-reply, got %v ok=%v", auto, ok)
	}
	if !res.RiskByID["fb_903"] {
		t.Error("expected fb_903 carried a risk flag")
	}
	if res.RiskByID["fb_902"] {
		t.Error("fb_902 should not carry a risk flag")
	}
	if res.IsTicketClosed {
		t.Error("expected open ticket")
	}
	if res.Customer.Type != "Potential" || res.Outcome.Outcome != "Pending" {
		t.Errorf("classification lost: %+v", res.Result)
	}
}

func TestAnalyze_IndexOutsideWindowIgnored(t *testing.T) {
	resp := strings.Replace(validResponse(), `{"message_index": 3, "is_auto_reply": false, "has_risk": true}`,
		`{"message_index": 99, "is_auto_reply": true}`, 1)
	llm := &fakeLLM{response: resp}
	a := New(llm, slog.Default())

	res, err := a.Analyze(context.Background(), "conv_1", "Minh", "", testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.AutoReplyByID) != 1 {
		t.Errorf("expected only the in-window mark, got %v", res.AutoReplyByID)
	}
}

func TestAnalyze_PromptCarriesShortIDsAndSummary(t *testing.T) {
	llm := &fakeLLM{response: validResponse()}
	a := New(llm, slog.Default())

	if _, err := a.Analyze(context.Background(), "conv_1", "Minh", "đã tư vấn giá", testWindow()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"[msg_1]", "[msg_3]", "[AUTO] SHOP", "KHÁCH: da mình bị mụn", "đã tư vấn giá", "Minh"} {
		if !strings.Contains(llm.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if llm.system == "" {
		t.Error("expected a system prompt")
	}
}

func TestAnalyze_NewConversationSummaryDefault(t *testing.T) {
	llm := &fakeLLM{response: validResponse()}
	a := New(llm, slog.Default())

	if _, err := a.Analyze(context.Background(), "conv_1", "", "", testWindow()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(llm.prompt, "New conversation") {
		t.Error("expected default prior summary")
	}
	if !strings.Contains(llm.prompt, "Unknown") {
		t.Error("expected default customer name")
	}
}

func TestAnalyze_MalformedResponse(t *testing.T) {
	llm := &fakeLLM{response: "sorry, I can't do that"}
	a := New(llm, slog.Default())

	if _, err := a.Analyze(context.Background(), "conv_1", "Minh", "", testWindow()); err == nil {
		t.Fatal("expected error for malformed model output")
	}
}

func TestAnalyze_ModelError(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("transport down")}
	a := New(llm, slog.Default())

	if _, err := a.Analyze(context.Background(), "conv_1", "Minh", "", testWindow()); err == nil {
		t.Fatal("expected error when model call fails")
	}
}

func TestAnalyze_EmptyWindow(t *testing.T) {
	a := New(&fakeLLM{}, slog.Default())
	if _, err := a.Analyze(context.Background(), "conv_1", "Minh", "", nil); err == nil {
		t.Fatal("expected error for empty window")
	}
}

func TestAnalyze_NormalizesOffTaxonomyValues(t *testing.T) {
	var res Result
	if err := json.Unmarshal([]byte(validResponse()), &res); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	res.Customer.Type = "VIP Whale"
	res.Outcome.Outcome = "maybe later"
	res.Customer.LocationType = "Mars"
	res.RepQuality.StaffName = ""
	normalize(&res)

	if res.Customer.Type != CustomerUnknown {
		t.Errorf("customer type: %s", res.Customer.Type)
	}
	if res.Outcome.Outcome != OutcomePending {
		t.Errorf("outcome: %s", res.Outcome.Outcome)
	}
	if res.Customer.LocationType != "Unknown" {
		t.Errorf("location type: %s", res.Customer.LocationType)
	}
	if res.RepQuality.StaffName != "Unknown" {
		t.Errorf("staff name: %s", res.RepQuality.StaffName)
	}
}

func TestOutcomeCategory(t *testing.T) {
	cases := map[string]string{
		OutcomeBooked:      "Success",
		OutcomeSold:        "Success",
		OutcomeSupportDone: "Success",
		OutcomePending:     "Pending",
		OutcomeRefused:     "Failed",
		OutcomeNoResponse:  "Failed",
		OutcomeSpam:        "Failed",
	}
	for outcome, want := range cases {
		if got := OutcomeCategory(outcome); got != want {
			t.Errorf("OutcomeCategory(%s) = %s, want %s", outcome, got, want)
		}
	}
	if !IsPositiveOutcome(OutcomeBooked) || IsPositiveOutcome(OutcomeRefused) {
		t.Error("IsPositiveOutcome miscategorized")
	}
}
