package analyzer

import "time"

// Message is one transcript turn submitted to the model.
type Message struct {
	ID          string
	Timestamp   time.Time
	FromShop    bool
	Content     string
	IsAutoReply bool
}

// Canonical customer types.
const (
	CustomerNew       = "New"
	CustomerPotential = "Potential"
	CustomerReturning = "Returning"
	CustomerScheduled = "Scheduled"
	CustomerStudent   = "Student"
	CustomerUnderage  = "Underage"
	CustomerParent    = "Parent"
	CustomerNoIntent  = "No_Intent"
	CustomerSpam      = "Spam"
	CustomerUnknown   = "Unknown"
)

// Canonical ticket outcomes.
const (
	OutcomeBooked      = "Booked"
	OutcomeSold        = "Sold"
	OutcomePending     = "Pending"
	OutcomeRefused     = "Refused"
	OutcomeNoResponse  = "No_Response"
	OutcomeSupportDone = "Support_Done"
	OutcomeSpam        = "Spam"
)

var customerTypes = map[string]bool{
	CustomerNew: true, CustomerPotential: true, CustomerReturning: true,
	CustomerScheduled: true, CustomerStudent: true, CustomerUnderage: true,
	CustomerParent: true, CustomerNoIntent: true, CustomerSpam: true,
	CustomerUnknown: true,
}

var outcomes = map[string]bool{
	OutcomeBooked: true, OutcomeSold: true, OutcomePending: true,
	OutcomeRefused: true, OutcomeNoResponse: true, OutcomeSupportDone: true,
	OutcomeSpam: true,
}

// OutcomeCategory buckets an outcome for the warehouse dimension.
func OutcomeCategory(outcome string) string {
	switch outcome {
	case OutcomeBooked, OutcomeSold, OutcomeSupportDone:
		return "Success"
	case OutcomePending:
		return "Pending"
	default:
		return "Failed"
	}
}

// IsPositiveOutcome reports whether an outcome counts as a win.
func IsPositiveOutcome(outcome string) bool {
	return OutcomeCategory(outcome) == "Success"
}

// CustomerInfo is the model's customer classification.
type CustomerInfo struct {
	Type           string `json:"customer_type"`
	LocationType   string `json:"location_type"` // HCM | Provincial | Unknown
	LocationDetail string `json:"location_detail"`
}

// OutcomeInfo carries the canonical outcome plus a verbatim justification.
type OutcomeInfo struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"outcome_reason"`
}

// RepQuality is the model's read on the staff member handling the window.
type RepQuality struct {
	StaffName      string `json:"staff_name"`
	QualitySummary string `json:"quality_summary"`
}

// RiskFlag marks a policy violation with verbatim evidence.
type RiskFlag struct {
	HasRisk  bool   `json:"has_risk"`
	Evidence string `json:"risk_evidence"`
}

// MessageMark is a per-message judgment keyed by the short transcript index.
type MessageMark struct {
	MessageIndex int  `json:"message_index"`
	IsAutoReply  bool `json:"is_auto_reply"`
	HasRisk      bool `json:"has_risk"`
}

// Result is the structured classification for one batch window.
type Result struct {
	IsTicketClosed bool          `json:"is_ticket_closed"`
	TicketSummary  string        `json:"ticket_summary"`
	Customer       CustomerInfo  `json:"customer"`
	Outcome        OutcomeInfo   `json:"outcome"`
	RepQuality     RepQuality    `json:"rep_quality"`
	Risk           RiskFlag      `json:"risk"`
	Messages       []MessageMark `json:"messages"`
}

// Analysis is a Result with the short message indices resolved back to real
// message identifiers.
type Analysis struct {
	Result
	AutoReplyByID map[string]bool
	RiskByID      map[string]bool
}
