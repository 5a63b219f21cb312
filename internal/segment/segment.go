// Package segment partitions a flat chat export into sessions using a
// time-gap threshold.
package segment

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/saleops/pagepulse/internal/anonymize"
)

// Message is a single timestamped turn from a raw page-chat export.
type Message struct {
	SenderName string `json:"sender_name"`
	Timestamp  string `json:"timestamp"`
	Content    string `json:"content"`
}

// RawLog is the export shape produced by the page scraper.
type RawLog struct {
	Messages []Message `json:"messages"`
}

// Session is a maximal run of messages with no internal gap exceeding the
// threshold. Immutable once built.
type Session struct {
	SessionID    string    `json:"session_id"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages"`
}

// DecodeRawLog parses and validates a raw export. Empty message lists and
// messages missing required fields are rejected up front so segmentation
// never sees a half-formed log.
func DecodeRawLog(r io.Reader) (*RawLog, error) {
	var raw RawLog
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode raw log: %w", err)
	}
	if len(raw.Messages) == 0 {
		return nil, fmt.Errorf("raw log has no messages")
	}
	for i, m := range raw.Messages {
		if m.SenderName == "" || m.Timestamp == "" || m.Content == "" {
			return nil, fmt.Errorf("message %d missing required field", i)
		}
	}
	return &raw, nil
}

// DefaultPrefix returns the session id prefix for a run started now,
// e.g. "sess_20260115T103000".
func DefaultPrefix(now time.Time) string {
	return "sess_" + now.UTC().Format("20060102T150405")
}

// Segment sorts messages by timestamp (stable, so arrival order breaks ties)
// and splits them wherever the gap between consecutive messages exceeds
// threshold. A gap exactly equal to the threshold does not split. Message
// content is redacted before it lands in a session. Any unparseable
// timestamp fails the whole invocation: sort order would be undefined, so
// dropping the message silently is worse than rejecting the batch.
func Segment(messages []Message, threshold time.Duration, prefix string) ([]Session, error) {
	if len(messages) == 0 {
		return []Session{}, nil
	}

	type stamped struct {
		msg Message
		at  time.Time
	}

	stampedMsgs := make([]stamped, len(messages))
	for i, m := range messages {
		at, err := ParseTimestamp(m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		m.Content = anonymize.Redact(m.Content)
		stampedMsgs[i] = stamped{msg: m, at: at}
	}

	sort.SliceStable(stampedMsgs, func(i, j int) bool {
		return stampedMsgs[i].at.Before(stampedMsgs[j].at)
	})

	var runs [][]Message
	var current []Message
	var last time.Time

	for i, sm := range stampedMsgs {
		if i > 0 && sm.at.Sub(last) > threshold {
			if len(current) > 0 {
				runs = append(runs, current)
			}
			current = nil
		}
		current = append(current, sm.msg)
		last = sm.at
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}

	out := make([]Session, 0, len(runs))
	for i, run := range runs {
		out = append(out, Session{
			SessionID:    prefix + "_" + strconv.Itoa(i+1),
			StartTime:    run[0].Timestamp,
			EndTime:      run[len(run)-1].Timestamp,
			MessageCount: len(run),
			Messages:     run,
		})
	}
	return out, nil
}

// ParseTimestamp accepts RFC3339 with or without fractional seconds. A bare
// "Z" suffix is normalized the way the upstream exporter's "+00:00" form is.
func ParseTimestamp(ts string) (time.Time, error) {
	s := strings.ReplaceAll(ts, "Z", "+00:00")
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", ts)
	}
	return t, nil
}
