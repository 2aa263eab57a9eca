package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/matsen/slackscan/internal/scan"
)

// Document is the JSON report.
type Document struct {
	RunID    string       `json:"run_id"`
	Channels []ChannelRow `json:"channels"`
	Summary  SummaryRow   `json:"summary"`
}

// ChannelRow is one channel in the JSON report.
type ChannelRow struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	IsPrivate   bool        `json:"is_private"`
	MemberCount int         `json:"member_count"`
	IsMember    bool        `json:"is_member"`
	IsArchived  bool        `json:"is_archived"`
	LastMessage ActivityRow `json:"last_message"`
	Join        JoinRow     `json:"join"`
}

// ActivityRow is the last-message status. At is RFC 3339 in UTC.
type ActivityRow struct {
	Status string `json:"status"`
	At     string `json:"at,omitempty"`
	Reason string `json:"reason,omitempty"`
	Text   string `json:"text"`
}

// JoinRow is the join outcome.
type JoinRow struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Text   string `json:"text"`
}

// SummaryRow aggregates the run.
type SummaryRow struct {
	Total       int            `json:"total"`
	Pages       int            `json:"pages"`
	Joins       map[string]int `json:"joins"`
	Unavailable int            `json:"activity_unavailable"`
	Fault       *FaultRow      `json:"fault,omitempty"`
	ElapsedMS   int64          `json:"elapsed_ms"`
}

// FaultRow describes a page fetch that ended enumeration early.
type FaultRow struct {
	Page   int    `json:"page"`
	Reason string `json:"reason"`
}

// JSONEmitter buffers rows and writes one indented document on End.
type JSONEmitter struct {
	w   io.Writer
	doc Document
}

// NewJSON creates a JSONEmitter writing to w.
func NewJSON(w io.Writer) *JSONEmitter {
	return &JSONEmitter{w: w}
}

func (e *JSONEmitter) Begin(total int, _ *scan.PageFetchFault) error {
	e.doc.Channels = make([]ChannelRow, 0, total)
	return nil
}

func (e *JSONEmitter) Channel(r scan.Result) error {
	e.doc.Channels = append(e.doc.Channels, NewChannelRow(r))
	return nil
}

func (e *JSONEmitter) End(s scan.Summary) error {
	e.doc.RunID = s.RunID
	e.doc.Summary = NewSummaryRow(s)
	if e.doc.Channels == nil {
		e.doc.Channels = []ChannelRow{}
	}

	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	return enc.Encode(e.doc)
}

// NewChannelRow converts a scan result.
func NewChannelRow(r scan.Result) ChannelRow {
	ch := r.Channel
	row := ChannelRow{
		ID:          ch.ID,
		Name:        ch.Name,
		IsPrivate:   ch.IsPrivate,
		MemberCount: ch.MemberCount,
		IsMember:    ch.IsMember,
		IsArchived:  ch.IsArchived,
		LastMessage: ActivityRow{
			Status: r.Activity.Kind.String(),
			Reason: r.Activity.Reason,
			Text:   r.Activity.Text(),
		},
		Join: JoinRow{
			Status: r.Join.Kind.String(),
			Reason: r.Join.Reason,
			Text:   r.Join.Text(ch.Name),
		},
	}
	if r.Activity.Kind == scan.ActivityTimestamp {
		row.LastMessage.At = r.Activity.At.UTC().Format(time.RFC3339)
	}
	return row
}

// NewSummaryRow converts a scan summary. Every join status appears in Joins,
// zero counts included.
func NewSummaryRow(s scan.Summary) SummaryRow {
	joins := make(map[string]int, len(scan.JoinKinds))
	for _, k := range scan.JoinKinds {
		joins[k.String()] = s.Joins[k]
	}
	row := SummaryRow{
		Total:       s.Total,
		Pages:       s.Pages,
		Joins:       joins,
		Unavailable: s.Unavailable,
		ElapsedMS:   s.Elapsed.Milliseconds(),
	}
	if s.Fault != nil {
		row.Fault = &FaultRow{Page: s.Fault.Page, Reason: s.Fault.Reason()}
	}
	return row
}
