// Package report renders a scan as the plain-text channel listing or as a
// single JSON document.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/matsen/slackscan/internal/scan"
)

// RuleWidth is the width of the separator printed after each channel block.
const RuleWidth = 50

var rule = strings.Repeat("-", RuleWidth)

var (
	_ scan.Sink = (*TextEmitter)(nil)
	_ scan.Sink = (*JSONEmitter)(nil)
)

// TextEmitter streams the human-readable report. Channel blocks go to w as
// they arrive; a page fetch fault goes to errs.
type TextEmitter struct {
	w    io.Writer
	errs io.Writer
}

// NewText creates a TextEmitter. A nil errs sends the fault line to w.
func NewText(w, errs io.Writer) *TextEmitter {
	if errs == nil {
		errs = w
	}
	return &TextEmitter{w: w, errs: errs}
}

func (e *TextEmitter) Begin(total int, fault *scan.PageFetchFault) error {
	if fault != nil {
		if _, err := fmt.Fprintf(e.errs, "Error fetching channels: %s\n", fault.Reason()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(e.w, "Found %d channels:\n", total)
	return err
}

func (e *TextEmitter) Channel(r scan.Result) error {
	ch := r.Channel
	var b strings.Builder
	fmt.Fprintf(&b, "Channel Name: %s\n", ch.Name)
	fmt.Fprintf(&b, "Channel ID: %s\n", ch.ID)
	fmt.Fprintf(&b, "Is Private: %t\n", ch.IsPrivate)
	fmt.Fprintf(&b, "Member Count: %d\n", ch.MemberCount)
	fmt.Fprintf(&b, "Last Message Date: %s\n", r.Activity.Text())
	fmt.Fprintf(&b, "Join Status: %s\n", r.Join.Text(ch.Name))
	b.WriteString(rule)
	b.WriteByte('\n')
	_, err := io.WriteString(e.w, b.String())
	return err
}

// End writes nothing; the text report has no footer.
func (e *TextEmitter) End(scan.Summary) error { return nil }
