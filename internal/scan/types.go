// Package scan enumerates Slack channels page by page, enriches each one with
// its last activity and a join attempt, and streams the results to a Sink.
package scan

import (
	"fmt"
	"time"

	"github.com/matsen/slackscan/internal/slackapi"
)

// TimeLayout is the rendering of a last-message timestamp, in local time.
const TimeLayout = "2006-01-02 15:04:05"

// ActivityKind tags an Activity.
type ActivityKind int

const (
	ActivityTimestamp ActivityKind = iota + 1
	ActivityNoMessages
	ActivityUnavailable
)

func (k ActivityKind) String() string {
	switch k {
	case ActivityTimestamp:
		return "timestamp"
	case ActivityNoMessages:
		return "no_messages"
	case ActivityUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Activity is the last-message status of a channel.
// At is set for ActivityTimestamp, Reason for ActivityUnavailable.
type Activity struct {
	Kind   ActivityKind
	At     time.Time
	Reason string
}

// Text renders the status for the report.
func (a Activity) Text() string {
	switch a.Kind {
	case ActivityTimestamp:
		return a.At.Local().Format(TimeLayout)
	case ActivityNoMessages:
		return "No messages"
	case ActivityUnavailable:
		return "Unable to fetch messages: " + a.Reason
	default:
		return "Unknown"
	}
}

// JoinKind tags a Join.
type JoinKind int

const (
	JoinJoined JoinKind = iota + 1
	JoinAlreadyMember
	JoinPrivateSkipped
	JoinDenied
	JoinTransientFailure
	JoinDisabled
)

// JoinKinds lists every JoinKind in report order.
var JoinKinds = []JoinKind{
	JoinJoined, JoinAlreadyMember, JoinPrivateSkipped, JoinDenied, JoinTransientFailure, JoinDisabled,
}

func (k JoinKind) String() string {
	switch k {
	case JoinJoined:
		return "joined"
	case JoinAlreadyMember:
		return "already_member"
	case JoinPrivateSkipped:
		return "private_skipped"
	case JoinDenied:
		return "denied"
	case JoinTransientFailure:
		return "transient_failure"
	case JoinDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Join is the membership outcome for a channel. Reason is the verbatim Slack
// code (or error text) for JoinDenied and JoinTransientFailure.
type Join struct {
	Kind   JoinKind
	Reason string
}

// Text renders the status for the report. channelName is used by the
// private-channel message.
func (j Join) Text(channelName string) string {
	switch j.Kind {
	case JoinJoined:
		return "Joined successfully"
	case JoinAlreadyMember:
		return "Already a member"
	case JoinPrivateSkipped:
		return "Cannot automatically join private channel: " + channelName
	case JoinDenied:
		return "Error joining channel: " + j.Reason
	case JoinTransientFailure:
		return "Temporary failure joining channel: " + j.Reason
	case JoinDisabled:
		return "Join disabled"
	default:
		return "Failed to join"
	}
}

// Result is one enriched channel.
type Result struct {
	Channel  slackapi.Channel
	Activity Activity
	Join     Join
}

// PageFetchFault ends enumeration early. Channels from earlier pages stay
// valid.
type PageFetchFault struct {
	Page int // 1-based page that failed
	Err  error
}

func (f *PageFetchFault) Error() string {
	return fmt.Sprintf("fetching channel page %d: %s", f.Page, slackapi.ReasonOf(f.Err))
}

func (f *PageFetchFault) Unwrap() error { return f.Err }

// Reason is the Slack code or error text of the failed page fetch.
func (f *PageFetchFault) Reason() string {
	return slackapi.ReasonOf(f.Err)
}

// Summary describes a finished run.
type Summary struct {
	RunID       string
	Total       int
	Pages       int
	Joins       map[JoinKind]int
	Unavailable int // channels whose activity lookup failed
	Fault       *PageFetchFault
	Elapsed     time.Duration
}

// Sink consumes a run. Begin is called once after enumeration, Channel once
// per channel in enumeration order, End once at the end.
type Sink interface {
	Begin(total int, fault *PageFetchFault) error
	Channel(r Result) error
	End(s Summary) error
}
