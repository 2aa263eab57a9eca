package slackapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slack-go/slack"
)

// CodeAlreadyInChannel is the Slack code for joining a channel twice.
const CodeAlreadyInChannel = "already_in_channel"

// CodeRateLimited is the code recorded for HTTP 429 responses.
const CodeRateLimited = "ratelimited"

// Kind classifies a ServiceError.
type Kind int

const (
	// KindAPI is an ok:false response; Code holds the Slack error code.
	KindAPI Kind = iota
	// KindAlreadyMember is the expected outcome of joining a joined channel.
	KindAlreadyMember
	// KindRateLimited is an HTTP 429 from Slack.
	KindRateLimited
	// KindTimeout means the per-call deadline or the run context expired.
	KindTimeout
	// KindTransport covers network, HTTP status and decoding failures.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindAlreadyMember:
		return "already_member"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ServiceError is the failure variant of every Service call.
type ServiceError struct {
	Op         string // Slack method, e.g. "conversations.join"
	Code       string // Slack error code, verbatim; empty for transport failures
	Kind       Kind
	RetryAfter time.Duration // set for KindRateLimited
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Reason is the string shown to operators: the Slack code when there is one,
// otherwise the underlying error text.
func (e *ServiceError) Reason() string {
	if e.Code != "" {
		return e.Code
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown_error"
}

// Transient reports whether the failure may go away on its own.
func (e *ServiceError) Transient() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindTransport:
		return true
	}
	return false
}

// IsAlreadyMember returns true if err is a join of an already joined channel.
func IsAlreadyMember(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind == KindAlreadyMember || se.Code == CodeAlreadyInChannel
	}
	return false
}

// IsTransient returns true if err is a ServiceError that may succeed later.
func IsTransient(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return false
}

// ReasonOf extracts the operator-facing reason from any error.
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Reason()
	}
	return err.Error()
}

// wrapError converts a slack-go error into a ServiceError.
func wrapError(op string, err error) *ServiceError {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return &ServiceError{Op: op, Code: CodeRateLimited, Kind: KindRateLimited, RetryAfter: rl.RetryAfter, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ServiceError{Op: op, Kind: KindTimeout, Err: err}
	}

	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return apiError(op, apiErr.Err, err)
	}

	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		if statusErr.Code == 429 {
			return &ServiceError{Op: op, Code: CodeRateLimited, Kind: KindRateLimited, Err: err}
		}
		return &ServiceError{Op: op, Kind: KindTransport, Err: err}
	}

	return &ServiceError{Op: op, Kind: KindTransport, Err: err}
}

// apiError builds the ServiceError for an ok:false envelope.
func apiError(op, code string, err error) *ServiceError {
	if err == nil {
		err = errors.New(code)
	}
	switch code {
	case CodeAlreadyInChannel:
		return &ServiceError{Op: op, Code: code, Kind: KindAlreadyMember, Err: err}
	case CodeRateLimited, "rate_limited":
		return &ServiceError{Op: op, Code: code, Kind: KindRateLimited, Err: err}
	default:
		return &ServiceError{Op: op, Code: code, Kind: KindAPI, Err: err}
	}
}
