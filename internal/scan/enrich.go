package scan

import (
	"context"
	"errors"

	"github.com/matsen/slackscan/internal/logging"
	"github.com/matsen/slackscan/internal/slackapi"
)

// Enricher applies the per-channel policy: look up the last message and try
// to join. The two calls are independent; a failure in one never skips the
// other.
type Enricher struct {
	svc  slackapi.Service
	join bool
	log  *logging.Logger
}

// NewEnricher creates an Enricher. With join false no join call is made and
// public channels report JoinDisabled.
func NewEnricher(svc slackapi.Service, join bool, log *logging.Logger) *Enricher {
	if log == nil {
		log = logging.Nop()
	}
	return &Enricher{svc: svc, join: join, log: log}
}

// Enrich runs both lookups for one channel. It never fails: every remote
// error becomes part of the returned statuses.
func (e *Enricher) Enrich(ctx context.Context, ch slackapi.Channel) Result {
	latest, err := e.svc.LatestMessage(ctx, ch.ID)
	activity := ClassifyActivity(latest, err)
	if err != nil {
		e.log.Debug().Str("channel", ch.ID).Str("reason", activity.Reason).Msg("activity lookup failed")
	}

	return Result{
		Channel:  ch,
		Activity: activity,
		Join:     e.joinStatus(ctx, ch),
	}
}

func (e *Enricher) joinStatus(ctx context.Context, ch slackapi.Channel) Join {
	if ch.IsPrivate {
		return Join{Kind: JoinPrivateSkipped}
	}
	if !e.join {
		return Join{Kind: JoinDisabled}
	}

	err := e.svc.JoinChannel(ctx, ch.ID)
	status := ClassifyJoin(err)
	switch status.Kind {
	case JoinJoined:
		e.log.Info().Str("channel", ch.ID).Str("name", ch.Name).Msg("joined channel")
	case JoinDenied, JoinTransientFailure:
		e.log.Debug().Str("channel", ch.ID).Str("join", status.Kind.String()).Str("reason", status.Reason).Msg("join failed")
	}
	return status
}

// ClassifyActivity maps a LatestMessage outcome onto an Activity.
func ClassifyActivity(latest slackapi.Latest, err error) Activity {
	if err != nil {
		return Activity{Kind: ActivityUnavailable, Reason: slackapi.ReasonOf(err)}
	}
	if !latest.Found {
		return Activity{Kind: ActivityNoMessages}
	}
	return Activity{Kind: ActivityTimestamp, At: latest.At}
}

// ClassifyJoin maps a JoinChannel outcome onto a Join. already_in_channel is
// AlreadyMember; rate limits, timeouts and transport failures are transient;
// every other code is Denied with the code kept verbatim.
func ClassifyJoin(err error) Join {
	if err == nil {
		return Join{Kind: JoinJoined}
	}
	if slackapi.IsAlreadyMember(err) {
		return Join{Kind: JoinAlreadyMember}
	}
	if slackapi.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
		return Join{Kind: JoinTransientFailure, Reason: slackapi.ReasonOf(err)}
	}
	return Join{Kind: JoinDenied, Reason: slackapi.ReasonOf(err)}
}
