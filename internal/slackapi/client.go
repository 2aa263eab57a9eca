package slackapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/matsen/slackscan/internal/logging"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

const (
	// DefaultCallTimeout bounds a single Slack call.
	DefaultCallTimeout = 30 * time.Second

	// PageLimit is the largest page conversations.list accepts.
	PageLimit = 1000

	// ChannelTypes is the conversations.list types filter.
	ChannelTypes = "public_channel,private_channel"
)

// Client is a Service backed by the Slack Web API.
type Client struct {
	api         *slack.Client
	httpClient  *http.Client
	apiURL      string
	limiter     *rate.Limiter
	callTimeout time.Duration
	log         *logging.Logger

	mu         sync.Mutex
	pauseUntil time.Time // set from Retry-After on a 429
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIURL points the client at a different Web API root (for testing).
func WithAPIURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" && !strings.HasSuffix(url, "/") {
			url += "/"
		}
		c.apiURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit caps requests per second. Zero or less disables pacing.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithCallTimeout sets the deadline applied to each Slack call.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a Slack client authenticated with a bot token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{},
		limiter:     rate.NewLimiter(rate.Inf, 1),
		callTimeout: DefaultCallTimeout,
		log:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	slackOpts := []slack.Option{slack.OptionHTTPClient(c.httpClient)}
	if c.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(c.apiURL))
	}
	c.api = slack.New(token, slackOpts...)
	return c
}

// ListChannelsPage implements Service.
func (c *Client) ListChannelsPage(ctx context.Context, cursor Cursor) (Page, error) {
	const op = "conversations.list"

	ctx, cancel, err := c.begin(ctx, op)
	if err != nil {
		return Page{}, err
	}
	defer cancel()

	channels, next, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		Cursor: string(cursor),
		Limit:  PageLimit,
		Types:  strings.Split(ChannelTypes, ","),
	})
	if err != nil {
		return Page{}, c.fail(op, err)
	}

	page := Page{
		Channels:   make([]Channel, 0, len(channels)),
		NextCursor: Cursor(next),
	}
	for _, ch := range channels {
		page.Channels = append(page.Channels, fromSlack(ch))
	}
	c.log.Debug().Str("op", op).Int("channels", len(page.Channels)).Bool("more", next != "").Msg("page fetched")
	return page, nil
}

// LatestMessage implements Service.
func (c *Client) LatestMessage(ctx context.Context, channelID string) (Latest, error) {
	const op = "conversations.history"

	ctx, cancel, err := c.begin(ctx, op)
	if err != nil {
		return Latest{}, err
	}
	defer cancel()

	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     1,
	})
	if err != nil {
		return Latest{}, c.fail(op, err)
	}
	if len(resp.Messages) == 0 {
		return Latest{}, nil
	}

	at, err := ParseTimestamp(resp.Messages[0].Timestamp)
	if err != nil {
		return Latest{}, &ServiceError{Op: op, Kind: KindTransport, Err: err}
	}
	return Latest{At: at, Found: true}, nil
}

// JoinChannel implements Service.
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	const op = "conversations.join"

	ctx, cancel, err := c.begin(ctx, op)
	if err != nil {
		return err
	}
	defer cancel()

	_, warning, warnings, err := c.api.JoinConversationContext(ctx, channelID)
	if err != nil {
		return c.fail(op, err)
	}

	// Slack answers a repeat join with ok:true plus a warning.
	if warning == CodeAlreadyInChannel || containsString(warnings, CodeAlreadyInChannel) {
		return apiError(op, CodeAlreadyInChannel, nil)
	}
	return nil
}

// begin waits for the pacing limiter and any Retry-After pause, then returns
// a context bounded by the per-call timeout.
func (c *Client) begin(ctx context.Context, op string) (context.Context, context.CancelFunc, error) {
	if err := c.waitPause(ctx); err != nil {
		return nil, nil, &ServiceError{Op: op, Kind: KindTimeout, Err: err}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, &ServiceError{Op: op, Kind: KindTimeout, Err: err}
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	return callCtx, cancel, nil
}

// fail wraps err and records a Retry-After pause for rate limited calls.
func (c *Client) fail(op string, err error) error {
	se := wrapError(op, err)
	if se.Kind == KindRateLimited && se.RetryAfter > 0 {
		c.mu.Lock()
		until := time.Now().Add(se.RetryAfter)
		if until.After(c.pauseUntil) {
			c.pauseUntil = until
		}
		c.mu.Unlock()
	}
	c.log.Debug().Str("op", op).Str("kind", se.Kind.String()).Str("reason", se.Reason()).Msg("call failed")
	return se
}

// waitPause blocks until a pending Retry-After window has passed.
func (c *Client) waitPause(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Until(c.pauseUntil)
	c.mu.Unlock()
	if wait <= 0 {
		return nil
	}

	c.log.Warn().Dur("wait", wait).Msg("rate limited by Slack, pausing")
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fromSlack maps a slack-go channel onto Channel.
func fromSlack(ch slack.Channel) Channel {
	members := ch.NumMembers
	if members < 0 {
		members = 0
	}
	return Channel{
		ID:          ch.ID,
		Name:        ch.Name,
		IsPrivate:   ch.IsPrivate,
		MemberCount: members,
		IsMember:    ch.IsMember,
		IsArchived:  ch.IsArchived,
	}
}

// ParseTimestamp parses a Slack message timestamp such as "1737990123.000100".
func ParseTimestamp(ts string) (time.Time, error) {
	secStr, fracStr, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, errors.New("invalid timestamp: " + ts)
	}

	var nsec int64
	if fracStr != "" {
		if len(fracStr) > 9 {
			fracStr = fracStr[:9]
		}
		frac, err := strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return time.Time{}, errors.New("invalid timestamp: " + ts)
		}
		for i := len(fracStr); i < 9; i++ {
			frac *= 10
		}
		nsec = frac
	}
	return time.Unix(sec, nsec), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
