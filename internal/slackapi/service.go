// Package slackapi wraps the three Slack Web API calls the channel scan needs:
// conversations.list, conversations.history and conversations.join.
package slackapi

import (
	"context"
	"time"
)

// Cursor is the opaque continuation token from response_metadata.next_cursor.
// The empty cursor means "first page" on input and "no more pages" on output.
type Cursor string

// Channel is one entry from conversations.list.
type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsPrivate   bool   `json:"is_private"`
	MemberCount int    `json:"member_count"`
	IsMember    bool   `json:"is_member"`
	IsArchived  bool   `json:"is_archived"`
}

// Page is a single conversations.list response.
type Page struct {
	Channels   []Channel
	NextCursor Cursor
}

// Latest is the outcome of a most-recent-message lookup.
// Found is false when the channel has no messages at all.
type Latest struct {
	At    time.Time
	Found bool
}

// Service is the remote side of a scan. Every failure is returned as a
// *ServiceError.
type Service interface {
	// ListChannelsPage fetches one page of public and private channels.
	// cursor must be empty or a NextCursor returned by an earlier call.
	ListChannelsPage(ctx context.Context, cursor Cursor) (Page, error)

	// LatestMessage returns the timestamp of the newest message in a channel.
	LatestMessage(ctx context.Context, channelID string) (Latest, error)

	// JoinChannel adds the bot to a channel. Joining a channel the bot is
	// already in fails with a ServiceError of KindAlreadyMember.
	JoinChannel(ctx context.Context, channelID string) error
}
