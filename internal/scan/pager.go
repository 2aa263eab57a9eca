package scan

import (
	"context"

	"github.com/matsen/slackscan/internal/slackapi"
)

// Pager walks conversations.list one page at a time. It is single use: a
// new run needs a new Pager.
//
//	p := NewPager(svc)
//	for p.Next(ctx) {
//		for _, ch := range p.Channels() { ... }
//	}
//	if err := p.Err(); err != nil { ... }
type Pager struct {
	svc    slackapi.Service
	cursor slackapi.Cursor
	batch  []slackapi.Channel
	pages  int
	done   bool
	err    *PageFetchFault
}

// NewPager returns a Pager positioned before the first page.
func NewPager(svc slackapi.Service) *Pager {
	return &Pager{svc: svc}
}

// Next fetches the next page. It returns false once the previous page had no
// next cursor, or when a fetch fails; failed fetches are never retried.
func (p *Pager) Next(ctx context.Context) bool {
	p.batch = nil
	if p.done {
		return false
	}

	if err := ctx.Err(); err != nil {
		p.fail(err)
		return false
	}

	page, err := p.svc.ListChannelsPage(ctx, p.cursor)
	if err != nil {
		p.fail(err)
		return false
	}

	p.pages++
	p.batch = page.Channels
	p.cursor = page.NextCursor
	if p.cursor == "" {
		p.done = true
	}
	return true
}

func (p *Pager) fail(err error) {
	p.done = true
	p.err = &PageFetchFault{Page: p.pages + 1, Err: err}
}

// Channels returns the page fetched by the last successful Next.
func (p *Pager) Channels() []slackapi.Channel { return p.batch }

// Pages returns how many pages were fetched successfully.
func (p *Pager) Pages() int { return p.pages }

// Err returns the fault that stopped the pager, or nil if it ran to the end.
func (p *Pager) Err() *PageFetchFault { return p.err }

// All drains the pager. The channels collected before a fault are returned
// together with the fault.
func (p *Pager) All(ctx context.Context) ([]slackapi.Channel, *PageFetchFault) {
	var all []slackapi.Channel
	for p.Next(ctx) {
		all = append(all, p.Channels()...)
	}
	return all, p.Err()
}
