package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matsen/slackscan/internal/slackapi"
)

// fakeService is a scripted slackapi.Service that records every call.
type fakeService struct {
	mu sync.Mutex

	pages    map[slackapi.Cursor]slackapi.Page
	pageErrs map[slackapi.Cursor]error
	latest   map[string]slackapi.Latest
	histErrs map[string]error
	joinErrs map[string]error
	delay    time.Duration

	listCalls []slackapi.Cursor
	histCalls []string
	joinCalls []string

	inFlight    int
	maxInFlight int
}

func newFakeService() *fakeService {
	return &fakeService{
		pages:    make(map[slackapi.Cursor]slackapi.Page),
		pageErrs: make(map[slackapi.Cursor]error),
		latest:   make(map[string]slackapi.Latest),
		histErrs: make(map[string]error),
		joinErrs: make(map[string]error),
	}
}

func (f *fakeService) ListChannelsPage(_ context.Context, cursor slackapi.Cursor) (slackapi.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, cursor)
	if err := f.pageErrs[cursor]; err != nil {
		return slackapi.Page{}, err
	}
	page, ok := f.pages[cursor]
	if !ok {
		return slackapi.Page{}, &slackapi.ServiceError{Op: "conversations.list", Code: "invalid_cursor", Kind: slackapi.KindAPI}
	}
	return page, nil
}

func (f *fakeService) LatestMessage(ctx context.Context, channelID string) (slackapi.Latest, error) {
	f.enter()
	defer f.leave()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return slackapi.Latest{}, &slackapi.ServiceError{Op: "conversations.history", Kind: slackapi.KindTimeout, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.histCalls = append(f.histCalls, channelID)
	if err := f.histErrs[channelID]; err != nil {
		return slackapi.Latest{}, err
	}
	return f.latest[channelID], nil
}

func (f *fakeService) JoinChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinCalls = append(f.joinCalls, channelID)
	return f.joinErrs[channelID]
}

func (f *fakeService) enter() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
}

func (f *fakeService) leave() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
}

func (f *fakeService) joinCount(channelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.joinCalls {
		if id == channelID {
			n++
		}
	}
	return n
}

func apiErr(op, code string) error {
	kind := slackapi.KindAPI
	if code == slackapi.CodeAlreadyInChannel {
		kind = slackapi.KindAlreadyMember
	}
	return &slackapi.ServiceError{Op: op, Code: code, Kind: kind, Err: errors.New(code)}
}

// recordingSink keeps everything a Scanner hands it.
type recordingSink struct {
	begun    int
	total    int
	fault    *PageFetchFault
	results  []Result
	summary  *Summary
	failOn   int // fail Channel after this many results; 0 disables
	channelN int
}

func (s *recordingSink) Begin(total int, fault *PageFetchFault) error {
	s.begun++
	s.total = total
	s.fault = fault
	return nil
}

func (s *recordingSink) Channel(r Result) error {
	s.channelN++
	if s.failOn > 0 && s.channelN > s.failOn {
		return errors.New("disk full")
	}
	s.results = append(s.results, r)
	return nil
}

func (s *recordingSink) End(sum Summary) error {
	s.summary = &sum
	return nil
}

func (s *recordingSink) ids() []string {
	ids := make([]string, len(s.results))
	for i, r := range s.results {
		ids[i] = r.Channel.ID
	}
	return ids
}
