package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matsen/slackscan/internal/logging"
	"github.com/matsen/slackscan/internal/slackapi"
)

// DefaultWorkers is the enrichment concurrency when none is configured.
const DefaultWorkers = 4

// Options configures a Scanner.
type Options struct {
	Workers int  // enrichment concurrency; 1 is fully sequential
	Join    bool // attempt conversations.join on public channels
	RunID   string
	Logger  *logging.Logger
}

// Scanner runs one enumeration + enrichment pass.
type Scanner struct {
	svc      slackapi.Service
	enricher *Enricher
	workers  int
	runID    string
	log      *logging.Logger
}

// New creates a Scanner over svc.
func New(svc slackapi.Service, opts Options) *Scanner {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log = log.Sub("scan").With("run_id", runID)

	return &Scanner{
		svc:      svc,
		enricher: NewEnricher(svc, opts.Join, log),
		workers:  workers,
		runID:    runID,
		log:      log,
	}
}

// RunID identifies this scan in logs and JSON output.
func (s *Scanner) RunID() string { return s.runID }

// Run enumerates every page, then enriches each channel on a bounded pool and
// hands results to sink in enumeration order. A page fetch failure stops
// enumeration but the channels already listed are still enriched and
// reported; it is returned in Summary.Fault. The returned error is only a
// sink failure.
func (s *Scanner) Run(ctx context.Context, sink Sink) (Summary, error) {
	start := time.Now()

	pager := NewPager(s.svc)
	channels, fault := pager.All(ctx)
	if fault != nil {
		s.log.Warn().Int("page", fault.Page).Str("reason", fault.Reason()).Int("channels", len(channels)).
			Msg("channel enumeration stopped early")
	}
	s.log.Debug().Int("channels", len(channels)).Int("pages", pager.Pages()).Msg("enumeration finished")

	summary := Summary{
		RunID: s.runID,
		Total: len(channels),
		Pages: pager.Pages(),
		Joins: make(map[JoinKind]int),
		Fault: fault,
	}

	if err := sink.Begin(len(channels), fault); err != nil {
		return summary, fmt.Errorf("writing report header: %w", err)
	}

	var sinkErr error
	for r := range s.enrichAll(ctx, channels) {
		summary.Joins[r.Join.Kind]++
		if r.Activity.Kind == ActivityUnavailable {
			summary.Unavailable++
		}
		if sinkErr == nil {
			if err := sink.Channel(r); err != nil {
				sinkErr = fmt.Errorf("writing channel %s: %w", r.Channel.ID, err)
			}
		}
	}

	summary.Elapsed = time.Since(start)
	if sinkErr != nil {
		return summary, sinkErr
	}
	if err := sink.End(summary); err != nil {
		return summary, fmt.Errorf("writing report summary: %w", err)
	}
	return summary, nil
}

// enrichAll enriches channels with at most s.workers calls in flight and
// yields results in input order. Each worker writes only its own index, so
// every result stays attached to its channel.
func (s *Scanner) enrichAll(ctx context.Context, channels []slackapi.Channel) <-chan Result {
	out := make(chan Result)
	results := make([]Result, len(channels))
	done := make([]chan struct{}, len(channels))
	for i := range done {
		done[i] = make(chan struct{})
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	go func() {
		for i, ch := range channels {
			sem <- struct{}{} // acquire in input order so early channels finish first
			wg.Add(1)
			go func(idx int, ch slackapi.Channel) {
				defer wg.Done()
				defer func() { <-sem }()
				defer close(done[idx])
				results[idx] = s.enricher.Enrich(ctx, ch)
			}(i, ch)
		}
		wg.Wait()
	}()

	go func() {
		defer close(out)
		for i := range channels {
			<-done[i]
			out <- results[i]
		}
	}()

	return out
}
