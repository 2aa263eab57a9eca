package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matsen/slackscan/internal/config"
	"github.com/matsen/slackscan/internal/logging"
	"github.com/matsen/slackscan/internal/report"
	"github.com/matsen/slackscan/internal/slackapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService serves fixed pages and counts every call.
type stubService struct {
	mu      sync.Mutex
	pages   map[slackapi.Cursor]slackapi.Page
	pageErr map[slackapi.Cursor]error
	calls   int
	joined  []string
}

func (s *stubService) ListChannelsPage(_ context.Context, cursor slackapi.Cursor) (slackapi.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.pageErr[cursor]; err != nil {
		return slackapi.Page{}, err
	}
	return s.pages[cursor], nil
}

func (s *stubService) LatestMessage(context.Context, string) (slackapi.Latest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return slackapi.Latest{}, nil
}

func (s *stubService) JoinChannel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.joined = append(s.joined, id)
	return nil
}

type harness struct {
	env         runEnv
	stdout      bytes.Buffer
	stderr      bytes.Buffer
	constructed int
	cfg         *config.Config
}

func newHarness(t *testing.T, vars map[string]string, svc slackapi.Service) *harness {
	t.Helper()
	if vars == nil {
		vars = map[string]string{}
	}
	if _, ok := vars["XDG_CONFIG_HOME"]; !ok {
		vars["XDG_CONFIG_HOME"] = t.TempDir()
	}
	h := &harness{}
	h.env = runEnv{
		getenv: func(k string) string { return vars[k] },
		stdout: &h.stdout,
		stderr: &h.stderr,
		newService: func(cfg *config.Config, _ *logging.Logger) slackapi.Service {
			h.constructed++
			h.cfg = cfg
			return svc
		},
	}
	return h
}

func quietFlags() scanFlags {
	return scanFlags{logLevel: "silent", changed: map[string]bool{"log-level": true}}
}

func TestRunScan_MissingToken(t *testing.T) {
	svc := &stubService{}
	h := newHarness(t, nil, svc)

	code := runScan(context.Background(), quietFlags(), h.env)

	assert.Equal(t, ExitConfigError, code)
	assert.Equal(t, 0, h.constructed, "no client is built without a token")
	assert.Equal(t, 0, svc.calls)
	assert.Equal(t, "error: SLACK_TOKEN not found in environment variables\n", h.stderr.String())
	assert.Empty(t, h.stdout.String())
}

func TestRunScan_MissingTokenJSON(t *testing.T) {
	h := newHarness(t, nil, &stubService{})
	f := quietFlags()
	f.json = true

	code := runScan(context.Background(), f, h.env)

	assert.Equal(t, ExitConfigError, code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &resp))
	assert.Equal(t, "SLACK_TOKEN not found in environment variables", resp.Error)
}

func TestRunScan_TextReport(t *testing.T) {
	svc := &stubService{pages: map[slackapi.Cursor]slackapi.Page{
		"":   {Channels: []slackapi.Channel{{ID: "C1", Name: "general", MemberCount: 3}}, NextCursor: "p2"},
		"p2": {Channels: []slackapi.Channel{{ID: "G1", Name: "secret", IsPrivate: true}}},
	}}
	h := newHarness(t, map[string]string{config.TokenEnv: "xoxb-test"}, svc)

	code := runScan(context.Background(), quietFlags(), h.env)

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, 1, h.constructed)
	out := h.stdout.String()
	assert.True(t, strings.HasPrefix(out, "Found 2 channels:\n"))
	assert.Equal(t, 2, strings.Count(out, strings.Repeat("-", 50)+"\n"))
	assert.Less(t, strings.Index(out, "Channel ID: C1"), strings.Index(out, "Channel ID: G1"))
	assert.Contains(t, out, "Join Status: Joined successfully")
	assert.Contains(t, out, "Join Status: Cannot automatically join private channel: secret")
	assert.Equal(t, []string{"C1"}, svc.joined)
}

func TestRunScan_PageFaultExitCode(t *testing.T) {
	svc := &stubService{
		pages:   map[slackapi.Cursor]slackapi.Page{"": {Channels: []slackapi.Channel{{ID: "C1", Name: "general"}}, NextCursor: "p2"}},
		pageErr: map[slackapi.Cursor]error{"p2": &slackapi.ServiceError{Op: "conversations.list", Code: "invalid_auth"}},
	}
	h := newHarness(t, map[string]string{config.TokenEnv: "xoxb-test"}, svc)

	code := runScan(context.Background(), quietFlags(), h.env)

	assert.Equal(t, ExitFetchError, code)
	assert.Equal(t, "Error fetching channels: invalid_auth\n", h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Found 1 channels:")
	assert.Contains(t, h.stdout.String(), "Channel ID: C1")
}

func TestRunScan_JSONReport(t *testing.T) {
	svc := &stubService{pages: map[slackapi.Cursor]slackapi.Page{
		"": {Channels: []slackapi.Channel{{ID: "C1", Name: "general"}}},
	}}
	h := newHarness(t, map[string]string{config.TokenEnv: "xoxb-test"}, svc)
	f := quietFlags()
	f.json = true
	f.noJoin = true

	code := runScan(context.Background(), f, h.env)
	require.Equal(t, ExitSuccess, code)

	var doc report.Document
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &doc))
	assert.NotEmpty(t, doc.RunID)
	require.Len(t, doc.Channels, 1)
	assert.Equal(t, "disabled", doc.Channels[0].Join.Status)
	assert.Equal(t, 1, doc.Summary.Joins["disabled"])
	assert.Empty(t, svc.joined)
}

func TestRunScan_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 8\ncall_timeout: 5s\nrate_limit: 3\n"), 0644))

	h := newHarness(t, map[string]string{config.TokenEnv: "xoxb-test"}, &stubService{})
	f := quietFlags()
	f.configPath = path
	f.workers = 2
	f.timeout = 30 * time.Second // default value, not given explicitly
	f.changed["workers"] = true

	require.Equal(t, ExitSuccess, runScan(context.Background(), f, h.env))
	require.NotNil(t, h.cfg)
	assert.Equal(t, 2, h.cfg.Workers)
	assert.Equal(t, 5*time.Second, h.cfg.CallTimeout)
	assert.Equal(t, 3.0, h.cfg.RateLimit)
}

func TestRunScan_DefaultConfigPathFromXDG(t *testing.T) {
	xdg := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "slackscan"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "slackscan", "config.yml"), []byte("workers: 6\n"), 0644))

	h := newHarness(t, map[string]string{config.TokenEnv: "xoxb-test", "XDG_CONFIG_HOME": xdg}, &stubService{})

	require.Equal(t, ExitSuccess, runScan(context.Background(), quietFlags(), h.env))
	assert.Equal(t, 6, h.cfg.Workers)
}

func TestRunScan_InvalidFlag(t *testing.T) {
	h := newHarness(t, map[string]string{config.TokenEnv: "xoxb-test"}, &stubService{})
	f := quietFlags()
	f.workers = 0
	f.changed["workers"] = true

	code := runScan(context.Background(), f, h.env)

	assert.Equal(t, ExitConfigError, code)
	assert.Equal(t, 0, h.constructed)
	assert.Contains(t, h.stderr.String(), "workers must be at least 1")
}

func TestRunScan_AgainstSlackAPI(t *testing.T) {
	at := time.Unix(1737990123, 0)
	var mu sync.Mutex
	calls := map[string]int{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		method := strings.TrimPrefix(r.URL.Path, "/")
		mu.Lock()
		calls[method]++
		mu.Unlock()

		var body map[string]any
		switch method {
		case "conversations.list":
			if r.Form.Get("cursor") == "" {
				body = map[string]any{
					"ok":                true,
					"channels":          []map[string]any{{"id": "C1", "name": "general", "num_members": 3}},
					"response_metadata": map[string]any{"next_cursor": "p2"},
				}
			} else {
				body = map[string]any{
					"ok":                true,
					"channels":          []map[string]any{{"id": "C2", "name": "secret", "is_private": true, "num_members": 2}},
					"response_metadata": map[string]any{"next_cursor": ""},
				}
			}
		case "conversations.history":
			if r.Form.Get("channel") == "C1" {
				body = map[string]any{"ok": true, "messages": []map[string]any{{"type": "message", "ts": "1737990123.000200"}}}
			} else {
				body = map[string]any{"ok": true, "messages": []map[string]any{}}
			}
		case "conversations.join":
			body = map[string]any{"ok": true, "channel": map[string]any{"id": r.Form.Get("channel")}}
		default:
			body = map[string]any{"ok": false, "error": "unknown_method"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: "+srv.URL+"\n"), 0644))

	var stdout, stderr bytes.Buffer
	env := runEnv{
		getenv:     func(k string) string { return map[string]string{config.TokenEnv: "xoxb-test"}[k] },
		stdout:     &stdout,
		stderr:     &stderr,
		newService: newSlackService,
	}
	f := quietFlags()
	f.configPath = path

	code := runScan(context.Background(), f, env)
	require.Equal(t, ExitSuccess, code, stderr.String())

	out := stdout.String()
	assert.True(t, strings.HasPrefix(out, "Found 2 channels:\n"))
	assert.Contains(t, out, "Channel Name: general\nChannel ID: C1\nIs Private: false\nMember Count: 3\n"+
		"Last Message Date: "+at.Local().Format("2006-01-02 15:04:05")+"\nJoin Status: Joined successfully\n")
	assert.Contains(t, out, "Channel Name: secret\nChannel ID: C2\nIs Private: true\nMember Count: 2\n"+
		"Last Message Date: No messages\nJoin Status: Cannot automatically join private channel: secret\n")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls["conversations.list"])
	assert.Equal(t, 2, calls["conversations.history"])
	assert.Equal(t, 1, calls["conversations.join"], "private channels are never joined")
}
