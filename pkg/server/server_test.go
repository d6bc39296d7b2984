package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GamePartner/pkg/coordinator"
	"GamePartner/pkg/mailbox"
	"GamePartner/pkg/settings"
	"GamePartner/pkg/types"
	"GamePartner/pkg/vision"
)

type stubStatus struct {
	st coordinator.Status
}

func (s stubStatus) Status() coordinator.Status { return s.st }

type stubShots struct {
	shot *types.Screenshot
}

func (s stubShots) Latest() (types.Screenshot, error) {
	if s.shot == nil {
		return types.Screenshot{}, vision.ErrNoScreenshots
	}
	return *s.shot, nil
}

func (s stubShots) GetScreenshotCount() int {
	if s.shot == nil {
		return 0
	}
	return 1
}

type stubJournal struct {
	records []types.AnalysisRecord
	asked   []int
}

func (j *stubJournal) Recent(_ context.Context, n int) ([]types.AnalysisRecord, error) {
	j.asked = append(j.asked, n)
	if n < len(j.records) {
		return j.records[:n], nil
	}
	return j.records, nil
}

func newTestDeps(shot *types.Screenshot, st coordinator.Status) Deps {
	cfg := settings.Default()
	cfg.API.ClaudeAPIKey = "sk-secret"
	return Deps{
		Coordinator: stubStatus{st: st},
		Screenshots: stubShots{shot: shot},
		Inbox:       mailbox.New[string](),
		UI:          mailbox.New[types.UIInstruction](),
		Settings:    cfg.Redacted(),
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, NewHandler(newTestDeps(nil, coordinator.Status{})), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	t.Parallel()

	last := time.Now().Add(-3 * time.Second)
	deps := newTestDeps(&types.Screenshot{Path: "x.png"}, coordinator.Status{
		LastRequestAt:    last,
		Cooldown:         10 * time.Second,
		HistoryExchanges: 2,
		Completed:        2,
		Failed:           1,
		LastError:        "remote rate_limit error",
	})

	rec := do(t, NewHandler(deps), http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Screenshots)
	assert.Equal(t, 2, resp.HistoryExchanges)
	assert.Equal(t, 1, resp.Failed)
	assert.InDelta(t, 10.0, resp.CooldownSeconds, 1e-9)
	require.NotNil(t, resp.LastRequestAt)
	assert.Equal(t, last.Format(time.RFC3339), *resp.LastRequestAt)
	assert.Equal(t, "3 seconds ago", resp.LastRequestAgo)
}

func TestStatusNeverRequested(t *testing.T) {
	t.Parallel()

	rec := do(t, NewHandler(newTestDeps(nil, coordinator.Status{})), http.MethodGet, "/status", "")
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.LastRequestAt)
	assert.Equal(t, "never", resp.LastRequestAgo)
}

func TestMessageIsQueued(t *testing.T) {
	t.Parallel()

	deps := newTestDeps(nil, coordinator.Status{})
	h := NewHandler(deps)

	rec := do(t, h, http.MethodPost, "/message", `{"text":"  where is the boss?  "}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	text, ok := deps.Inbox.TryGet()
	require.True(t, ok)
	assert.Equal(t, "where is the boss?", text)

	rec = do(t, h, http.MethodPost, "/message", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/message", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, deps.Inbox.Len())
}

func TestOverlayActions(t *testing.T) {
	t.Parallel()

	deps := newTestDeps(nil, coordinator.Status{})
	h := NewHandler(deps)

	for _, action := range []string{"toggle", "cycle", "input"} {
		rec := do(t, h, http.MethodPost, "/overlay/"+action, "")
		assert.Equal(t, http.StatusAccepted, rec.Code, action)
	}
	rec := do(t, h, http.MethodPost, "/overlay/explode", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var kinds []types.InstructionKind
	for _, in := range deps.UI.Drain() {
		kinds = append(kinds, in.Kind)
	}
	assert.Equal(t, []types.InstructionKind{types.ToggleVisibility, types.CyclePosition, types.ShowInput}, kinds)
}

func TestSettingsAreRedacted(t *testing.T) {
	t.Parallel()

	rec := do(t, NewHandler(newTestDeps(nil, coordinator.Status{})), http.MethodGet, "/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-secret")
	assert.Contains(t, rec.Body.String(), `"claude_api_key":"[redacted]"`)
	assert.Contains(t, rec.Body.String(), `"memory_window_size":5`)
}

func TestLatestScreenshot(t *testing.T) {
	t.Parallel()

	rec := do(t, NewHandler(newTestDeps(nil, coordinator.Status{})), http.MethodGet, "/screenshot/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0o644))
	shot := &types.Screenshot{Path: path, CapturedAt: time.Now()}

	rec = do(t, NewHandler(newTestDeps(shot, coordinator.Status{})), http.MethodGet, "/screenshot/latest", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG fake", rec.Body.String())
}

func TestJournal(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	journal := &stubJournal{records: []types.AnalysisRecord{
		{ID: "b", Trigger: "user", UserText: "hi", Reply: "hello", Status: "ok", StartedAt: started.Add(time.Second)},
		{ID: "a", Trigger: "auto", Status: "failed", Error: "remote network error", StartedAt: started},
	}}
	deps := newTestDeps(nil, coordinator.Status{})
	deps.Journal = journal
	h := NewHandler(deps)

	rec := do(t, h, http.MethodGet, "/journal?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Analyses []types.AnalysisRecord `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Analyses, 1)
	assert.Equal(t, "b", resp.Analyses[0].ID)
	assert.Equal(t, "hello", resp.Analyses[0].Reply)

	rec = do(t, h, http.MethodGet, "/journal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/journal?limit=100000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{1, defaultJournalLimit, maxJournalLimit}, journal.asked)

	for _, bad := range []string{"0", "-3", "many"} {
		rec = do(t, h, http.MethodGet, "/journal?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestJournalDisabled(t *testing.T) {
	t.Parallel()

	rec := do(t, NewHandler(newTestDeps(nil, coordinator.Status{})), http.MethodGet, "/journal", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
