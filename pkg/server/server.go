// Package server exposes a small local HTTP API to inspect and drive the
// running assistant.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"GamePartner/pkg/coordinator"
	"GamePartner/pkg/mailbox"
	"GamePartner/pkg/settings"
	"GamePartner/pkg/types"
	"GamePartner/pkg/vision"
)

const (
	maxMessageBodySize = 64 << 10

	defaultJournalLimit = 20
	maxJournalLimit     = 200
)

type StatusSource interface {
	Status() coordinator.Status
}

type ScreenshotSource interface {
	Latest() (types.Screenshot, error)
	GetScreenshotCount() int
}

// JournalSource lists recorded analyses, newest first.
type JournalSource interface {
	Recent(ctx context.Context, n int) ([]types.AnalysisRecord, error)
}

type Deps struct {
	Coordinator StatusSource
	Screenshots ScreenshotSource
	Journal     JournalSource // nil when the journal could not be opened
	Inbox       *mailbox.Queue[string]
	UI          *mailbox.Queue[types.UIInstruction]
	Settings    settings.Settings // must already be redacted
}

type MessageRequest struct {
	Text string `json:"text"`
}

type StatusResponse struct {
	Screenshots      int     `json:"screenshots"`
	HistoryExchanges int     `json:"historyExchanges"`
	PendingMessages  int     `json:"pendingMessages"`
	InFlight         bool    `json:"inFlight"`
	Completed        int     `json:"completed"`
	Failed           int     `json:"failed"`
	LastError        string  `json:"lastError,omitempty"`
	LastRequestAt    *string `json:"lastRequestAt"`
	LastRequestAgo   string  `json:"lastRequestAgo"`
	CooldownSeconds  float64 `json:"cooldownSeconds"`
}

var overlayActions = map[string]types.InstructionKind{
	"toggle": types.ToggleVisibility,
	"cycle":  types.CyclePosition,
	"input":  types.ShowInput,
}

// NewHandler builds the router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/status", handleStatus(deps))
	r.Post("/message", handleMessage(deps))
	r.Post("/overlay/{action}", handleOverlay(deps))
	r.Get("/settings", handleSettings(deps))
	r.Get("/screenshot/latest", handleLatestScreenshot(deps))
	r.Get("/journal", handleJournal(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := deps.Coordinator.Status()
		resp := StatusResponse{
			Screenshots:      deps.Screenshots.GetScreenshotCount(),
			HistoryExchanges: st.HistoryExchanges,
			PendingMessages:  st.PendingMessages,
			InFlight:         st.InFlight,
			Completed:        st.Completed,
			Failed:           st.Failed,
			LastError:        st.LastError,
			LastRequestAgo:   "never",
			CooldownSeconds:  st.Cooldown.Seconds(),
		}
		if !st.LastRequestAt.IsZero() {
			ts := st.LastRequestAt.Format(time.RFC3339)
			resp.LastRequestAt = &ts
			resp.LastRequestAgo = humanize.Time(st.LastRequestAt)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxMessageBodySize)
		defer r.Body.Close()

		var req MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			httpError(w, http.StatusBadRequest, "text is required")
			return
		}

		deps.Inbox.Put(text)
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "pending": deps.Inbox.Len()})
	}
}

func handleOverlay(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := chi.URLParam(r, "action")
		kind, ok := overlayActions[action]
		if !ok {
			httpError(w, http.StatusBadRequest, "unknown overlay action %q", action)
			return
		}
		deps.UI.Put(types.UIInstruction{Kind: kind})
		writeJSON(w, http.StatusAccepted, map[string]string{"action": kind.String()})
	}
}

func handleSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Settings)
	}
}

func handleLatestScreenshot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shot, err := deps.Screenshots.Latest()
		if errors.Is(err, vision.ErrNoScreenshots) {
			httpError(w, http.StatusNotFound, "no screenshots captured yet")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "reading latest screenshot: %v", err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Captured-At", shot.CapturedAt.Format(time.RFC3339Nano))
		http.ServeFile(w, r, shot.Path)
	}
}

func handleJournal(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Journal == nil {
			httpError(w, http.StatusServiceUnavailable, "session journal is disabled")
			return
		}

		limit := defaultJournalLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxJournalLimit)
		}

		records, err := deps.Journal.Recent(r.Context(), limit)
		if err != nil {
			slog.Error("Reading journal failed", "component", "server", "error", err)
			httpError(w, http.StatusInternalServerError, "reading journal: %v", err)
			return
		}
		if records == nil {
			records = []types.AnalysisRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"analyses": records})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"code":    code,
		},
	})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	logger := slog.Default().With("component", "server")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Control API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("control API: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down control API: %w", err)
	}
	logger.Info("Control API stopped")
	return nil
}
