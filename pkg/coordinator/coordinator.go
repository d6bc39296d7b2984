// Package coordinator runs the analysis loop: it drains the message inbox,
// paces automatic analyses, calls the completer and feeds the UI channel.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"GamePartner/pkg/assistant"
	"GamePartner/pkg/mailbox"
	"GamePartner/pkg/types"
)

const (
	// MinCooldown is the floor for the automatic analysis interval.
	MinCooldown = 5 * time.Second
	// DefaultTick is how often PollCycle runs.
	DefaultTick = 100 * time.Millisecond

	recordTimeout = 2 * time.Second
)

// ScreenshotSource is the read side of the screen capture collaborator.
type ScreenshotSource interface {
	GetRecentScreenshots(count int) []types.Screenshot
	GetScreenshotCount() int
}

// ContextProvider supplies the game name and additional context of a request.
type ContextProvider interface {
	GameContext(ctx context.Context) (string, map[string]string)
}

// Recorder persists analysis attempts.
type Recorder interface {
	Record(ctx context.Context, rec types.AnalysisRecord) error
}

type Config struct {
	Cooldown          time.Duration
	Tick              time.Duration
	InitialDelay      time.Duration
	MemoryWindowSize  int
	MaxResponseLength int
}

// Deps are the collaborators of a Coordinator. Context and Recorder are
// optional.
type Deps struct {
	Screenshots ScreenshotSource
	Completer   assistant.Completer
	Inbox       *mailbox.Queue[string]
	UI          *mailbox.Queue[types.UIInstruction]
	Context     ContextProvider
	Recorder    Recorder
}

// Status is a snapshot of the coordinator for the control API.
type Status struct {
	LastRequestAt    time.Time     `json:"lastRequestAt"`
	Cooldown         time.Duration `json:"cooldown"`
	HistoryExchanges int           `json:"historyExchanges"`
	PendingMessages  int           `json:"pendingMessages"`
	InFlight         bool          `json:"inFlight"`
	Completed        int           `json:"completed"`
	Failed           int           `json:"failed"`
	LastError        string        `json:"lastError,omitempty"`
}

// Coordinator owns the conversation history and the request pacing. Only
// the loop goroutine mutates history; readers get copies.
type Coordinator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu            sync.Mutex
	history       []types.ConversationTurn
	lastRequestAt time.Time
	inFlight      bool
	completed     int
	failed        int
	lastError     string

	lifecycleMu sync.Mutex
	stopLoop    context.CancelFunc
	abandon     context.CancelFunc
	done        chan struct{}
}

// New builds a Coordinator. The cooldown is raised to MinCooldown and the
// memory window to at least one exchange.
func New(cfg Config, deps Deps) *Coordinator {
	if cfg.Cooldown < MinCooldown {
		cfg.Cooldown = MinCooldown
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.MemoryWindowSize < 1 {
		cfg.MemoryWindowSize = 1
	}
	if cfg.MaxResponseLength <= 0 {
		cfg.MaxResponseLength = 150
	}
	return &Coordinator{
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default().With("component", "coordinator"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// PollCycle runs one tick: at most one inbox message, otherwise at most one
// automatic analysis when the cooldown has elapsed. Panics are logged and
// end the cycle.
func (c *Coordinator) PollCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("PANIC in poll cycle",
				slog.Any("panic", r),
				slog.String("stack_trace", string(debug.Stack())))
		}
	}()

	if text, ok := c.deps.Inbox.TryGet(); ok {
		c.handleMessage(ctx, text)
		return
	}

	now := c.now()
	c.mu.Lock()
	due := now.Sub(c.lastRequestAt) >= c.cfg.Cooldown
	c.mu.Unlock()
	if !due {
		return
	}

	shot, ok := c.latestScreenshot()
	if !ok {
		c.logger.Debug("No screenshots available, skipping automatic analysis")
		return
	}

	// Pacing holds even if submit fails or panics.
	defer c.markRequest(now)
	_ = c.Submit(ctx, c.buildRequest(ctx, shot, ""))
}

func (c *Coordinator) handleMessage(ctx context.Context, text string) {
	shot, ok := c.latestScreenshot()
	if !ok {
		c.logger.Warn("No screenshots available, dropping user message", "text", text)
		return
	}
	_ = c.Submit(ctx, c.buildRequest(ctx, shot, text))
}

func (c *Coordinator) markRequest(at time.Time) {
	c.mu.Lock()
	c.lastRequestAt = at
	c.mu.Unlock()
}

func (c *Coordinator) latestScreenshot() (types.Screenshot, bool) {
	if c.deps.Screenshots.GetScreenshotCount() == 0 {
		return types.Screenshot{}, false
	}
	shots := c.deps.Screenshots.GetRecentScreenshots(1)
	if len(shots) == 0 {
		return types.Screenshot{}, false
	}
	return shots[len(shots)-1], true
}

func (c *Coordinator) buildRequest(ctx context.Context, shot types.Screenshot, userText string) types.AnalysisRequest {
	req := types.AnalysisRequest{
		Screenshot: shot,
		UserText:   userText,
		History:    c.History(),
	}
	if c.deps.Context != nil {
		req.GameName, req.AdditionalContext = c.deps.Context.GameContext(ctx)
	}
	return req
}

// Submit sends req to the completer. On success the exchange is appended to
// history and the user echo (if any) and the reply are queued for the UI. On
// failure history is untouched and a single error message is queued, unless
// the call was abandoned by cancellation.
func (c *Coordinator) Submit(ctx context.Context, req types.AnalysisRequest) error {
	started := c.now()
	c.setInFlight(true)
	defer c.setInFlight(false)

	content := types.Content{
		Text:      assistant.BuildContent(req, c.cfg.MaxResponseLength),
		ImagePath: req.Screenshot.Path,
	}
	reply, err := c.deps.Completer.Complete(ctx, assistant.SystemPrompt(c.cfg.MaxResponseLength), req.History, content)
	finished := c.now()

	rec := types.AnalysisRecord{
		ID:         c.newID(),
		Trigger:    "user",
		UserText:   req.UserText,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if req.Automatic() {
		rec.Trigger = "auto"
	}

	if err != nil {
		rec.Status = "failed"
		rec.Error = err.Error()
		c.record(ctx, rec)
		c.noteFailure(err)

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			c.logger.Info("Analysis abandoned during shutdown", "trigger", rec.Trigger)
			return err
		}
		c.logger.Warn("Error analyzing game state", "trigger", rec.Trigger, "error", err)
		c.deps.UI.Put(types.AppendError(assistant.UserMessage(err), finished))
		return err
	}

	c.appendExchange(req.UserText, reply)
	if req.UserText != "" {
		c.deps.UI.Put(types.Append(req.UserText, started, false))
	}
	c.deps.UI.Put(types.Append(reply, finished, true))

	rec.Status = "ok"
	rec.Reply = reply
	c.record(ctx, rec)
	c.logger.Info("Analysis complete", "trigger", rec.Trigger, "duration", finished.Sub(started))
	return nil
}

func (c *Coordinator) appendExchange(userText, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history,
		types.ConversationTurn{Role: types.RoleUser, Text: userText},
		types.ConversationTurn{Role: types.RoleAssistant, Text: reply},
	)
	if limit := 2 * c.cfg.MemoryWindowSize; len(c.history) > limit {
		trimmed := make([]types.ConversationTurn, limit)
		copy(trimmed, c.history[len(c.history)-limit:])
		c.history = trimmed
	}
	c.completed++
	c.lastError = ""
}

func (c *Coordinator) noteFailure(err error) {
	c.mu.Lock()
	c.failed++
	c.lastError = err.Error()
	c.mu.Unlock()
}

func (c *Coordinator) setInFlight(v bool) {
	c.mu.Lock()
	c.inFlight = v
	c.mu.Unlock()
}

func (c *Coordinator) record(ctx context.Context, rec types.AnalysisRecord) {
	if c.deps.Recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := c.deps.Recorder.Record(rctx, rec); err != nil {
		c.logger.Warn("Failed to record analysis", "id", rec.ID, "error", err)
	}
}

// History returns a copy of the conversation, oldest turn first.
func (c *Coordinator) History() []types.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return nil
	}
	out := make([]types.ConversationTurn, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		LastRequestAt:    c.lastRequestAt,
		Cooldown:         c.cfg.Cooldown,
		HistoryExchanges: len(c.history) / 2,
		PendingMessages:  c.deps.Inbox.Len(),
		InFlight:         c.inFlight,
		Completed:        c.completed,
		Failed:           c.failed,
		LastError:        c.lastError,
	}
}
