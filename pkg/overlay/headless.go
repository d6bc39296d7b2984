package overlay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"GamePartner/pkg/mailbox"
	"GamePartner/pkg/types"
)

// Headless replaces the terminal overlay with plain line output. Lines read
// from the optional input are treated as submitted messages.
type Headless struct {
	queue  *mailbox.Queue[types.UIInstruction]
	opts   Options
	out    io.Writer
	in     io.Reader
	state  *State
	logger *slog.Logger

	cbMu      sync.Mutex
	onMessage func(string)

	inputDone chan struct{}
}

// NewHeadless creates a pump printing to out. in may be nil.
func NewHeadless(queue *mailbox.Queue[types.UIInstruction], opts Options, out io.Writer, in io.Reader) *Headless {
	opts = opts.withDefaults()
	return &Headless{
		queue:  queue,
		opts:   opts,
		out:    out,
		in:     in,
		state:  NewState(opts.Position, opts.VisibleMessages),
		logger: slog.Default().With("component", "headless"),
	}
}

func (h *Headless) Enqueue(in types.UIInstruction) {
	h.queue.Put(in)
}

func (h *Headless) SetMessageCallback(fn func(string)) {
	h.cbMu.Lock()
	h.onMessage = fn
	h.cbMu.Unlock()
}

// DrainAndApply applies queued instructions and prints appended messages.
func (h *Headless) DrainAndApply() int {
	pending := h.queue.Drain()
	for _, in := range pending {
		h.state.Apply(in)
		if in.Kind != types.AppendMessage {
			continue
		}
		who := "AI"
		switch {
		case in.Message.IsError:
			who = "ERR"
		case !in.Message.IsFromAI:
			who = "You"
		}
		fmt.Fprintf(h.out, "%s %s\n", who, FormatMessage(in.Message))
	}
	return len(pending)
}

// Run pumps the queue until ctx is done, then applies whatever is left.
// When the input implements io.Closer it is closed on return so the reader
// goroutine unblocks. A plain io.Reader blocked in Read keeps its goroutine
// alive until the next line or EOF; its lines are dropped after Run returns.
func (h *Headless) Run(ctx context.Context) error {
	if h.in != nil {
		done := make(chan struct{})
		h.inputDone = done
		go func() {
			defer close(done)
			h.readInput(ctx)
		}()
		defer h.closeInput()
	}

	ticker := time.NewTicker(h.opts.PumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.DrainAndApply()
			return nil
		case <-ticker.C:
			h.DrainAndApply()
		}
	}
}

func (h *Headless) readInput(ctx context.Context) {
	scanner := bufio.NewScanner(h.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		h.cbMu.Lock()
		fn := h.onMessage
		h.cbMu.Unlock()
		if fn != nil {
			fn(text)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		h.logger.Warn("Reading input failed", "error", err)
	}
}

func (h *Headless) closeInput() {
	c, ok := h.in.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		h.logger.Debug("Closing input failed", "error", err)
	}
}
