// Package overlay renders the assistant's chat in the terminal and turns
// hotkeys into UI instructions.
package overlay

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"GamePartner/pkg/mailbox"
	"GamePartner/pkg/types"
)

// DefaultPumpInterval is how often queued instructions are applied.
const DefaultPumpInterval = 50 * time.Millisecond

// Surface is what the rest of the program needs from a UI.
type Surface interface {
	Enqueue(in types.UIInstruction)
	SetMessageCallback(fn func(string))
	Run(ctx context.Context) error
}

type Options struct {
	Position        Position
	VisibleMessages int
	Width           int
	PumpInterval    time.Duration
}

func (o Options) withDefaults() Options {
	if o.VisibleMessages < 1 {
		o.VisibleMessages = 5
	}
	if o.Width < 20 {
		o.Width = 60
	}
	if o.PumpInterval <= 0 {
		o.PumpInterval = DefaultPumpInterval
	}
	return o
}

type styles struct {
	panel     lipgloss.Style
	title     lipgloss.Style
	timestamp lipgloss.Style
	ai        lipgloss.Style
	user      lipgloss.Style
	err       lipgloss.Style
	footer    lipgloss.Style
	hint      lipgloss.Style
}

func newStyles(width int) styles {
	muted := lipgloss.Color("#888888")
	return styles{
		panel: lipgloss.NewStyle().
			Width(width).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#01cdfe")),
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#05ffa1")),
		timestamp: lipgloss.NewStyle().Foreground(muted),
		ai:        lipgloss.NewStyle().Foreground(lipgloss.Color("#f3f3ff")),
		user:      lipgloss.NewStyle().Foreground(lipgloss.Color("#01cdfe")),
		err:       lipgloss.NewStyle().Foreground(lipgloss.Color("#ff71ce")).Bold(true),
		footer:    lipgloss.NewStyle().Foreground(muted).Italic(true),
		hint:      lipgloss.NewStyle().Foreground(muted).Faint(true),
	}
}

type pumpMsg time.Time

// Overlay is a bubbletea model. Enqueue and SetMessageCallback are safe from
// any goroutine; everything else runs on the program's goroutine.
type Overlay struct {
	queue  *mailbox.Queue[types.UIInstruction]
	opts   Options
	styles styles
	logger *slog.Logger

	cbMu      sync.Mutex
	onMessage func(string)

	state  *State
	input  textinput.Model
	width  int
	height int
}

// New creates an overlay draining queue.
func New(queue *mailbox.Queue[types.UIInstruction], opts Options) *Overlay {
	opts = opts.withDefaults()

	ti := textinput.New()
	ti.Placeholder = "Ask your game partner..."
	ti.Prompt = "> "
	ti.CharLimit = 500
	ti.Width = opts.Width - 4

	return &Overlay{
		queue:  queue,
		opts:   opts,
		styles: newStyles(opts.Width),
		logger: slog.Default().With("component", "overlay"),
		state:  NewState(opts.Position, opts.VisibleMessages),
		input:  ti,
	}
}

func (o *Overlay) Enqueue(in types.UIInstruction) {
	o.queue.Put(in)
}

// SetMessageCallback sets the function receiving submitted input.
func (o *Overlay) SetMessageCallback(fn func(string)) {
	o.cbMu.Lock()
	o.onMessage = fn
	o.cbMu.Unlock()
}

// DrainAndApply applies every queued instruction in order and returns how
// many were applied.
func (o *Overlay) DrainAndApply() int {
	pending := o.queue.Drain()
	for _, in := range pending {
		o.state.Apply(in)
	}
	o.syncInput()
	return len(pending)
}

// State returns a copy of the current overlay state.
func (o *Overlay) State() State {
	return o.state.Snapshot()
}

func (o *Overlay) syncInput() {
	switch {
	case o.state.InputActive && !o.input.Focused():
		o.input.Focus()
	case !o.state.InputActive && o.input.Focused():
		o.input.Blur()
		o.input.Reset()
	}
}

func (o *Overlay) pump() tea.Cmd {
	return tea.Tick(o.opts.PumpInterval, func(t time.Time) tea.Msg {
		return pumpMsg(t)
	})
}

func (o *Overlay) Init() tea.Cmd {
	return tea.Batch(o.pump(), textinput.Blink)
}

func (o *Overlay) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pumpMsg:
		o.DrainAndApply()
		return o, o.pump()
	case tea.WindowSizeMsg:
		o.width, o.height = msg.Width, msg.Height
		return o, nil
	case tea.KeyMsg:
		return o, o.handleKey(msg)
	}

	if o.state.InputActive {
		var cmd tea.Cmd
		o.input, cmd = o.input.Update(msg)
		return o, cmd
	}
	return o, nil
}

// handleKey maps hotkeys to instructions. Handlers only enqueue; the next
// pump applies the change.
func (o *Overlay) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "ctrl+t":
		o.Enqueue(types.UIInstruction{Kind: types.ToggleVisibility})
		return nil
	case "ctrl+p":
		o.Enqueue(types.UIInstruction{Kind: types.CyclePosition})
		return nil
	case "ctrl+n":
		o.Enqueue(types.UIInstruction{Kind: types.ShowInput})
		return nil
	case "esc":
		if o.state.InputActive {
			o.Enqueue(types.UIInstruction{Kind: types.HideInput})
		}
		return nil
	case "enter":
		if o.state.InputActive {
			o.submit()
			return nil
		}
	}

	if !o.state.InputActive {
		return nil
	}
	var cmd tea.Cmd
	o.input, cmd = o.input.Update(msg)
	return cmd
}

func (o *Overlay) submit() {
	text := strings.TrimSpace(o.input.Value())
	o.input.Reset()
	o.Enqueue(types.UIInstruction{Kind: types.HideInput})
	if text == "" {
		return
	}

	o.cbMu.Lock()
	fn := o.onMessage
	o.cbMu.Unlock()
	if fn == nil {
		o.logger.Warn("No message callback set, dropping input")
		return
	}
	fn(text)
}

func (o *Overlay) View() string {
	if !o.state.Visible {
		return o.place(o.styles.hint.Render("ctrl+t to show"))
	}

	var b strings.Builder
	b.WriteString(o.styles.title.Render("AI Game Partner"))
	b.WriteString("\n")

	for _, m := range o.state.Messages {
		b.WriteString("\n")
		b.WriteString(o.styles.timestamp.Render("[" + m.Timestamp.Format("15:04:05") + "]"))
		b.WriteString(" ")
		b.WriteString(o.messageStyle(m).Render(m.Text))
	}
	if len(o.state.Messages) == 0 {
		b.WriteString("\n")
		b.WriteString(o.styles.hint.Render("Waiting for the first analysis..."))
	}

	if o.state.InputActive {
		b.WriteString("\n\n")
		b.WriteString(o.input.View())
	}

	b.WriteString("\n\n")
	b.WriteString(o.styles.footer.Render(o.footer()))

	return o.place(o.styles.panel.Render(b.String()))
}

func (o *Overlay) messageStyle(m types.ChatMessage) lipgloss.Style {
	switch {
	case m.IsError:
		return o.styles.err
	case m.IsFromAI:
		return o.styles.ai
	default:
		return o.styles.user
	}
}

func (o *Overlay) footer() string {
	keys := "ctrl+n chat · ctrl+p move · ctrl+t hide · ctrl+c quit"
	if n := len(o.state.Messages); n > 0 {
		return "updated " + humanize.Time(o.state.Messages[n-1].Timestamp) + " · " + keys
	}
	return keys
}

func (o *Overlay) place(content string) string {
	if o.width == 0 || o.height == 0 {
		return content
	}
	h, v := o.state.Position.Placement()
	return lipgloss.Place(o.width, o.height, h, v, content)
}

// Run starts the terminal program and blocks until the user quits or ctx is
// cancelled.
func (o *Overlay) Run(ctx context.Context) error {
	p := tea.NewProgram(o, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		// cancellation is a normal shutdown
		return nil
	}
	return err
}
