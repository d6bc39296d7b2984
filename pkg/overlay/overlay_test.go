package overlay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GamePartner/pkg/mailbox"
	"GamePartner/pkg/types"
)

var at = time.Date(2025, 1, 1, 21, 4, 5, 0, time.Local)

func TestPositionCycle(t *testing.T) {
	t.Parallel()

	want := []string{
		"top-middle", "top-right", "right-middle", "bottom-right",
		"bottom-middle", "bottom-left", "left-middle", "top-left",
	}
	p := TopLeft
	for _, name := range want {
		p = p.Next()
		assert.Equal(t, name, p.String())
	}
}

func TestParsePosition(t *testing.T) {
	t.Parallel()

	p, err := ParsePosition(" Bottom-Left ")
	require.NoError(t, err)
	assert.Equal(t, BottomLeft, p)

	_, err = ParsePosition("center")
	assert.ErrorContains(t, err, "unknown overlay position")
}

func TestStateKeepsLastMessages(t *testing.T) {
	t.Parallel()

	s := NewState(BottomRight, 3)
	for i := 1; i <= 5; i++ {
		s.Apply(types.Append(fmt.Sprintf("m%d", i), at, true))
	}

	require.Len(t, s.Messages, 3)
	assert.Equal(t, "m3", s.Messages[0].Text)
	assert.Equal(t, "m5", s.Messages[2].Text)
}

func TestStateInstructions(t *testing.T) {
	t.Parallel()

	s := NewState(LeftMiddle, 5)
	assert.True(t, s.Visible)

	s.Apply(types.UIInstruction{Kind: types.ToggleVisibility})
	assert.False(t, s.Visible)

	s.Apply(types.UIInstruction{Kind: types.ShowInput})
	assert.True(t, s.Visible)
	assert.True(t, s.InputActive)

	s.Apply(types.UIInstruction{Kind: types.HideInput})
	assert.False(t, s.InputActive)

	s.Apply(types.UIInstruction{Kind: types.CyclePosition})
	assert.Equal(t, TopLeft, s.Position)
}

func TestDrainAndApplyProcessesEverythingInOrder(t *testing.T) {
	t.Parallel()

	q := mailbox.New[types.UIInstruction]()
	o := New(q, Options{Position: BottomRight, VisibleMessages: 5})

	o.Enqueue(types.Append("hello", at, false))
	o.Enqueue(types.Append("hi", at, true))
	o.Enqueue(types.UIInstruction{Kind: types.CyclePosition})
	o.Enqueue(types.UIInstruction{Kind: types.ShowInput})

	assert.Equal(t, 4, o.DrainAndApply())
	assert.Zero(t, q.Len())

	st := o.State()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "hello", st.Messages[0].Text)
	assert.Equal(t, "hi", st.Messages[1].Text)
	assert.Equal(t, BottomMiddle, st.Position)
	assert.True(t, st.InputActive)
	assert.True(t, o.input.Focused())

	assert.Zero(t, o.DrainAndApply())
}

func TestHotkeysOnlyEnqueue(t *testing.T) {
	t.Parallel()

	q := mailbox.New[types.UIInstruction]()
	o := New(q, Options{Position: TopLeft})

	o.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	o.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	o.Update(tea.KeyMsg{Type: tea.KeyCtrlN})

	// nothing rendered changes until the pump runs
	assert.True(t, o.State().Visible)
	assert.Equal(t, TopLeft, o.State().Position)

	kinds := []types.InstructionKind{}
	for _, in := range q.Drain() {
		kinds = append(kinds, in.Kind)
	}
	assert.Equal(t, []types.InstructionKind{types.ToggleVisibility, types.CyclePosition, types.ShowInput}, kinds)
}

func TestSubmitCallsCallbackAndHidesInput(t *testing.T) {
	t.Parallel()

	q := mailbox.New[types.UIInstruction]()
	o := New(q, Options{})
	var got []string
	o.SetMessageCallback(func(s string) { got = append(got, s) })

	o.Enqueue(types.UIInstruction{Kind: types.ShowInput})
	o.DrainAndApply()

	o.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("push mid")})
	o.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"push mid"}, got)

	o.DrainAndApply()
	assert.False(t, o.State().InputActive)

	// blank input is not submitted
	o.Enqueue(types.UIInstruction{Kind: types.ShowInput})
	o.DrainAndApply()
	o.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("   ")})
	o.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, got, 1)
}

func TestPumpMessageDrainsQueue(t *testing.T) {
	t.Parallel()

	q := mailbox.New[types.UIInstruction]()
	o := New(q, Options{})
	o.Enqueue(types.Append("tick", at, true))

	_, cmd := o.Update(pumpMsg(time.Now()))
	assert.NotNil(t, cmd, "pump reschedules itself")
	require.Len(t, o.State().Messages, 1)
}

func TestViewRendersMessagesAndHiddenHint(t *testing.T) {
	t.Parallel()

	q := mailbox.New[types.UIInstruction]()
	o := New(q, Options{Width: 60})
	o.Enqueue(types.Append("Enemy flanking left", at, true))
	o.Enqueue(types.AppendError("Error analyzing game state: boom", at))
	o.DrainAndApply()

	view := o.View()
	assert.Contains(t, view, "[21:04:05]")
	assert.Contains(t, view, "Enemy flanking left")
	assert.Contains(t, view, "Error analyzing game state: boom")

	o.Enqueue(types.UIInstruction{Kind: types.ToggleVisibility})
	o.DrainAndApply()
	assert.Contains(t, o.View(), "ctrl+t to show")
	assert.NotContains(t, o.View(), "Enemy flanking left")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHeadlessPrintsMessages(t *testing.T) {
	t.Parallel()

	q := mailbox.New[types.UIInstruction]()
	out := &syncBuffer{}
	h := NewHeadless(q, Options{PumpInterval: 5 * time.Millisecond}, out, nil)

	h.Enqueue(types.Append("hello", at, false))
	h.Enqueue(types.Append("hi", at, true))
	h.Enqueue(types.AppendError("Error analyzing game state: boom", at))
	h.Enqueue(types.UIInstruction{Kind: types.ToggleVisibility})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t,
		"You [21:04:05] hello\nAI [21:04:05] hi\nERR [21:04:05] Error analyzing game state: boom\n",
		out.String())
}

func TestHeadlessReadsInputLines(t *testing.T) {
	t.Parallel()

	q := mailbox.New[types.UIInstruction]()
	h := NewHeadless(q, Options{}, &syncBuffer{}, strings.NewReader("first\n\n  second  \n"))

	var mu sync.Mutex
	var got []string
	h.SetMessageCallback(func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestHeadlessClosesInputOnExit(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()
	h := NewHeadless(mailbox.New[types.UIInstruction](), Options{PumpInterval: 5 * time.Millisecond}, &syncBuffer{}, pr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)

	select {
	case <-h.inputDone:
	case <-time.After(time.Second):
		t.Fatal("input reader still blocked after Run returned")
	}
}
