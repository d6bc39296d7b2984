package types

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Screenshot is a single capture saved to the scratch directory.
type Screenshot struct {
	Path       string    `json:"path"`
	CapturedAt time.Time `json:"capturedAt"`
}

// ConversationTurn represents a message in the chat history.
// A user turn with empty Text belongs to an automatic analysis cycle.
type ConversationTurn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// AnalysisRequest is built once per cycle and never persisted.
type AnalysisRequest struct {
	Screenshot        Screenshot
	UserText          string
	GameName          string
	History           []ConversationTurn
	AdditionalContext map[string]string
}

// Automatic reports whether the request was triggered by the cooldown
// rather than by a user message.
func (r AnalysisRequest) Automatic() bool {
	return r.UserText == ""
}

// Content is the new material sent along with the history on a completion call.
type Content struct {
	Text      string
	ImagePath string
}

// InstructionKind enumerates the display directives understood by the overlay.
type InstructionKind int

const (
	AppendMessage InstructionKind = iota
	ToggleVisibility
	CyclePosition
	ShowInput
	HideInput
)

func (k InstructionKind) String() string {
	switch k {
	case AppendMessage:
		return "append"
	case ToggleVisibility:
		return "toggle"
	case CyclePosition:
		return "cycle"
	case ShowInput:
		return "show-input"
	case HideInput:
		return "hide-input"
	default:
		return "unknown"
	}
}

// ChatMessage is a line shown in the overlay.
type ChatMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsFromAI  bool      `json:"isFromAI"`
	IsError   bool      `json:"isError"`
}

// UIInstruction is consumed exactly once by the UI pump.
type UIInstruction struct {
	Kind    InstructionKind
	Message ChatMessage
}

// Append builds an AppendMessage instruction.
func Append(text string, at time.Time, fromAI bool) UIInstruction {
	return UIInstruction{
		Kind:    AppendMessage,
		Message: ChatMessage{Text: text, Timestamp: at, IsFromAI: fromAI},
	}
}

// AppendError builds an AppendMessage instruction carrying a user-visible error.
func AppendError(text string, at time.Time) UIInstruction {
	return UIInstruction{
		Kind:    AppendMessage,
		Message: ChatMessage{Text: text, Timestamp: at, IsFromAI: true, IsError: true},
	}
}

// AnalysisRecord is one row of the session journal.
type AnalysisRecord struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	UserText   string    `json:"userText,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// PromptMessage is a chat message in the Ollama API format.
type PromptMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ChatOptions carries sampling parameters for the Ollama chat API.
type ChatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ChatData represents the data sent to the Ollama chat API
type ChatData struct {
	Model    string          `json:"model"`
	Messages []PromptMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ChatOptions    `json:"options,omitempty"`
}

// LLMResponse represents the response from the Ollama chat API when streaming is disabled
type LLMResponse struct {
	Model     string        `json:"model"`
	CreatedAt string        `json:"created_at"`
	Message   PromptMessage `json:"message"`
	Error     string        `json:"error,omitempty"`
}
