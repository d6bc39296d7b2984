package assistant

import (
	"fmt"
	"sort"
	"strings"

	"GamePartner/pkg/types"
)

// SystemPrompt builds the game partner persona with the reply length limit.
func SystemPrompt(maxResponseLength int) string {
	return "You are an AI game partner analyzing screenshots of a game.\n" +
		"Your role is to provide strategic advice and suggestions based on the game state.\n\n" +
		"IMPORTANT INSTRUCTIONS:\n" +
		"1. If you don't detect any active gameplay in the screenshot (e.g. an IDE, a desktop or other non-game content):\n" +
		"   - If there's no user message, respond ONLY with: 'Waiting for gameplay...'\n" +
		"   - If there is a user message, respond conversationally while mentioning you're waiting for gameplay\n" +
		fmt.Sprintf("2. When you do detect gameplay, keep your responses VERY concise, under %d characters.\n\n", maxResponseLength) +
		"When gameplay is detected, follow these guidelines:\n" +
		"1. Focus on the most important changes since your last suggestion\n" +
		"2. Give specific, actionable advice in 1-2 short sentences\n" +
		"3. If you notice patterns, mention them briefly\n" +
		"4. Prioritize immediate tactical moves over long-term strategy\n" +
		"5. If uncertain about something in the image, mention it very briefly\n" +
		"6. Avoid lengthy explanations or multiple options\n\n" +
		"Example responses for active gameplay:\n" +
		"- \"Enemy team flanking from the left side. Fall back to high ground.\"\n" +
		"- \"Low on health and ammo. Use the nearby health pack before engaging.\"\n\n" +
		"Messages marked " + AutomaticTurnText + " were periodic checks without a user message.\n" +
		"Reference previous messages when appropriate to maintain conversation continuity."
}

// BuildContent renders the text that accompanies the screenshot of req.
func BuildContent(req types.AnalysisRequest, maxResponseLength int) string {
	var b strings.Builder

	if req.GameName != "" {
		fmt.Fprintf(&b, "Game: %s\n\n", req.GameName)
	}
	if req.UserText != "" {
		fmt.Fprintf(&b, "User message: %s\n\n", req.UserText)
	}

	b.WriteString("Analyze this screenshot.\n\n")
	b.WriteString("Remember:\n")
	fmt.Fprintf(&b, "- Keep your response under %d characters\n", maxResponseLength)
	b.WriteString("- Focus on what's new/changed\n")
	b.WriteString("- One clear, actionable suggestion\n")
	b.WriteString("- If no game is detected and there's no user message, respond with 'Waiting for gameplay...'\n")
	b.WriteString("- If there's a user message, respond to it conversationally\n\n")
	b.WriteString("Additional context: ")
	b.WriteString(formatContext(req.AdditionalContext))

	return b.String()
}

func formatContext(ctx map[string]string) string {
	if len(ctx) == 0 {
		return "None provided"
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+ctx[k])
	}
	return strings.Join(parts, ", ")
}
