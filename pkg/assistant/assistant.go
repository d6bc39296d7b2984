// Package assistant talks to the remote model that analyses screenshots.
package assistant

import (
	"context"

	"GamePartner/pkg/types"
)

// AutomaticTurnText stands in for the user slot of an exchange that was
// triggered by the cooldown rather than by the user.
const AutomaticTurnText = "(automatic screen analysis)"

// Completer sends a conversation plus new content to a chat model and
// returns its reply. Failures are reported as *RemoteError.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []types.ConversationTurn, content types.Content) (string, error)
}

// TurnText returns the text sent to the model for a history turn.
func TurnText(turn types.ConversationTurn) string {
	if turn.Role == types.RoleUser && turn.Text == "" {
		return AutomaticTurnText
	}
	return turn.Text
}
