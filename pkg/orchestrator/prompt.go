package orchestrator

import (
	"fmt"
	"strings"

	"github.com/zetyquickly/self-aware/pkg/emotion"
	"github.com/zetyquickly/self-aware/pkg/inference"
	"github.com/zetyquickly/self-aware/pkg/session"
)

const basePrompt = "You are a helpful AI assistant. Answer the user's question concisely and clearly."

// buildMessages assembles the LLM conversation: a system message carrying
// the observed emotional context, then recent history ending with the
// user's transcript.
func (o *Orchestrator) buildMessages(sess *session.Session, transcript string) []inference.Message {
	messages := []inference.Message{
		inference.NewSystemMessage(buildSystemPrompt(sess)),
	}

	history := sess.History(historyLimit)
	for _, entry := range history {
		switch entry.Role {
		case session.RoleAssistant:
			messages = append(messages, inference.NewAssistantMessage(entry.Content))
		default:
			messages = append(messages, inference.NewUserMessage(entry.Content))
		}
	}

	// Transcribe appends the transcript before Respond runs; only add it
	// here when the history does not already end with it.
	if len(history) == 0 || history[len(history)-1].Role != session.RoleUser || history[len(history)-1].Content != transcript {
		messages = append(messages, inference.NewUserMessage(transcript))
	}

	return messages
}

// buildSystemPrompt folds the session's emotional context into the
// system instructions.
func buildSystemPrompt(sess *session.Session) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if current := sess.CurrentEmotion(); current != "" {
		fmt.Fprintf(&b, " The user currently appears %s.", current)
	}
	if speaking, ok := emotion.Dominant(sess.SpeakingEmotions()); ok {
		fmt.Fprintf(&b, " While speaking, they mostly appeared %s.", speaking)
	}
	if listening, ok := emotion.Dominant(sess.LastListeningEmotions()); ok {
		fmt.Fprintf(&b, " While listening to your previous reply, they mostly appeared %s.", listening)
	}

	b.WriteString(" Adjust your tone and content to suit the user's emotional state while staying relevant to their question.")

	return b.String()
}
