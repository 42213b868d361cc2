package assistant

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/sitebridgehq/sitebridge/internal/models"
)

func TestBuildMessages(t *testing.T) {
	completer := NewChatCompleter(Config{MaxHistory: 2})

	history := []models.ChatMessage{
		{Sender: "user", Text: "first"},
		{Sender: "assistant", Text: "second"},
		{Sender: "user", Text: "third"},
	}

	messages := completer.buildMessages(history, "new question")
	require.Len(t, messages, 4)
	require.Equal(t, openai.ChatMessageRoleSystem, messages[0].Role)

	// oldest entry trimmed away by MaxHistory
	require.Equal(t, "second", messages[1].Content)
	require.Equal(t, openai.ChatMessageRoleAssistant, messages[1].Role)
	require.Equal(t, "third", messages[2].Content)
	require.Equal(t, openai.ChatMessageRoleUser, messages[2].Role)

	require.Equal(t, "new question", messages[3].Content)
	require.Equal(t, openai.ChatMessageRoleUser, messages[3].Role)
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	completer := NewChatCompleter(Config{})

	_, err := completer.Complete(context.Background(), " ", nil, "q")
	require.Error(t, err)
}
