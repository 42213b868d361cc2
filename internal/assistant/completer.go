package assistant

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sitebridgehq/sitebridge/internal/models"
)

const (
	defaultModel      = openai.GPT4oMini
	defaultMaxHistory = 20

	systemPrompt = "You are the Sitebridge helpdesk assistant. You help " +
		"construction-ERP users with everyday questions about projects, " +
		"estimates, and reports. Answer briefly and practically. If a " +
		"question needs account or license changes, direct the user to " +
		"their administrator."
)

// Config tunes the chat completer.
type Config struct {
	Model string
	// MaxHistory bounds how many prior messages are replayed per request.
	MaxHistory int
}

// ChatCompleter answers helpdesk questions through a chat-completion API.
// The API key is supplied per call because every tenant company brings its
// own upstream account.
type ChatCompleter struct {
	model      string
	maxHistory int
}

// NewChatCompleter constructs a ChatCompleter.
func NewChatCompleter(cfg Config) *ChatCompleter {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &ChatCompleter{model: model, maxHistory: maxHistory}
}

// Complete sends the conversation and the new question upstream and returns
// the assistant reply.
func (c *ChatCompleter) Complete(ctx context.Context, apiKey string, history []models.ChatMessage, question string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", errors.New("assistant: api key is required")
	}

	client := openai.NewClient(apiKey)
	messages := c.buildMessages(history, question)
	rsp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(rsp.Choices) == 0 {
		return "", errors.New("assistant: empty completion response")
	}
	return strings.TrimSpace(rsp.Choices[0].Message.Content), nil
}

func (c *ChatCompleter) buildMessages(history []models.ChatMessage, question string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	if len(history) > c.maxHistory {
		history = history[len(history)-c.maxHistory:]
	}
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Sender == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Text})
	}

	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})
}
