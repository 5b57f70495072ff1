package ai

import (
	"context"

	"example.com/finance-advisor/backend/internal/diagnostics"
)

const defaultMaxTokens = 4096

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	// Diagnostics получает события попыток; nil отключает их.
	Diagnostics diagnostics.Sink
}

type Result struct {
	Provider string `json:"provider"`
	Status   int    `json:"status"`
	Text     string `json:"text"`
}

// Client выполняет одну попытку обращения к провайдеру.
type Client interface {
	Name() string
	Generate(ctx context.Context, request Request) (Result, error)
}

func resolveMaxTokens(value int) int {
	if value > 0 {
		return value
	}

	return defaultMaxTokens
}

func buildMessages(request Request) []Message {
	messages := make([]Message, 0, 2)
	if request.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: request.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: request.UserPrompt})
	return messages
}
