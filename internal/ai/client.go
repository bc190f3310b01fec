package ai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

const systemPrompt = `You are an assistant for an administrative deadline tracker.
You receive a summary of a user's records (contracts, leaves, vehicle documents,
licences, court hearings and other items), each with a status, priority and end date.
Analyze them: point out overdue and soon-expiring items, group the rest by urgency,
and suggest what to handle first. Be brief and concrete. Answer in plain text.`

// Analyze forwards a records summary plus an optional user question to
// the model and returns its plain-text verdict.
func (c *Client) Analyze(ctx context.Context, summary, question string) (string, error) {
	userContent := summary
	if question != "" {
		userContent += "\n\nQuestion: " + question
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
