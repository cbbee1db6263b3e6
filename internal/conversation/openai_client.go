package conversation

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

// OpenAIClient implements LLMClient over the OpenAI chat completion API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *logging.Logger
}

// NewOpenAIClient builds the production language-model client. JSON response
// mode is requested so the turn envelope parses reliably.
func NewOpenAIClient(apiKey, model string, temperature float32, logger *logging.Logger) *OpenAIClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAIClient{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// Complete sends the transcript and returns the model's raw reply text.
func (c *OpenAIClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    toOpenAIMessages(messages),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("conversation: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("conversation: chat completion returned no choices")
	}

	c.logger.Debug("chat completion finished",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
