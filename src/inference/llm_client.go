package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/inkforge/gateway/src/config"
	"github.com/inkforge/gateway/src/models"
)

// LLMClient talks to the upstream text service over its chat-completions
// endpoint. Errors are returned untranslated; classification happens in the
// executor so retry decisions stay in one place.
type LLMClient struct {
	client *openai.Client
}

func NewLLMClient(cfg *config.LLMConfig) *LLMClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	return &LLMClient{client: openai.NewClientWithConfig(clientCfg)}
}

func (c *LLMClient) Complete(ctx context.Context, model string, messages []models.Message, opts models.ResolvedOptions) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, buildRequest(model, messages, opts, false))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("text service returned no choices for model %s", model)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *LLMClient) CompleteStream(ctx context.Context, model string, messages []models.Message, opts models.ResolvedOptions, callback func(delta string) error) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, buildRequest(model, messages, opts, true))
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if err := callback(delta); err != nil {
			return sb.String(), err
		}
	}
}

func buildRequest(model string, messages []models.Message, opts models.ResolvedOptions, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		Stream:      stream,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.ResponseFormat == models.ResponseFormatJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}
