// Package openai implements [llm.Client] for OpenAI compatible APIs.
package openai

import (
	"context"
	"net/http"

	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

var _ llm.Client = &Client{}

// OpenRouterURL is the OpenAI compatible endpoint of OpenRouter.
const OpenRouterURL = "https://openrouter.ai/api/v1"

// Client is the openai client.
type Client struct {
	*openai.Client
}

// Config represents the configuration for the OpenAI API client.
type Config struct {
	AuthToken  string
	BaseURL    string
	HTTPClient interface {
		Do(*http.Request) (*http.Response, error)
	}
	APIType string
}

// DefaultConfig returns the default configuration for the OpenAI API client.
func DefaultConfig(authToken string) Config {
	return Config{
		AuthToken: authToken,
	}
}

// New creates a new [Client] with the given [Config].
func New(config Config) *Client {
	opts := []option.RequestOption{}

	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}

	if config.APIType == "azure-ad" {
		opts = append(opts, azure.WithAPIKey(config.AuthToken))
		if config.BaseURL != "" {
			opts = append(opts, azure.WithEndpoint(config.BaseURL, "v1"))
		}
	} else {
		opts = append(opts, option.WithAPIKey(config.AuthToken))
		if config.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(config.BaseURL))
		}
	}
	client := openai.NewClient(opts...)
	return &Client{
		Client: &client,
	}
}

// Request implements llm.Client.
func (c *Client) Request(ctx context.Context, request proto.Request) (*proto.Response, error) {
	body := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(request.Model),
		Messages: fromProtoMessages(request.Messages),
		Tools:    fromMCPTools(request.Tools),
	}
	if request.Temperature != nil {
		body.Temperature = openai.Float(*request.Temperature)
	}
	if request.MaxTokens != nil {
		body.MaxTokens = openai.Int(*request.MaxTokens)
	}
	if len(request.OutputSchema) > 0 {
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	var out proto.Response
	for range llm.MaxToolRounds {
		resp, err := c.Chat.Completions.New(ctx, body)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		out.Usage.Add(proto.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
			Requests:     1,
		})
		if len(resp.Choices) == 0 {
			return nil, llm.ErrNoContent
		}

		message := resp.Choices[0].Message
		if len(message.ToolCalls) == 0 {
			if message.Content == "" {
				return nil, llm.ErrNoContent
			}
			out.Content = message.Content
			return &out, nil
		}

		body.Messages = append(body.Messages, message.ToParam())
		for _, call := range message.ToolCalls {
			msg, status := llm.CallTool(
				call.ID,
				call.Function.Name,
				[]byte(call.Function.Arguments),
				request.ToolCaller,
			)
			body.Messages = append(body.Messages, openai.ToolMessage(msg.Content, call.ID))
			out.ToolCalls = append(out.ToolCalls, status)
		}
	}
	return nil, llm.ErrTooManyToolRounds
}
