// Package ollama implements [llm.Client] for Ollama.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/ollama/ollama/api"
)

var _ llm.Client = &Client{}

// Config represents the configuration for the Ollama API client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration for the Ollama API client.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:11434/",
		HTTPClient: &http.Client{},
	}
}

// Client ollama client.
type Client struct {
	*api.Client
}

// New creates a new [Client] with the given [Config].
func New(config Config) (*Client, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		Client: api.NewClient(u, httpClient),
	}, nil
}

// Request implements llm.Client.
func (c *Client) Request(ctx context.Context, request proto.Request) (*proto.Response, error) {
	messages, err := fromProtoMessages(request.Messages)
	if err != nil {
		return nil, err
	}
	stream := false
	body := api.ChatRequest{
		Model:    request.Model,
		Messages: messages,
		Stream:   &stream,
		Tools:    fromMCPTools(request.Tools),
		Options:  map[string]any{},
	}
	if len(request.OutputSchema) > 0 {
		body.Format = request.OutputSchema
	}
	if request.MaxTokens != nil {
		body.Options["num_predict"] = *request.MaxTokens
	}
	if request.Temperature != nil {
		body.Options["temperature"] = *request.Temperature
	}

	var out proto.Response
	for range llm.MaxToolRounds {
		var message api.Message
		if err := c.Chat(ctx, &body, func(resp api.ChatResponse) error {
			message.Role = resp.Message.Role
			message.Content += resp.Message.Content
			message.ToolCalls = append(message.ToolCalls, resp.Message.ToolCalls...)
			if resp.Done {
				out.Usage.Add(proto.Usage{
					InputTokens:  int64(resp.PromptEvalCount),
					OutputTokens: int64(resp.EvalCount),
					Requests:     1,
				})
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}

		if len(message.ToolCalls) == 0 {
			if message.Content == "" {
				return nil, llm.ErrNoContent
			}
			out.Content = message.Content
			return &out, nil
		}

		body.Messages = append(body.Messages, message)
		for _, call := range message.ToolCalls {
			msg, status := llm.CallTool(
				strconv.Itoa(call.Function.Index),
				call.Function.Name,
				[]byte(call.Function.Arguments.String()),
				request.ToolCaller,
			)
			body.Messages = append(body.Messages, api.Message{
				Role:    proto.RoleTool,
				Content: msg.Content,
			})
			out.ToolCalls = append(out.ToolCalls, status)
		}
	}
	return nil, llm.ErrTooManyToolRounds
}
