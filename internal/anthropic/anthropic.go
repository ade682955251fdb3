// Package anthropic implements [llm.Client] for Anthropic.
package anthropic

import (
	"context"
	"net/http"
	"strings"

	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var _ llm.Client = &Client{}

const defaultMaxTokens = 4096

// Client is a client for the Anthropic API.
type Client struct {
	*anthropic.Client
}

// Config represents the configuration for the Anthropic API client.
type Config struct {
	AuthToken  string
	BaseURL    string
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration for the Anthropic API client.
func DefaultConfig(authToken string) Config {
	return Config{
		AuthToken:  authToken,
		HTTPClient: &http.Client{},
	}
}

// New creates a new [Client] with the given [Config].
func New(config Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(config.AuthToken),
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/v1")))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		Client: &client,
	}
}

// Request implements llm.Client.
func (c *Client) Request(ctx context.Context, request proto.Request) (*proto.Response, error) {
	system, messages, err := fromProtoMessages(request.Messages)
	if err != nil {
		return nil, err
	}
	body := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  messages,
		System:    system,
		Tools:     fromMCPTools(request.Tools),
		MaxTokens: defaultMaxTokens,
	}
	if request.MaxTokens != nil {
		body.MaxTokens = *request.MaxTokens
	}
	if request.Temperature != nil {
		body.Temperature = anthropic.Float(*request.Temperature)
	}

	var out proto.Response
	for range llm.MaxToolRounds {
		message, err := c.Messages.New(ctx, body)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		out.Usage.Add(proto.Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
			Requests:     1,
		})

		var text strings.Builder
		var results []anthropic.ContentBlockParamUnion
		for _, block := range message.Content {
			switch block := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(block.Text)
			case anthropic.ToolUseBlock:
				msg, status := llm.CallTool(
					block.ID,
					block.Name,
					[]byte(block.JSON.Input.Raw()),
					request.ToolCaller,
				)
				results = append(results, anthropic.NewToolResultBlock(block.ID, msg.Content, status.Err != nil))
				out.ToolCalls = append(out.ToolCalls, status)
			}
		}

		if len(results) == 0 {
			if text.Len() == 0 {
				return nil, llm.ErrNoContent
			}
			out.Content = text.String()
			return &out, nil
		}
		body.Messages = append(body.Messages, message.ToParam(), anthropic.NewUserMessage(results...))
	}
	return nil, llm.ErrTooManyToolRounds
}
