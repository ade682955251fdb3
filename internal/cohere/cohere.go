// Package cohere implements [llm.Client] for Cohere.
package cohere

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/proto"
	cohere "github.com/cohere-ai/cohere-go/v2"
	"github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"
)

var _ llm.Client = &Client{}

// Config represents the configuration for the Cohere API client.
type Config struct {
	AuthToken  string
	BaseURL    string
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration for the Cohere API client.
func DefaultConfig(authToken string) Config {
	return Config{
		AuthToken:  authToken,
		HTTPClient: &http.Client{},
	}
}

// Client cohere client.
type Client struct {
	*client.Client
}

// New creates a new [Client] with the given [Config].
func New(config Config) *Client {
	opts := []option.RequestOption{
		client.WithToken(config.AuthToken),
	}
	if config.HTTPClient != nil {
		opts = append(opts, client.WithHTTPClient(config.HTTPClient))
	}
	if config.BaseURL != "" {
		opts = append(opts, client.WithBaseURL(config.BaseURL))
	}
	return &Client{
		Client: client.NewClient(opts...),
	}
}

// Request implements llm.Client.
// Tool calls are not supported: tools are not offered to the model.
func (c *Client) Request(ctx context.Context, request proto.Request) (*proto.Response, error) {
	for _, msg := range request.Messages {
		if msg.Attachment != nil {
			return nil, fmt.Errorf("cohere: %w: %s", llm.ErrAttachmentNotSupported, msg.Attachment.MIMEType)
		}
	}
	history, message := fromProtoMessages(request.Messages)
	body := &cohere.ChatRequest{
		Model:       cohere.String(request.Model),
		Message:     message,
		ChatHistory: history,
		Temperature: request.Temperature,
	}
	if request.MaxTokens != nil {
		body.MaxTokens = cohere.Int(int(*request.MaxTokens))
	}

	resp, err := c.Chat(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("cohere: %w", err)
	}
	if resp.Text == "" {
		return nil, llm.ErrNoContent
	}
	return &proto.Response{
		Content: resp.Text,
		Usage:   usageOf(resp.Meta),
	}, nil
}

func usageOf(meta *cohere.ApiMeta) proto.Usage {
	usage := proto.Usage{Requests: 1}
	if meta == nil {
		return usage
	}
	if units := meta.BilledUnits; units != nil {
		if units.InputTokens != nil {
			usage.InputTokens = int64(*units.InputTokens)
		}
		if units.OutputTokens != nil {
			usage.OutputTokens = int64(*units.OutputTokens)
		}
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	return usage
}
