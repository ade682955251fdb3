// Package google implements [llm.Client] for Google Gemini.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/proto"
)

var _ llm.Client = &Client{}

// DefaultBaseURL is the Gemini REST endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const defaultMaxOutputTokens = 4096

// Config represents the configuration for the Google API client.
type Config struct {
	BaseURL        string
	AuthToken      string
	HTTPClient     *http.Client
	ThinkingBudget int
}

// DefaultConfig returns the default configuration for the Google API client.
func DefaultConfig(authToken string) Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		AuthToken:  authToken,
		HTTPClient: &http.Client{},
	}
}

// InlineData is a base64 encoded file sent inline with a message.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// FunctionCall is a tool call requested by the model.
type FunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// FunctionResponse is the result of a [FunctionCall].
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Part is a datatype containing media that is part of a multi-part Content message.
type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// Content is the base structured datatype containing multi-part content of a message.
type Content struct {
	Parts []Part `json:"parts,omitempty"`
	Role  string `json:"role,omitempty"`
}

// FunctionDeclaration describes a tool the model may call.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Tool groups function declarations.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// ThinkingConfig - for more details see https://ai.google.dev/gemini-api/docs/thinking#rest .
type ThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget,omitempty"`
}

// GenerationConfig are the options for model generation and outputs. Not all parameters are configurable for every model.
type GenerationConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	CandidateCount   uint            `json:"candidateCount,omitempty"`
	MaxOutputTokens  uint            `json:"maxOutputTokens,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	ThinkingConfig   *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// MessageCompletionRequest represents the valid parameters and value options for the request.
type MessageCompletionRequest struct {
	Contents          []Content        `json:"contents,omitempty"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	Tools             []Tool           `json:"tools,omitempty"`
	GenerationConfig  GenerationConfig `json:"generationConfig,omitempty"`
}

// Candidate represents a response candidate generated from the model.
type Candidate struct {
	Content      Content `json:"content,omitempty"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        uint    `json:"index,omitempty"`
}

// UsageMetadata is the token accounting of one response.
type UsageMetadata struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

// CompletionMessageResponse represents a response to an Google completion message.
type CompletionMessageResponse struct {
	Candidates    []Candidate   `json:"candidates,omitempty"`
	UsageMetadata UsageMetadata `json:"usageMetadata"`
}

// Client is a client for the Google API.
type Client struct {
	config         Config
	requestBuilder RequestBuilder
	unmarshaler    Unmarshaler
}

// New creates a new Client with the given configuration.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &Client{
		config:         config,
		requestBuilder: NewRequestBuilder(),
		unmarshaler:    &JSONUnmarshaler{},
	}
}

func (c *Client) endpoint(model string) string {
	return fmt.Sprintf(
		"%s/models/%s:generateContent?key=%s",
		strings.TrimSuffix(c.config.BaseURL, "/"),
		url.PathEscape(model),
		url.QueryEscape(c.config.AuthToken),
	)
}

// Request implements llm.Client.
func (c *Client) Request(ctx context.Context, request proto.Request) (*proto.Response, error) {
	body := MessageCompletionRequest{
		Contents: fromProtoMessages(request.Messages),
		Tools:    fromMCPTools(request.Tools),
		GenerationConfig: GenerationConfig{
			CandidateCount:  1,
			MaxOutputTokens: defaultMaxOutputTokens,
			Temperature:     request.Temperature,
		},
	}
	if s := llm.SystemPrompt(request.Messages); s != "" {
		body.SystemInstruction = &Content{Parts: []Part{{Text: s}}}
	}
	if len(request.OutputSchema) > 0 && len(body.Tools) == 0 {
		// JSON mode cannot be combined with function calling.
		body.GenerationConfig.ResponseMimeType = "application/json"
	}
	if request.MaxTokens != nil {
		body.GenerationConfig.MaxOutputTokens = uint(*request.MaxTokens) //nolint:gosec
	}
	if c.config.ThinkingBudget != 0 {
		body.GenerationConfig.ThinkingConfig = &ThinkingConfig{
			ThinkingBudget: c.config.ThinkingBudget,
		}
	}

	var out proto.Response
	for range llm.MaxToolRounds {
		resp, err := c.send(ctx, request.Model, body)
		if err != nil {
			return nil, err
		}
		out.Usage.Add(proto.Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
			Requests:     1,
		})
		if len(resp.Candidates) == 0 {
			return nil, llm.ErrNoContent
		}

		content := resp.Candidates[0].Content
		var text strings.Builder
		var results []Part
		for _, part := range content.Parts {
			if part.FunctionCall == nil {
				text.WriteString(part.Text)
				continue
			}
			call := part.FunctionCall
			msg, status := llm.CallTool(call.Name, call.Name, call.Args, request.ToolCaller)
			results = append(results, Part{FunctionResponse: &FunctionResponse{
				Name:     call.Name,
				Response: map[string]any{"content": msg.Content},
			}})
			out.ToolCalls = append(out.ToolCalls, status)
		}

		if len(results) == 0 {
			if text.Len() == 0 {
				return nil, llm.ErrNoContent
			}
			out.Content = text.String()
			return &out, nil
		}
		content.Role = "model"
		body.Contents = append(body.Contents, content, Content{Role: proto.RoleUser, Parts: results})
	}
	return nil, llm.ErrTooManyToolRounds
}

func (c *Client) send(ctx context.Context, model string, body MessageCompletionRequest) (*CompletionMessageResponse, error) {
	req, err := c.requestBuilder.Build(ctx, http.MethodPost, c.endpoint(model), body, http.Header{
		"Content-Type": []string{"application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if isFailureStatusCode(resp) {
		return nil, handleErrorResp(resp)
	}
	var result CompletionMessageResponse
	if err := c.unmarshaler.Decode(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	return &result, nil
}
