// Package proto shared protocol.
package proto

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCallStatus is the status of a tool call.
type ToolCallStatus struct {
	Name string
	Err  error
}

func (c ToolCallStatus) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("> Ran tool: `%s`\n", c.Name))
	if c.Err != nil {
		sb.WriteString(">\n> *Failed*:\n> ```\n")
		for line := range strings.SplitSeq(c.Err.Error(), "\n") {
			sb.WriteString("> " + line + "\n")
		}
		sb.WriteString("> ```\n")
	}
	return sb.String()
}

// Attachment is a binary payload sent along with the user prompt.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// IsImage reports whether the attachment is an image.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIMEType, "image/")
}

// IsPDF reports whether the attachment is a PDF document.
func (a Attachment) IsPDF() bool {
	return a.MIMEType == "application/pdf"
}

// Message is a message in the conversation.
type Message struct {
	Role       string
	Content    string
	Attachment *Attachment
	ToolCalls  []ToolCall
}

// ToolCall is a tool call in a message.
type ToolCall struct {
	ID       string
	Function Function
	IsError  bool
}

// Function is the function signature of a tool call.
type Function struct {
	Name      string
	Arguments []byte
}

// Usage is the token accounting of one request, summed over all the
// round trips it took.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
	Requests     int64 `json:"requests"`
}

// Add accumulates other into u. A zero total is derived from input and
// output.
func (u *Usage) Add(other Usage) {
	total := other.TotalTokens
	if total == 0 {
		total = other.InputTokens + other.OutputTokens
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += total
	u.Requests += other.Requests
}

// Request is a chat request.
type Request struct {
	Messages    []Message
	Model       string
	Tools       []mcp.Tool
	Temperature *float64
	MaxTokens   *int64
	// OutputSchema is the JSON schema the answer must conform to. When set
	// the provider is asked for a JSON object.
	OutputSchema json.RawMessage
	ToolCaller   func(name string, data []byte) (string, error)
}

// Response is the final answer of a request.
type Response struct {
	Content   string
	Usage     Usage
	ToolCalls []ToolCallStatus
}

// ToolNames returns the names of the tools called while producing the
// response, in call order.
func (r Response) ToolNames() []string {
	names := make([]string, 0, len(r.ToolCalls))
	for _, c := range r.ToolCalls {
		names = append(names, c.Name)
	}
	return names
}

// Transcript is the conversation that produced r: the request messages,
// one tool message per call and the final answer.
func (r Response) Transcript(messages []Message) Conversation {
	cc := slices.Clone(Conversation(messages))
	for i, call := range r.ToolCalls {
		msg := Message{
			Role:    RoleTool,
			Content: "ok",
			ToolCalls: []ToolCall{{
				ID:       fmt.Sprintf("call_%d", i),
				Function: Function{Name: call.Name},
			}},
		}
		if call.Err != nil {
			msg.Content = call.Err.Error()
			msg.ToolCalls[0].IsError = true
		}
		cc = append(cc, msg)
	}
	return append(cc, Message{Role: RoleAssistant, Content: r.Content})
}

// ToolParameters returns the JSON schema of the tool input as a map, the
// way every vendor SDK expects it.
func ToolParameters(tool mcp.Tool) map[string]any {
	params := map[string]any{}
	if len(tool.RawInputSchema) > 0 {
		_ = json.Unmarshal(tool.RawInputSchema, &params)
		return params
	}
	bts, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return params
	}
	_ = json.Unmarshal(bts, &params)
	if _, ok := params["type"]; !ok {
		params["type"] = "object"
	}
	return params
}

// Conversation is a conversation.
type Conversation []Message

// String renders the conversation as markdown.
func (cc Conversation) String() string {
	var sb strings.Builder
	for _, msg := range cc {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			sb.WriteString("**System**: ")
		case RoleUser:
			sb.WriteString("**User**: ")
		case RoleTool:
			for _, tool := range msg.ToolCalls {
				s := ToolCallStatus{Name: tool.Function.Name}
				if tool.IsError {
					s.Err = fmt.Errorf("%s", msg.Content)
				}
				sb.WriteString(s.String())
			}
			sb.WriteString("\n")
			continue
		case RoleAssistant:
			sb.WriteString("**Assistant**: ")
		}
		sb.WriteString(msg.Content)
		if msg.Attachment != nil {
			sb.WriteString(fmt.Sprintf(" [%s, %s]", msg.Attachment.Name, msg.Attachment.MIMEType))
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}
