package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
)

func fromMCPTools(mcps []mcp.Tool) []api.Tool {
	var tools []api.Tool
	for _, tool := range mcps {
		t := api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
			},
		}
		bts, _ := json.Marshal(proto.ToolParameters(tool))
		_ = json.Unmarshal(bts, &t.Function.Parameters)
		tools = append(tools, t)
	}
	return tools
}

func fromProtoMessages(input []proto.Message) ([]api.Message, error) {
	messages := make([]api.Message, 0, len(input))
	for _, msg := range input {
		m := api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if a := msg.Attachment; a != nil {
			if !a.IsImage() {
				return nil, fmt.Errorf("ollama: %w: %s", llm.ErrAttachmentNotSupported, a.MIMEType)
			}
			m.Images = []api.ImageData{a.Data}
		}
		messages = append(messages, m)
	}
	return messages, nil
}
