package anthropic

import (
	"encoding/base64"
	"fmt"

	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mark3labs/mcp-go/mcp"
)

func fromMCPTools(mcps []mcp.Tool) []anthropic.ToolUnionParam {
	var tools []anthropic.ToolUnionParam
	for _, tool := range mcps {
		params := proto.ToolParameters(tool)
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: params["properties"],
				},
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
			},
		})
	}
	return tools
}

func fromProtoMessages(input []proto.Message) (system []anthropic.TextBlockParam, messages []anthropic.MessageParam, err error) {
	if s := llm.SystemPrompt(input); s != "" {
		system = append(system, anthropic.TextBlockParam{Text: s})
	}
	for _, msg := range input {
		switch msg.Role {
		case proto.RoleUser:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)}
			if msg.Attachment != nil {
				block, err := attachmentBlock(*msg.Attachment)
				if err != nil {
					return nil, nil, err
				}
				blocks = append(blocks, block)
			}
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		case proto.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return system, messages, nil
}

func attachmentBlock(a proto.Attachment) (anthropic.ContentBlockParamUnion, error) {
	data := base64.StdEncoding.EncodeToString(a.Data)
	switch {
	case a.IsImage():
		return anthropic.NewImageBlockBase64(a.MIMEType, data), nil
	case a.IsPDF():
		return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: data}), nil
	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("%w: %s", llm.ErrAttachmentNotSupported, a.MIMEType)
	}
}
