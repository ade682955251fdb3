package openai

import (
	"encoding/base64"
	"fmt"

	"github.com/aihelper/aihelper/internal/proto"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared/constant"
)

func fromMCPTools(mcps []mcp.Tool) []openai.ChatCompletionToolParam {
	var tools []openai.ChatCompletionToolParam
	for _, tool := range mcps {
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: constant.Function("function"),
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  proto.ToolParameters(tool),
			},
		})
	}
	return tools
}

func fromProtoMessages(input []proto.Message) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, msg := range input {
		switch msg.Role {
		case proto.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case proto.RoleTool:
			for _, call := range msg.ToolCalls {
				messages = append(messages, openai.ToolMessage(msg.Content, call.ID))
			}
		case proto.RoleUser:
			if msg.Attachment == nil {
				messages = append(messages, openai.UserMessage(msg.Content))
				continue
			}
			messages = append(messages, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(msg.Content),
				attachmentPart(*msg.Attachment),
			}))
		case proto.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	return messages
}

func dataURL(a proto.Attachment) string {
	return fmt.Sprintf("data:%s;base64,%s", a.MIMEType, base64.StdEncoding.EncodeToString(a.Data))
}

func attachmentPart(a proto.Attachment) openai.ChatCompletionContentPartUnionParam {
	if a.IsImage() {
		return openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(a),
		})
	}
	return openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
		FileData: openai.String(dataURL(a)),
		Filename: openai.String(a.Name),
	})
}
