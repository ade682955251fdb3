package google

import (
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/mark3labs/mcp-go/mcp"
)

func fromProtoMessages(input []proto.Message) []Content {
	result := make([]Content, 0, len(input))
	for _, in := range input {
		switch in.Role {
		case proto.RoleUser:
			parts := []Part{{Text: in.Content}}
			if a := in.Attachment; a != nil {
				parts = append(parts, Part{InlineData: &InlineData{
					MimeType: a.MIMEType,
					Data:     a.Data,
				}})
			}
			result = append(result, Content{Role: proto.RoleUser, Parts: parts})
		case proto.RoleAssistant:
			result = append(result, Content{Role: "model", Parts: []Part{{Text: in.Content}}})
		}
	}
	return result
}

func fromMCPTools(mcps []mcp.Tool) []Tool {
	if len(mcps) == 0 {
		return nil
	}
	decls := make([]FunctionDeclaration, 0, len(mcps))
	for _, tool := range mcps {
		params := proto.ToolParameters(tool)
		if props, _ := params["properties"].(map[string]any); len(props) == 0 {
			params = nil
		}
		decls = append(decls, FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
		})
	}
	return []Tool{{FunctionDeclarations: decls}}
}
