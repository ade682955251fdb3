// Package llm provides the uniform client abstraction every provider
// implements.
package llm

import (
	"context"
	"errors"

	"github.com/aihelper/aihelper/internal/proto"
)

// MaxToolRounds is the number of model round trips a single request may
// take while the model keeps asking for tools.
const MaxToolRounds = 10

// ErrNoContent happens when the client is returning no content.
var ErrNoContent = errors.New("no content")

// ErrTooManyToolRounds happens when the model is still calling tools after
// [MaxToolRounds] round trips.
var ErrTooManyToolRounds = errors.New("too many tool rounds")

// ErrAttachmentNotSupported happens when a provider cannot take the given
// attachment.
var ErrAttachmentNotSupported = errors.New("attachment not supported")

// Client sends one request to a model and returns its final answer, running
// any tool calls the model makes along the way.
type Client interface {
	Request(context.Context, proto.Request) (*proto.Response, error)
}

// CallTool calls a tool using the provided data and caller, and returns the
// resulting [proto.Message] and [proto.ToolCallStatus].
func CallTool(
	id, name string,
	data []byte,
	caller func(name string, data []byte) (string, error),
) (proto.Message, proto.ToolCallStatus) {
	var content string
	var err error
	if caller == nil {
		err = errors.New("no tools available")
	} else {
		content, err = caller(name, data)
	}
	if content == "" && err != nil {
		content = err.Error()
	}
	return proto.Message{
			Role:    proto.RoleTool,
			Content: content,
			ToolCalls: []proto.ToolCall{
				{
					ID:      id,
					IsError: err != nil,
					Function: proto.Function{
						Name:      name,
						Arguments: data,
					},
				},
			},
		},
		proto.ToolCallStatus{
			Name: name,
			Err:  err,
		}
}

// SystemPrompt returns the concatenated system messages.
func SystemPrompt(messages []proto.Message) string {
	var s string
	for _, m := range messages {
		if m.Role != proto.RoleSystem {
			continue
		}
		if s != "" {
			s += "\n\n"
		}
		s += m.Content
	}
	return s
}
