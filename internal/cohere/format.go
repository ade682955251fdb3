package cohere

import (
	"github.com/aihelper/aihelper/internal/proto"
	cohere "github.com/cohere-ai/cohere-go/v2"
)

func fromProtoMessages(input []proto.Message) (history []*cohere.Message, message string) {
	messages := make([]*cohere.Message, 0, len(input))
	for _, msg := range input {
		switch msg.Role {
		case proto.RoleSystem:
			messages = append(messages, &cohere.Message{
				Role: "SYSTEM",
				System: &cohere.ChatMessage{
					Message: msg.Content,
				},
			})
		case proto.RoleAssistant:
			messages = append(messages, &cohere.Message{
				Role: "CHATBOT",
				Chatbot: &cohere.ChatMessage{
					Message: msg.Content,
				},
			})
		case proto.RoleUser:
			messages = append(messages, &cohere.Message{
				Role: "USER",
				User: &cohere.ChatMessage{
					Message: msg.Content,
				},
			})
		}
	}
	if len(messages) == 0 {
		return nil, ""
	}
	last := messages[len(messages)-1]
	if last.User == nil {
		return messages, ""
	}
	return messages[:len(messages)-1], last.User.Message
}
