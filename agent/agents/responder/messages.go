package responder

import (
	"github.com/cloudwego/eino/schema"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

func toSchemaMessages(msgs []statex.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case statex.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case statex.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case statex.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, toSchemaToolCalls(m.ToolCalls)))
		case statex.RoleTool:
			out = append(out, &schema.Message{
				Role:       schema.Tool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func toSchemaToolCalls(calls []statex.ToolCall) []schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, schema.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return out
}

func fromSchemaToolCalls(calls []schema.ToolCall) []statex.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]statex.ToolCall, 0, len(calls))
	for _, call := range calls {
		out = append(out, statex.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out
}
