package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements LLMClient against the Anthropic Messages API
// using the official SDK rather than hand-rolled SSE parsing.
type AnthropicClient struct {
	msg       sdk.MessageService
	model     string
	maxTokens int64
}

// NewAnthropicClient builds an AnthropicClient. baseURL is passed through
// only when non-default so tests and proxies can override it.
func NewAnthropicClient(apiKey, model string, maxTokens int, baseURL string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(3)}
	if baseURL != "" && baseURL != "https://api.anthropic.com/v1" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := sdk.NewClient(opts...)
	return &AnthropicClient{msg: client.Messages, model: model, maxTokens: int64(maxTokens)}
}

func (c *AnthropicClient) SendMessage(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	params, err := c.prepareRequest(messages, tools)
	if err != nil {
		return nil, err
	}
	resp, err := c.msg.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	return decodeAnthropicMessage(resp), nil
}

func (c *AnthropicClient) StreamMessage(ctx context.Context, messages []Message, tools []ToolDef) (<-chan StreamEvent, error) {
	params, err := c.prepareRequest(messages, tools)
	if err != nil {
		return nil, err
	}
	stream := c.msg.NewStreaming(ctx, params)

	events := make(chan StreamEvent, 32)
	go func() {
		defer close(events)
		defer stream.Close()

		toolBlocks := make(map[int64]*anthropicToolBuffer)
		var stopReason string

		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case sdk.ContentBlockStartEvent:
				if tu, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
					toolBlocks[ev.Index] = &anthropicToolBuffer{id: tu.ID, name: tu.Name}
				}
			case sdk.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case sdk.TextDelta:
					if delta.Text != "" {
						events <- StreamEvent{TextDelta: delta.Text}
					}
				case sdk.InputJSONDelta:
					if tb, ok := toolBlocks[ev.Index]; ok && delta.PartialJSON != "" {
						tb.args.WriteString(delta.PartialJSON)
						events <- StreamEvent{ToolCallDeltas: []ToolCallDelta{anthropicDelta(ev.Index, "", "", delta.PartialJSON)}}
					}
				}
			case sdk.ContentBlockStopEvent:
				if tb, ok := toolBlocks[ev.Index]; ok {
					// Emit the name/id once the block is complete; arguments
					// were already streamed incrementally above.
					events <- StreamEvent{ToolCallDeltas: []ToolCallDelta{anthropicDelta(ev.Index, tb.id, tb.name, "")}}
				}
			case sdk.MessageDeltaEvent:
				stopReason = string(ev.Delta.StopReason)
				events <- StreamEvent{
					Usage: &Usage{
						PromptTokens:     int(ev.Usage.InputTokens),
						CompletionTokens: int(ev.Usage.OutputTokens),
						TotalTokens:      int(ev.Usage.InputTokens + ev.Usage.OutputTokens),
					},
				}
			case sdk.MessageStopEvent:
				events <- StreamEvent{FinishReason: mapAnthropicStopReason(stopReason), Done: true}
			}
		}
		if err := stream.Err(); err != nil {
			events <- StreamEvent{Err: fmt.Errorf("anthropic stream: %w", err)}
		}
	}()

	return events, nil
}

// anthropicDelta mirrors the ToolCallDelta shape but lets the name/id arrive
// out of band from the argument fragments, since Anthropic reports the tool
// name on content_block_start and arguments via separate input_json_delta
// events rather than bundling them together the way OpenAI does.
func anthropicDelta(index int64, id, name, argsFragment string) ToolCallDelta {
	d := ToolCallDelta{Index: int(index), ID: id, Type: "function"}
	d.Function.Name = name
	d.Function.Arguments = argsFragment
	return d
}

type anthropicToolBuffer struct {
	id, name string
	args     strings.Builder
}

func mapAnthropicStopReason(reason string) string {
	switch reason {
	case "tool_use":
		return "tool_calls"
	case "max_tokens":
		return "length"
	case "end_turn", "stop_sequence":
		return "stop"
	default:
		return reason
	}
}

func (c *AnthropicClient) prepareRequest(messages []Message, tools []ToolDef) (sdk.MessageNewParams, error) {
	var system []sdk.TextBlockParam
	var encoded []sdk.MessageParam

	i := 0
	for i < len(messages) {
		m := messages[i]
		switch m.Role {
		case "system":
			system = append(system, sdk.TextBlockParam{Text: m.ContentString()})
			i++
		case "tool":
			var blocks []sdk.ContentBlockParamUnion
			for i < len(messages) && messages[i].Role == "tool" {
				blocks = append(blocks, sdk.NewToolResultBlock(messages[i].ToolCallID, messages[i].ContentString(), false))
				i++
			}
			encoded = append(encoded, sdk.NewUserMessage(blocks...))
		case "assistant":
			var blocks []sdk.ContentBlockParamUnion
			if m.Content != nil && *m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(*m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if tc.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
						input = map[string]any{}
					}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			encoded = append(encoded, sdk.NewAssistantMessage(blocks...))
			i++
		default: // "user"
			encoded = append(encoded, sdk.NewUserMessage(sdk.NewTextBlock(m.ContentString())))
			i++
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  encoded,
		System:    system,
	}
	if len(tools) > 0 {
		params.Tools = make([]sdk.ToolUnionParam, 0, len(tools))
		for _, t := range tools {
			var schema map[string]any
			if err := json.Unmarshal(t.Function.Parameters, &schema); err != nil {
				return params, fmt.Errorf("anthropic: tool %s schema: %w", t.Function.Name, err)
			}
			u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, t.Function.Name)
			if u.OfTool != nil {
				u.OfTool.Description = sdk.String(t.Function.Description)
			}
			params.Tools = append(params.Tools, u)
		}
	}
	return params, nil
}

func decodeAnthropicMessage(resp *sdk.Message) *Response {
	var text strings.Builder
	var calls []ToolCall
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case sdk.TextBlock:
			text.WriteString(b.Text)
		case sdk.ToolUseBlock:
			args, _ := json.Marshal(b.Input)
			calls = append(calls, ToolCall{
				ID:   b.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      b.Name,
					Arguments: string(args),
				},
			})
		}
	}
	var contentPtr *string
	if text.Len() > 0 {
		s := text.String()
		contentPtr = &s
	}
	return &Response{
		Message: Message{Role: "assistant", Content: contentPtr, ToolCalls: calls},
		FinishReason: mapAnthropicStopReason(string(resp.StopReason)),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}
