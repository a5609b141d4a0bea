package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient implements LLMClient against the OpenAI-compatible chat
// completions API (OpenAI itself, or any compatible endpoint reachable via
// BaseURL) using the official SDK.
type OpenAIClient struct {
	chat      openai.ChatCompletionService
	model     string
	maxTokens int64
}

// NewOpenAIClient builds an OpenAIClient. baseURL lets callers point at
// OpenAI-compatible providers without touching the rest of the pipeline.
func NewOpenAIClient(apiKey, model string, maxTokens int, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(3)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{chat: client.Chat.Completions, model: model, maxTokens: int64(maxTokens)}
}

func (c *OpenAIClient) SendMessage(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	params, err := c.prepareRequest(messages, tools)
	if err != nil {
		return nil, err
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}
	return decodeOpenAIResponse(resp), nil
}

func (c *OpenAIClient) StreamMessage(ctx context.Context, messages []Message, tools []ToolDef) (<-chan StreamEvent, error) {
	params, err := c.prepareRequest(messages, tools)
	if err != nil {
		return nil, err
	}
	stream := c.chat.NewStreaming(ctx, params)

	events := make(chan StreamEvent, 32)
	go func() {
		defer close(events)
		defer stream.Close()

		var usage *Usage
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				events <- StreamEvent{TextDelta: choice.Delta.Content}
			}
			if len(choice.Delta.ToolCalls) > 0 {
				deltas := make([]ToolCallDelta, 0, len(choice.Delta.ToolCalls))
				for _, tc := range choice.Delta.ToolCalls {
					d := ToolCallDelta{Index: int(tc.Index), ID: tc.ID, Type: "function"}
					d.Function.Name = tc.Function.Name
					d.Function.Arguments = tc.Function.Arguments
					deltas = append(deltas, d)
				}
				events <- StreamEvent{ToolCallDeltas: deltas}
			}
			if chunk.Usage.TotalTokens > 0 {
				usage = &Usage{
					PromptTokens:     int(chunk.Usage.PromptTokens),
					CompletionTokens: int(chunk.Usage.CompletionTokens),
					TotalTokens:      int(chunk.Usage.TotalTokens),
				}
			}
			if choice.FinishReason != "" {
				events <- StreamEvent{FinishReason: string(choice.FinishReason), Usage: usage, Done: true}
				if err := stream.Err(); err != nil {
					events <- StreamEvent{Err: fmt.Errorf("openai stream: %w", err)}
				}
				return
			}
		}
		if err := stream.Err(); err != nil {
			events <- StreamEvent{Err: fmt.Errorf("openai stream: %w", err)}
			return
		}
		events <- StreamEvent{Usage: usage, Done: true}
	}()

	return events, nil
}

func (c *OpenAIClient) prepareRequest(messages []Message, tools []ToolDef) (openai.ChatCompletionNewParams, error) {
	encoded := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			encoded = append(encoded, openai.SystemMessage(m.ContentString()))
		case "user":
			encoded = append(encoded, openai.UserMessage(m.ContentString()))
		case "tool":
			encoded = append(encoded, openai.ToolMessage(m.ContentString(), m.ToolCallID))
		case "assistant":
			asst := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != nil {
				asst.Content.OfString = openai.String(*m.Content)
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			encoded = append(encoded, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		Messages:            encoded,
		MaxCompletionTokens: openai.Int(c.maxTokens),
	}
	if len(tools) > 0 {
		params.Tools = make([]openai.ChatCompletionToolParam, 0, len(tools))
		for _, t := range tools {
			var schema map[string]any
			if err := json.Unmarshal(t.Function.Parameters, &schema); err != nil {
				return params, fmt.Errorf("openai: tool %s schema: %w", t.Function.Name, err)
			}
			params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        t.Function.Name,
					Description: openai.String(t.Function.Description),
					Parameters:  shared.FunctionParameters(schema),
				},
			})
		}
	}
	return params, nil
}

func decodeOpenAIResponse(resp *openai.ChatCompletion) *Response {
	choice := resp.Choices[0]
	var contentPtr *string
	if choice.Message.Content != "" {
		s := choice.Message.Content
		contentPtr = &s
	}
	calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return &Response{
		Message:      Message{Role: "assistant", Content: contentPtr, ToolCalls: calls},
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}
