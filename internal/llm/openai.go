package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	// maxToolRounds bounds how many times the model may call tools in one completion.
	maxToolRounds = 4
)

// OpenAIClient talks to OpenAI or any OpenAI-compatible endpoint
// (local inference servers, OpenRouter).
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client. The API key may only be
// empty when a custom base URL is used.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Complete sends a completion request. Tools are not offered.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, c.request(req, buildOpenAIMessages(req), false))
	if err != nil {
		return nil, err
	}

	var content, stopReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		stopReason = string(resp.Choices[0].FinishReason)
	}

	return &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   resp.Usage.PromptTokens,
		TokensOut:  resp.Usage.CompletionTokens,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// CompleteStream sends a streaming completion request. When the model asks
// for tools, they are called and the conversation continues in a new stream,
// for at most maxToolRounds rounds. Tool calls in a round without tools are
// ignored.
func (c *OpenAIClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	tools := make(map[string]Tool, len(req.Tools))
	for _, t := range req.Tools {
		tools[t.Definition().Name] = t
	}

	messages := buildOpenAIMessages(req)
	result := &CompletionResponse{Model: req.Model}
	var content strings.Builder
	index := 0

	for round := 0; ; round++ {
		withTools := len(tools) > 0 && round < maxToolRounds
		stream, err := c.client.CreateChatCompletionStream(ctx, c.request(req, messages, withTools))
		if err != nil {
			return nil, err
		}

		turn, err := relayOpenAIStream(stream, &content, &index, callback)
		stream.Close()
		if err != nil {
			return nil, err
		}

		result.TokensIn += turn.tokensIn
		result.TokensOut += turn.tokensOut
		result.StopReason = turn.stopReason
		if turn.model != "" {
			result.Model = turn.model
		}

		// Tool calls are only honoured on rounds that offered tools.
		if !withTools || len(turn.calls) == 0 {
			break
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   turn.content,
			ToolCalls: turn.calls,
		})
		for _, call := range turn.calls {
			result.ToolCalls++
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    callTool(ctx, tools, call.Function.Name, call.Function.Arguments),
				ToolCallID: call.ID,
			})
		}
	}

	result.Content = content.String()
	if result.TokensOut == 0 {
		// Not every compatible server reports usage while streaming.
		result.TokensOut = len(result.Content) / 4
	}
	result.LatencyMs = time.Since(start).Milliseconds()
	return result, nil
}

func (c *OpenAIClient) request(req *CompletionRequest, messages []openai.ChatCompletionMessage, withTools bool) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	out := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}
	if withTools {
		for _, t := range req.Tools {
			def := t.Definition()
			out.Tools = append(out.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  def.Parameters,
				},
			})
		}
	}
	return out
}

type openAITurn struct {
	content    string
	calls      []openai.ToolCall
	stopReason string
	model      string
	tokensIn   int
	tokensOut  int
}

// relayOpenAIStream forwards content deltas to callback and assembles
// tool calls, whose arguments arrive in fragments keyed by index.
func relayOpenAIStream(stream *openai.ChatCompletionStream, content *strings.Builder, index *int, callback StreamCallback) (*openAITurn, error) {
	turn := &openAITurn{}
	var turnContent strings.Builder
	var calls []openai.ToolCall

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if response.Model != "" {
			turn.model = response.Model
		}
		if response.Usage != nil {
			turn.tokensIn = response.Usage.PromptTokens
			turn.tokensOut = response.Usage.CompletionTokens
		}
		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]
		if delta := choice.Delta.Content; delta != "" {
			content.WriteString(delta)
			turnContent.WriteString(delta)
			if err := callback(delta, *index); err != nil {
				return nil, err
			}
			*index++
		}

		for _, fragment := range choice.Delta.ToolCalls {
			pos := len(calls)
			if fragment.Index != nil {
				pos = *fragment.Index
			}
			for len(calls) <= pos {
				calls = append(calls, openai.ToolCall{Type: openai.ToolTypeFunction})
			}
			if fragment.ID != "" {
				calls[pos].ID = fragment.ID
			}
			if fragment.Function.Name != "" {
				calls[pos].Function.Name = fragment.Function.Name
			}
			calls[pos].Function.Arguments += fragment.Function.Arguments
		}

		if choice.FinishReason != "" {
			turn.stopReason = string(choice.FinishReason)
		}
	}

	turn.content = turnContent.String()
	turn.calls = calls
	return turn, nil
}

func callTool(ctx context.Context, tools map[string]Tool, name, arguments string) string {
	tool, ok := tools[name]
	if !ok {
		return fmt.Sprintf("Unknown tool %q.", name)
	}
	return tool.Call(ctx, arguments)
}

func buildOpenAIMessages(req *CompletionRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return messages
}
