package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTool struct {
	mu    sync.Mutex
	calls []string
	reply string
}

func (t *recordingTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "web_search",
		Description: "search the web",
		Parameters:  map[string]any{"type": "object"},
	}
}

func (t *recordingTool) Call(_ context.Context, arguments string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, arguments)
	return t.reply
}

// sseServer answers each chat completion request with the next scripted list of chunks.
func sseServer(t *testing.T, rounds ...[]string) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []map[string]any
		call     int
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(body, &decoded)

		mu.Lock()
		requests = append(requests, decoded)
		chunks := rounds[call]
		call++
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func contentChunk(text, finish string) string {
	finishJSON := "null"
	if finish != "" {
		finishJSON = fmt.Sprintf("%q", finish)
	}
	return fmt.Sprintf(`{"id":"c","object":"chat.completion.chunk","created":1,"model":"local-model","choices":[{"index":0,"delta":{"content":%q},"finish_reason":%s}]}`, text, finishJSON)
}

func TestOpenAIClient_RequiresKeyWithoutBaseURL(t *testing.T) {
	_, err := NewOpenAIClient("", "")
	assert.Error(t, err)

	_, err = NewOpenAIClient("", "http://127.0.0.1:11434/v1")
	assert.NoError(t, err)
}

func TestOpenAIClient_CompleteStream(t *testing.T) {
	srv, requests := sseServer(t, []string{
		contentChunk("Hel", ""),
		contentChunk("lo", ""),
		contentChunk("!", "stop"),
	})

	client, err := NewOpenAIClient("", srv.URL)
	require.NoError(t, err)

	var tokens []string
	resp, err := client.CompleteStream(context.Background(), &CompletionRequest{
		Model:    "local-model",
		System:   "be nice",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	}, func(token string, index int) error {
		assert.Equal(t, len(tokens), index)
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo", "!"}, tokens)
	assert.Equal(t, "Hello!", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, "local-model", resp.Model)

	require.Len(t, *requests, 1)
	messages := (*requests)[0]["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "be nice", messages[0].(map[string]any)["content"])
	assert.NotContains(t, (*requests)[0], "tools")
}

func TestOpenAIClient_CompleteStreamCallsTools(t *testing.T) {
	srv, requests := sseServer(t,
		[]string{
			`{"id":"c","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"web_search","arguments":"{\"query\""}}]},"finish_reason":null}]}`,
			`{"id":"c","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"weather\"}"}}]},"finish_reason":"tool_calls"}]}`,
		},
		[]string{
			contentChunk("Sunny", ""),
			contentChunk(".", "stop"),
		},
	)

	client, err := NewOpenAIClient("key", srv.URL)
	require.NoError(t, err)

	tool := &recordingTool{reply: "It is sunny."}
	var tokens []string
	resp, err := client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "weather?"}},
		Tools:    []Tool{tool},
	}, func(token string, _ int) error {
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{`{"query":"weather"}`}, tool.calls)
	assert.Equal(t, []string{"Sunny", "."}, tokens)
	assert.Equal(t, "Sunny.", resp.Content)
	assert.Equal(t, 1, resp.ToolCalls)

	require.Len(t, *requests, 2)
	assert.Contains(t, (*requests)[0], "tools")
	followUp := (*requests)[1]["messages"].([]any)
	last := followUp[len(followUp)-1].(map[string]any)
	assert.Equal(t, "tool", last["role"])
	assert.Equal(t, "It is sunny.", last["content"])
	assert.Equal(t, "call_1", last["tool_call_id"])
}

func TestOpenAIClient_CallbackErrorStopsStream(t *testing.T) {
	srv, _ := sseServer(t, []string{
		contentChunk("a", ""),
		contentChunk("b", "stop"),
	})

	client, err := NewOpenAIClient("", srv.URL)
	require.NoError(t, err)

	stop := errors.New("client gone")
	_, err = client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	}, func(string, int) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient("", srv.URL)
	require.NoError(t, err)

	_, err = client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	}, func(string, int) error { return nil })
	assert.Error(t, err)
}

func TestUnknownTool(t *testing.T) {
	got := callTool(context.Background(), map[string]Tool{}, "missing", "{}")
	assert.Contains(t, got, "missing")
}

// toolCallingServer answers every request with a web_search tool call.
func toolCallingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	requests := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"id":"c","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call","type":"function","function":{"name":"web_search","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func TestOpenAIClient_ToolRoundsAreBounded(t *testing.T) {
	srv, requests := toolCallingServer(t)

	client, err := NewOpenAIClient("", srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tool := &recordingTool{reply: "result"}
	resp, err := client.CompleteStream(ctx, &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "search forever"}},
		Tools:    []Tool{tool},
	}, func(string, int) error { return nil })
	require.NoError(t, err)

	assert.Len(t, tool.calls, maxToolRounds)
	assert.Equal(t, maxToolRounds, resp.ToolCalls)
	assert.Equal(t, int32(maxToolRounds+1), requests.Load())
	assert.Empty(t, resp.Content)
}

func TestOpenAIClient_IgnoresToolCallsWithoutTools(t *testing.T) {
	srv, requests := toolCallingServer(t)

	client, err := NewOpenAIClient("", srv.URL)
	require.NoError(t, err)

	resp, err := client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	}, func(string, int) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, int32(1), requests.Load())
	assert.Zero(t, resp.ToolCalls)
}
