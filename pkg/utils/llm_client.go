package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type ChatMessage struct {
	Role       string
	Content    string
	Name       string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolSpec describes one callable function offered to the model. Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one tool invocation requested by the model. Arguments holds raw JSON.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type ChatRequest struct {
	Messages    []ChatMessage
	Tools       []ToolSpec
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
	Latency   time.Duration
	Model     string
}

type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func llmError(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrLLM, provider, err)
}

// InlineToolCalls recovers tool calls from a text answer shaped like
// {"tool_calls":[{"name":"...","arguments":{...}}]} for models that ignore native function calling.
func InlineToolCalls(content string) []ToolCall {
	cleaned := CleanJSONResponse(content)
	if !strings.HasPrefix(cleaned, "{") {
		return nil
	}

	var payload struct {
		ToolCalls []struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"tool_calls"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil
	}

	calls := make([]ToolCall, 0, len(payload.ToolCalls))
	for i, tc := range payload.ToolCalls {
		if tc.Name == "" {
			continue
		}
		args := string(tc.Arguments)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, ToolCall{ID: fmt.Sprintf("inline_%d", i), Name: tc.Name, Arguments: args})
	}
	return calls
}

// CleanJSONResponse strips markdown fences and surrounding prose from a model answer,
// returning the first balanced JSON object or array.
func CleanJSONResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```JSON", "")
	response = strings.ReplaceAll(response, "```", "")
	response = strings.TrimSpace(response)

	objStart := strings.Index(response, "{")
	arrStart := strings.Index(response, "[")

	if objStart != -1 && (arrStart == -1 || objStart < arrStart) {
		if end := findMatching(response, objStart, '{', '}'); end != -1 {
			response = response[objStart : end+1]
		}
	} else if arrStart != -1 {
		if end := findMatching(response, arrStart, '[', ']'); end != -1 {
			response = response[arrStart : end+1]
		}
	}

	return strings.TrimSpace(response)
}

func findMatching(s string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// DisabledChatClient is used when no provider is configured; every call fails with ErrLLM.
type DisabledChatClient struct{}

func (DisabledChatClient) Chat(context.Context, ChatRequest) (*ChatResponse, error) {
	return nil, llmError("none", fmt.Errorf("no language model provider configured"))
}
