package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements ChatClient and Embedder on Google's Gemini models.
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string

	EmbedTimeout time.Duration
}

func NewGeminiClient(ctx context.Context, apiKey, model, embeddingModel string) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-1.5-flash" // free tier
	}
	if embeddingModel == "" {
		embeddingModel = "text-embedding-004"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
	}, nil
}

func (c *GeminiClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	callCtx, cancel := withCallTimeout(ctx, req.Timeout)
	defer cancel()

	m := c.client.GenerativeModel(c.model)
	m.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Parameters),
			})
		}
		m.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	var system []string
	history := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			content := &genai.Content{Role: "model"}
			if msg.Content != "" {
				content.Parts = append(content.Parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := map[string]any{}
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				content.Parts = append(content.Parts, genai.FunctionCall{Name: tc.Name, Args: args})
			}
			history = append(history, content)
		case RoleTool:
			resp := map[string]any{}
			if err := json.Unmarshal([]byte(msg.Content), &resp); err != nil {
				resp = map[string]any{"result": msg.Content}
			}
			history = append(history, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.FunctionResponse{Name: msg.Name, Response: resp}},
			})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(history) == 0 {
		return nil, llmError("gemini", errors.New("no user content"))
	}

	cs := m.StartChat()
	last := history[len(history)-1]
	cs.History = history[:len(history)-1]

	started := time.Now()
	resp, err := cs.SendMessage(callCtx, last.Parts...)
	if err != nil {
		return nil, llmError("gemini", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, llmError("gemini", errors.New("no content generated"))
	}

	out := &ChatResponse{Latency: time.Since(started), Model: c.model}
	var text strings.Builder
	for i, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			args, err := json.Marshal(p.Args)
			if err != nil {
				return nil, llmError("gemini", err)
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("%s_%d", p.Name, i),
				Name:      p.Name,
				Arguments: string(args),
			})
		}
	}
	out.Content = text.String()
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := withCallTimeout(ctx, c.EmbedTimeout)
	defer cancel()

	em := c.client.EmbeddingModel(c.embeddingModel)
	res, err := em.EmbedContent(callCtx, genai.Text(text))
	if err != nil {
		return nil, llmError("gemini embeddings", err)
	}
	if res.Embedding == nil {
		return nil, llmError("gemini embeddings", errors.New("empty embedding"))
	}
	return res.Embedding.Values, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// toGenaiSchema converts a JSON schema map into Gemini's schema type.
func toGenaiSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		switch t {
		case "object":
			s.Type = genai.TypeObject
		case "array":
			s.Type = genai.TypeArray
		case "string":
			s.Type = genai.TypeString
		case "integer":
			s.Type = genai.TypeInteger
		case "number":
			s.Type = genai.TypeNumber
		case "boolean":
			s.Type = genai.TypeBoolean
		}
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	switch enum := m["enum"].(type) {
	case []string:
		s.Enum = enum
	case []any:
		for _, v := range enum {
			if str, ok := v.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if len(s.Enum) > 0 {
		s.Format = "enum"
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, v := range req {
			if str, ok := v.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(sub)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	return s
}
