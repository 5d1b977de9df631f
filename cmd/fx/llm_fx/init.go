package llm_fx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"vivuplanner/internal/config"
	"vivuplanner/pkg/utils"
)

var Module = fx.Provide(provideLLM)

type Clients struct {
	fx.Out

	Chat     utils.ChatClient
	Embedder utils.Embedder
}

// provideLLM builds one provider client that serves both chat and embeddings.
// With provider "none" deep planning always falls back and memory uses hashed embeddings.
func provideLLM(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Clients, error) {
	llm := cfg.LLM
	log.Info("initializing llm client",
		zap.String("provider", llm.Provider),
		zap.String("model", llm.Model))

	switch strings.ToLower(llm.Provider) {
	case "openai":
		if llm.APIKey == "" {
			return Clients{}, errors.New("OPENAI_API_KEY is required when using OpenAI provider")
		}
		client := utils.NewOpenAIClient(llm.APIKey, llm.BaseURL, llm.Model, llm.EmbeddingModel)
		client.EmbedTimeout = llm.Timeout
		return Clients{Chat: client, Embedder: client}, nil
	case "gemini":
		if llm.APIKey == "" {
			return Clients{}, errors.New("GEMINI_API_KEY is required when using Gemini provider")
		}
		client, err := utils.NewGeminiClient(context.Background(), llm.APIKey, llm.Model, llm.EmbeddingModel)
		if err != nil {
			return Clients{}, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		client.EmbedTimeout = llm.Timeout
		lc.Append(fx.StopHook(client.Close))
		return Clients{Chat: client, Embedder: client}, nil
	default:
		return Clients{
			Chat:     utils.DisabledChatClient{},
			Embedder: utils.HashEmbedder{Dim: llm.EmbeddingDim},
		}, nil
	}
}
