package service

import (
	"context"
	"fmt"

	"github.com/cmdf/pdfnote-be/config"
	"github.com/cmdf/pdfnote-be/types"
)

// AIService is an LLM chat provider. Messages may start with a system turn.
type AIService interface {
	Chat(ctx context.Context, messages []types.Message) (string, error)
	ChatStream(ctx context.Context, messages []types.Message, handler types.StreamHandler) error
}

// NewAIService picks the provider named in cfg.LLM.Provider.
func NewAIService(cfg *config.Config) (AIService, error) {
	switch cfg.LLM.Provider {
	case "", "openai":
		return NewOpenAIService(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model), nil
	case "gemini":
		return NewGeminiService(cfg.Gemini.APIKeys, cfg.Gemini.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
