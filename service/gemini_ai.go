package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiService rotates through its API keys when a request fails.
type GeminiService struct {
	apiKeys    []string
	modelName  string
	currentKey int
	client     *genai.Client
	mu         sync.Mutex
	log        zerolog.Logger
}

func NewGeminiService(apiKeys []string, modelName string) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}

	service := &GeminiService{
		apiKeys:   apiKeys,
		modelName: modelName,
		log:       logger.WithComponent("gemini"),
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.initClient(); err != nil {
		return nil, err
	}
	return service, nil
}

// initClient must be called with mu held.
func (s *GeminiService) initClient() error {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

func (s *GeminiService) rotateAPIKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	if err := s.client.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close gemini client")
	}
	return s.initClient()
}

// model builds a generative model carrying the system turns as its system
// instruction.
func (s *GeminiService) model(system string) *genai.GenerativeModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	model := s.client.GenerativeModel(s.modelName)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return model
}

// splitMessages separates system text, prior turns and the final user
// prompt. Gemini only knows the "user" and "model" roles.
func splitMessages(messages []types.Message) (system string, history []*genai.Content, prompt string) {
	var systemParts []string
	var turns []types.Message
	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	if n := len(turns); n > 0 && turns[n-1].Role == types.RoleUser {
		prompt = turns[n-1].Content
		turns = turns[:n-1]
	}
	for _, msg := range turns {
		role := "user"
		if msg.Role == types.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Parts: []genai.Part{genai.Text(msg.Content)},
			Role:  role,
		})
	}
	return strings.Join(systemParts, "\n\n"), history, prompt
}

func (s *GeminiService) Chat(ctx context.Context, messages []types.Message) (string, error) {
	system, history, prompt := splitMessages(messages)
	send := func() (*genai.GenerateContentResponse, error) {
		chat := s.model(system).StartChat()
		chat.History = history
		return chat.SendMessage(ctx, genai.Text(prompt))
	}

	resp, err := send()
	if err != nil {
		s.log.Warn().Err(err).Msg("gemini request failed, rotating api key")
		if err := s.rotateAPIKey(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrLLM, err)
		}
		resp, err = send()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrLLM, err)
		}
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrLLM)
	}
	var content strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				content.WriteString(string(text))
			}
		}
	}
	return content.String(), nil
}

func (s *GeminiService) ChatStream(ctx context.Context, messages []types.Message, handler types.StreamHandler) error {
	system, history, prompt := splitMessages(messages)
	stream := func() *genai.GenerateContentResponseIterator {
		chat := s.model(system).StartChat()
		chat.History = history
		return chat.SendMessageStream(ctx, genai.Text(prompt))
	}

	iter := stream()
	received, retried := false, false
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			// Retry with another key only if nothing reached the caller yet.
			if received || retried {
				return fmt.Errorf("%w: %v", ErrLLM, err)
			}
			if err := s.rotateAPIKey(); err != nil {
				return fmt.Errorf("%w: %v", ErrLLM, err)
			}
			iter = stream()
			retried = true
			continue
		}

		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					received = true
					handler(string(text))
				}
			}
		}
	}
}
