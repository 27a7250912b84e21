package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/repository"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/rs/zerolog"
)

const (
	defaultHistoryLimit     = 10
	defaultContextCharLimit = 6000
	contextSearchLimit      = 5
)

const systemPromptTemplate = `You are an assistant that answers questions about the PDF document "%s".
Answer using the document excerpts below when they are relevant. If the excerpts do not contain the answer, say so instead of guessing. Reply in the language of the question.`

type ChatOptions struct {
	HistoryLimit     int
	ContextCharLimit int
}

type ChatService interface {
	CreateSession(ctx context.Context, userID int64, req *types.CreateSessionRequest) (*types.ChatSession, error)
	ListSessions(ctx context.Context, userID int64) ([]*types.ChatSession, error)
	DeleteSession(ctx context.Context, userID int64, sessionID string) error
	GetSession(ctx context.Context, userID int64, sessionID string) (*types.ChatSession, error)
	History(ctx context.Context, userID int64, sessionID string) ([]*types.ChatMessage, error)
	SendMessage(ctx context.Context, userID int64, sessionID, message string) (*types.SendMessageResponse, error)
	// StreamMessage passes reply deltas to handler and stores the exchange
	// once the reply is complete.
	StreamMessage(ctx context.Context, userID int64, sessionID, message string, handler types.StreamHandler) (string, error)
	Ask(ctx context.Context, userID int64, req *types.AskRequest) (*types.AskResponse, error)
}

type chatService struct {
	chatRepo repository.ChatRepo
	pdfRepo  repository.PDFRepo
	ocrRepo  repository.OCRRepo
	indexer  PageIndexer
	ai       AIService
	opts     ChatOptions
	now      func() time.Time
	log      zerolog.Logger
}

// NewChatService wires chat. indexer may be nil.
func NewChatService(
	chatRepo repository.ChatRepo,
	pdfRepo repository.PDFRepo,
	ocrRepo repository.OCRRepo,
	indexer PageIndexer,
	ai AIService,
	opts ChatOptions,
) ChatService {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.ContextCharLimit <= 0 {
		opts.ContextCharLimit = defaultContextCharLimit
	}
	return &chatService{
		chatRepo: chatRepo,
		pdfRepo:  pdfRepo,
		ocrRepo:  ocrRepo,
		indexer:  indexer,
		ai:       ai,
		opts:     opts,
		now:      time.Now,
		log:      logger.WithComponent("chat"),
	}
}

func (s *chatService) CreateSession(ctx context.Context, userID int64, req *types.CreateSessionRequest) (*types.ChatSession, error) {
	doc, err := s.pdfRepo.GetPDFForOwner(ctx, req.PDFID, userID)
	if err != nil {
		return nil, notFoundOr(err, "pdf %d", req.PDFID)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = doc.Title
	}
	now := s.now().UTC()
	session := &types.ChatSession{
		UserID:    userID,
		PDFID:     doc.ID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.chatRepo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *chatService) ListSessions(ctx context.Context, userID int64) ([]*types.ChatSession, error) {
	sessions, err := s.chatRepo.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *chatService) DeleteSession(ctx context.Context, userID int64, sessionID string) error {
	return notFoundOr(s.chatRepo.DeleteSession(ctx, userID, sessionID), "session %s", sessionID)
}

func (s *chatService) GetSession(ctx context.Context, userID int64, sessionID string) (*types.ChatSession, error) {
	return s.session(ctx, userID, sessionID)
}

func (s *chatService) History(ctx context.Context, userID int64, sessionID string) ([]*types.ChatMessage, error) {
	if _, err := s.session(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	msgs, err := s.chatRepo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func (s *chatService) SendMessage(ctx context.Context, userID int64, sessionID, message string) (*types.SendMessageResponse, error) {
	session, prompt, err := s.prepareSessionPrompt(ctx, userID, sessionID, message)
	if err != nil {
		return nil, err
	}
	reply, err := s.ai.Chat(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if err := s.saveExchange(ctx, session, message, reply); err != nil {
		return nil, err
	}
	return &types.SendMessageResponse{
		UserMessage: message,
		BotReply:    reply,
		Status:      "success",
	}, nil
}

func (s *chatService) StreamMessage(ctx context.Context, userID int64, sessionID, message string, handler types.StreamHandler) (string, error) {
	session, prompt, err := s.prepareSessionPrompt(ctx, userID, sessionID, message)
	if err != nil {
		return "", err
	}
	var reply strings.Builder
	err = s.ai.ChatStream(ctx, prompt, func(delta string) {
		reply.WriteString(delta)
		handler(delta)
	})
	if err != nil {
		return "", err
	}
	if err := s.saveExchange(ctx, session, message, reply.String()); err != nil {
		return "", err
	}
	return reply.String(), nil
}

func (s *chatService) Ask(ctx context.Context, userID int64, req *types.AskRequest) (*types.AskResponse, error) {
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return nil, validationError("message is required")
	}
	doc, err := s.pdfRepo.GetPDFForOwner(ctx, req.PDFID, userID)
	if err != nil {
		return nil, notFoundOr(err, "pdf %d", req.PDFID)
	}

	history := req.History
	if len(history) > s.opts.HistoryLimit {
		history = history[len(history)-s.opts.HistoryLimit:]
	}
	prompt := s.buildPrompt(ctx, doc, history, question, req.Context)

	answer, err := s.ai.Chat(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &types.AskResponse{Answer: answer}, nil
}

func (s *chatService) session(ctx context.Context, userID int64, sessionID string) (*types.ChatSession, error) {
	session, err := s.chatRepo.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, notFoundOr(err, "session %s", sessionID)
	}
	return session, nil
}

func (s *chatService) prepareSessionPrompt(ctx context.Context, userID int64, sessionID, message string) (*types.ChatSession, []types.Message, error) {
	if strings.TrimSpace(message) == "" {
		return nil, nil, validationError("message is required")
	}
	session, err := s.session(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.pdfRepo.GetPDFForOwner(ctx, session.PDFID, userID)
	if err != nil {
		return nil, nil, notFoundOr(err, "pdf %d", session.PDFID)
	}

	recent, err := s.chatRepo.RecentMessages(ctx, sessionID, s.opts.HistoryLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}
	history := make([]types.Message, 0, len(recent))
	for _, m := range recent {
		history = append(history, types.Message{Role: m.Role, Content: m.Content})
	}
	return session, s.buildPrompt(ctx, doc, history, message, ""), nil
}

func (s *chatService) saveExchange(ctx context.Context, session *types.ChatSession, message, reply string) error {
	now := s.now().UTC()
	err := s.chatRepo.AddMessages(ctx,
		&types.ChatMessage{SessionID: session.ID, Role: types.RoleUser, Content: message, CreatedAt: now},
		&types.ChatMessage{SessionID: session.ID, Role: types.RoleAssistant, Content: reply, CreatedAt: now.Add(time.Millisecond)},
	)
	if err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	if err := s.chatRepo.TouchSession(ctx, session.ID, now); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID).Msg("failed to touch session")
	}
	return nil
}

// buildPrompt assembles the system prompt with document context, the prior
// turns and the question.
func (s *chatService) buildPrompt(ctx context.Context, doc *types.PDF, history []types.Message, question, selected string) []types.Message {
	var system strings.Builder
	fmt.Fprintf(&system, systemPromptTemplate, doc.Title)
	if excerpts := s.retrieveContext(ctx, doc, question); excerpts != "" {
		system.WriteString("\n\nDocument excerpts:\n")
		system.WriteString(excerpts)
	}
	if selected = strings.TrimSpace(selected); selected != "" {
		system.WriteString("\n\nText selected by the user:\n")
		system.WriteString(truncateRunes(selected, s.opts.ContextCharLimit))
	}

	messages := make([]types.Message, 0, len(history)+2)
	messages = append(messages, types.Message{Role: types.RoleSystem, Content: system.String()})
	for _, m := range history {
		if m.Role != types.RoleUser && m.Role != types.RoleAssistant {
			continue
		}
		messages = append(messages, m)
	}
	return append(messages, types.Message{Role: types.RoleUser, Content: question})
}

// retrieveContext prefers vector search and falls back to the stored OCR
// output. Failures only reduce the context.
func (s *chatService) retrieveContext(ctx context.Context, doc *types.PDF, question string) string {
	var parts []string
	if s.indexer != nil {
		results, err := s.indexer.Search(ctx, doc.ID, question, contextSearchLimit)
		if err != nil {
			s.log.Warn().Err(err).Int64("pdf_id", doc.ID).Msg("context search failed")
		}
		for _, r := range results {
			parts = append(parts, fmt.Sprintf("[page %d] %s", r.PageNum, r.Content))
		}
	}

	if len(parts) == 0 {
		matches, err := s.ocrRepo.ListMatchedTexts(ctx, doc.ID)
		if err != nil {
			s.log.Warn().Err(err).Int64("pdf_id", doc.ID).Msg("failed to load matched texts")
		}
		for _, m := range matches {
			parts = append(parts, fmt.Sprintf("[page %d, figure] %s %s", m.PageNum, m.MatchedText, m.RawText))
		}
		pages, err := s.ocrRepo.ListPages(ctx, doc.ID)
		if err != nil {
			s.log.Warn().Err(err).Int64("pdf_id", doc.ID).Msg("failed to load pages")
		}
		for _, p := range pages {
			if text := strings.TrimSpace(p.Text); text != "" {
				parts = append(parts, fmt.Sprintf("[page %d] %s", p.PageNum, text))
			}
		}
	}

	return truncateRunes(strings.Join(parts, "\n"), s.opts.ContextCharLimit)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
