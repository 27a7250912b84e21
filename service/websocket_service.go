package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsReadLimit   = 512 * 1024
	wsIdleTimeout = 60 * time.Second
	wsWriteWait   = 10 * time.Second
)

// WebSocketService streams chat replies for one session over a websocket.
type WebSocketService struct {
	chat     ChatService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewWebSocketService accepts upgrades from the given origins. An empty
// list or "*" allows any origin.
func NewWebSocketService(chat ChatService, allowedOrigins []string) *WebSocketService {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketService{
		chat: chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
			},
		},
		log: logger.WithComponent("websocket"),
	}
}

func (s *WebSocketService) HandleChat(w http.ResponseWriter, r *http.Request, userID int64, sessionID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	})

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Str("session_id", sessionID).Msg("websocket read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))

		var req types.WebsocketRequest
		if err := json.Unmarshal(p, &req); err != nil {
			s.writeError(conn, "invalid message")
			continue
		}

		switch req.Type {
		case types.TypeWebsocketChat:
			payload, err := decodeChatPayload(req.Payload)
			if err != nil {
				s.writeError(conn, "invalid chat payload")
				continue
			}
			s.streamReply(ctx, conn, userID, sessionID, payload.Message)
		case types.TypeWebsocketPing:
			s.write(conn, types.WebSocketResponse{Type: types.TypeWebsocketPong})
		default:
			s.writeError(conn, "unsupported message type")
		}
	}
}

func (s *WebSocketService) streamReply(ctx context.Context, conn *websocket.Conn, userID int64, sessionID, message string) {
	reply, err := s.chat.StreamMessage(ctx, userID, sessionID, message, func(delta string) {
		s.write(conn, types.WebSocketResponse{
			Type:    types.TypeWebsocketChunk,
			Payload: types.WebSocketChatResponse{Message: delta},
		})
	})
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("chat stream failed")
		s.writeError(conn, DetailMessage(err))
		return
	}
	s.write(conn, types.WebSocketResponse{
		Type:    types.TypeWebsocketDone,
		Payload: types.WebSocketChatResponse{Message: reply},
	})
}

func decodeChatPayload(raw any) (*types.WebSocketChatPayload, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var payload types.WebSocketChatPayload
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *WebSocketService) writeError(conn *websocket.Conn, msg string) {
	s.write(conn, types.WebSocketResponse{
		Type:    types.TypeWebsocketError,
		Payload: types.WebSocketChatResponse{Message: msg},
	})
}

func (s *WebSocketService) write(conn *websocket.Conn, resp types.WebSocketResponse) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(resp); err != nil {
		s.log.Warn().Err(err).Msg("websocket write failed")
	}
}
