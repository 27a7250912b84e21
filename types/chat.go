package types

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn handed to an LLM provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type StreamHandler func(delta string)

type ChatSession struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	UserID    int64     `bson:"user_id" json:"user_id"`
	PDFID     int64     `bson:"pdf_id" json:"pdf_id"`
	Title     string    `bson:"title" json:"title"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type ChatMessage struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	SessionID string    `bson:"session_id" json:"session_id"`
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type CreateSessionRequest struct {
	PDFID int64  `json:"pdf_id" binding:"required"`
	Title string `json:"title"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

// AskRequest is a one-off question that is not stored in any session.
type AskRequest struct {
	PDFID   int64     `json:"pdf_id" binding:"required"`
	Message string    `json:"message"`
	History []Message `json:"history"`
	// Context is text the user selected in the viewer.
	Context string `json:"context"`
}

type SendMessageResponse struct {
	UserMessage string `json:"user_message"`
	BotReply    string `json:"bot_reply"`
	Status      string `json:"status"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

type WebsocketRequestType string

const (
	TypeWebsocketChat  WebsocketRequestType = "chat"
	TypeWebsocketChunk WebsocketRequestType = "chunk"
	TypeWebsocketDone  WebsocketRequestType = "done"
	TypeWebsocketError WebsocketRequestType = "error"
	TypeWebsocketPing  WebsocketRequestType = "ping"
	TypeWebsocketPong  WebsocketRequestType = "pong"
)

type WebsocketRequest struct {
	Type    WebsocketRequestType `json:"type"`
	Payload any                  `json:"payload"`
}

type WebSocketChatPayload struct {
	Message string `json:"message"`
}

type WebSocketResponse struct {
	Type    WebsocketRequestType `json:"type"`
	Payload any                  `json:"payload,omitempty"`
}

type WebSocketChatResponse struct {
	Message string `json:"message"`
}
