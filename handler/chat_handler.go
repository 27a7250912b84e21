package handler

import (
	"net/http"

	"github.com/cmdf/pdfnote-be/service"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chat      service.ChatService
	websocket *service.WebSocketService
}

func NewChatHandler(chat service.ChatService, websocket *service.WebSocketService) *ChatHandler {
	return &ChatHandler{
		chat:      chat,
		websocket: websocket,
	}
}

func (h *ChatHandler) HandleListSessions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessions, err := h.chat.ListSessions(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *ChatHandler) HandleCreateSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "pdf_id is required")
		return
	}
	session, err := h.chat.CreateSession(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *ChatHandler) HandleDeleteSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.chat.DeleteSession(c.Request.Context(), userID, c.Param("session_id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) HandleHistory(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	msgs, err := h.chat.History(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) HandleSendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message is required")
		return
	}
	resp, err := h.chat.SendMessage(c.Request.Context(), userID, c.Param("session_id"), req.Message)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) HandleAsk(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "pdf_id is required")
		return
	}
	resp, err := h.chat.Ask(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleWebsocket checks the session before upgrading so unknown sessions
// get a plain 404.
func (h *ChatHandler) HandleWebsocket(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID := c.Param("session_id")
	if _, err := h.chat.GetSession(c.Request.Context(), userID, sessionID); err != nil {
		writeServiceError(c, err)
		return
	}
	h.websocket.HandleChat(c.Writer, c.Request, userID, sessionID)
}
