package handler

import (
	"net/http"

	"github.com/cmdf/pdfnote-be/service"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/gin-gonic/gin"
)

type HighlightHandler struct {
	highlights service.HighlightService
}

func NewHighlightHandler(highlights service.HighlightService) *HighlightHandler {
	return &HighlightHandler{highlights: highlights}
}

func (h *HighlightHandler) HandleListTags(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pdfID, ok := queryID(c, "pdf_id")
	if !ok {
		return
	}
	tags, err := h.highlights.ListTags(c.Request.Context(), userID, pdfID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (h *HighlightHandler) HandleCreateTag(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "pdf_id is required")
		return
	}
	tag, err := h.highlights.CreateTag(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (h *HighlightHandler) HandleUpdateTag(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "pk")
	if !ok {
		return
	}
	var req types.UpdateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	tag, err := h.highlights.UpdateTag(c.Request.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

func (h *HighlightHandler) HandleDeleteTag(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "pk")
	if !ok {
		return
	}
	if err := h.highlights.DeleteTag(c.Request.Context(), userID, id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HighlightHandler) HandleListHighlights(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pageID, ok := queryID(c, "page_id")
	if !ok {
		return
	}
	highlights, err := h.highlights.ListHighlights(c.Request.Context(), userID, pageID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, highlights)
}

func (h *HighlightHandler) HandleCreateHighlight(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.CreateHighlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "page_id is required")
		return
	}
	highlight, err := h.highlights.CreateHighlight(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, highlight)
}

func (h *HighlightHandler) HandleUpdateHighlight(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "pk")
	if !ok {
		return
	}
	var req types.UpdateHighlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	highlight, err := h.highlights.UpdateHighlight(c.Request.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, highlight)
}

func (h *HighlightHandler) HandleDeleteHighlight(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "pk")
	if !ok {
		return
	}
	if err := h.highlights.DeleteHighlight(c.Request.Context(), userID, id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
