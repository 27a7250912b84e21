package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/cmdf/pdfnote-be/service"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/gin-gonic/gin"
)

// MaxUploadSize caps the multipart body of a document upload.
const MaxUploadSize = 50 << 20

type DocumentHandler struct {
	documents service.DocumentService
	importer  service.OCRImportService
}

func NewDocumentHandler(documents service.DocumentService, importer service.OCRImportService) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		importer:  importer,
	}
}

func (h *DocumentHandler) HandleUpload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	defer file.Close()

	doc, err := h.documents.Upload(c.Request.Context(), userID, &service.DocumentUpload{
		Title:       c.PostForm("title"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		File:        file,
		Size:        header.Size,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) HandleList(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docs, err := h.documents.List(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// HandleOCR runs the OCR import for a document. ?replace=true drops the
// rows of earlier imports first.
func (h *DocumentHandler) HandleOCR(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pdfID, ok := pathID(c, "pdf_id")
	if !ok {
		return
	}
	replace, _ := strconv.ParseBool(c.Query("replace"))

	resp, err := h.importer.Import(c.Request.Context(), userID, pdfID, service.ImportOptions{Replace: replace})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// HandleOCRPayload imports an OCR response supplied in the request body
// instead of calling the OCR service.
func (h *DocumentHandler) HandleOCRPayload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pdfID, ok := pathID(c, "pdf_id")
	if !ok {
		return
	}
	replace, _ := strconv.ParseBool(c.Query("replace"))

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize))
	if err != nil {
		badRequest(c, "could not read request body")
		return
	}
	resp, err := h.importer.ImportPayload(c.Request.Context(), userID, pdfID, body, service.ImportOptions{Replace: replace})
	if err != nil {
		if statusFor(err) == http.StatusBadGateway {
			// The payload came from the caller, not from upstream.
			badRequest(c, service.DetailMessage(err))
			return
		}
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DocumentHandler) HandleMatchedTexts(c *gin.Context) {
	h.listForPDF(c, func(userID, pdfID int64) (any, error) {
		return h.documents.MatchedTexts(c.Request.Context(), userID, pdfID)
	})
}

func (h *DocumentHandler) HandlePages(c *gin.Context) {
	h.listForPDF(c, func(userID, pdfID int64) (any, error) {
		return h.documents.Pages(c.Request.Context(), userID, pdfID)
	})
}

func (h *DocumentHandler) HandleFigures(c *gin.Context) {
	h.listForPDF(c, func(userID, pdfID int64) (any, error) {
		return h.documents.Figures(c.Request.Context(), userID, pdfID)
	})
}

func (h *DocumentHandler) HandleSearch(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "pdf_id and q are required")
		return
	}
	results, err := h.documents.Search(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *DocumentHandler) listForPDF(c *gin.Context, list func(userID, pdfID int64) (any, error)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pdfID, ok := pathID(c, "pdf_id")
	if !ok {
		return
	}
	items, err := list(userID, pdfID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
