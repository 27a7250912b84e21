package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/middleware"
	"github.com/cmdf/pdfnote-be/service"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/gin-gonic/gin"
)

var log = logger.WithComponent("handler")

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrStorageForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrImportInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrUpstreamUnavailable),
		errors.Is(err, service.ErrMalformedUpstreamResponse),
		errors.Is(err, service.ErrStorageUnavailable),
		errors.Is(err, service.ErrLLM):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	var gwErr *service.OCRGatewayError
	if errors.As(err, &gwErr) {
		resp := types.OCRErrorResponse{Detail: "OCR service request failed"}
		// Network failures have no upstream reply to report.
		if gwErr.Status != 0 {
			resp.OCRStatus = &gwErr.Status
			resp.OCRRaw = &gwErr.Raw
		}
		c.JSON(status, resp)
		return
	}

	detail := detailFor(status, err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, types.DetailResponse{Detail: detail})
}

// detailFor is the client-facing message for err. Internal failures are
// not described beyond their category.
func detailFor(status int, err error) string {
	switch {
	case status == http.StatusNotFound:
		return "Not found."
	case status == http.StatusUnauthorized:
		return "Invalid credentials or token."
	case errors.Is(err, service.ErrPersistence):
		return "Failed to save OCR result."
	case errors.Is(err, service.ErrMalformedUpstreamResponse):
		return "OCR service returned an unusable response."
	case status == http.StatusForbidden:
		return "Storage access denied."
	case status == http.StatusBadGateway:
		return "Upstream service unavailable."
	case status >= http.StatusInternalServerError:
		return "Internal server error."
	default:
		return service.DetailMessage(err)
	}
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, types.DetailResponse{Detail: detail})
}

func currentUser(c *gin.Context) (int64, bool) {
	id, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, types.DetailResponse{Detail: "Authentication credentials were not provided."})
	}
	return id, ok
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, types.DetailResponse{Detail: "Not found."})
		return 0, false
	}
	return id, true
}

func queryID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	return id, true
}
