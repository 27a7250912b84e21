package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cmdf/pdfnote-be/config"
	"github.com/cmdf/pdfnote-be/logger"
	"github.com/rs/zerolog"
)

// OCRClient submits a document URL to the OCR service and returns the raw
// response body.
type OCRClient interface {
	Analyze(ctx context.Context, fileURL string) ([]byte, error)
}

type ocrAnalyzeRequest struct {
	FileURL string `json:"file_url"`
	Timeout int    `json:"timeout"`
}

// HTTPOCRClient talks to the OCR service over HTTP. It never retries.
type HTTPOCRClient struct {
	endpoint       string
	requestTimeout int
	httpClient     *http.Client
	log            zerolog.Logger
}

func NewHTTPOCRClient(cfg config.OCRConfig) *HTTPOCRClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 120
	}
	return &HTTPOCRClient{
		endpoint:       cfg.Endpoint,
		requestTimeout: requestTimeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.WithComponent("ocr_client"),
	}
}

func (c *HTTPOCRClient) Analyze(ctx context.Context, fileURL string) ([]byte, error) {
	payload, err := json.Marshal(ocrAnalyzeRequest{FileURL: fileURL, Timeout: c.requestTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to encode ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &OCRGatewayError{Op: "ocr request", Err: fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", c.endpoint).Msg("ocr request failed")
		return nil, &OCRGatewayError{Op: "ocr request", Err: fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &OCRGatewayError{Op: "ocr response", Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(body), 2000)).
			Msg("ocr service returned an error status")
		return nil, &OCRGatewayError{
			Op:     "ocr response",
			Status: resp.StatusCode,
			Raw:    string(body),
			Err:    ErrUpstreamUnavailable,
		}
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("ocr analysis received")
	return body, nil
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength] + "..."
}
