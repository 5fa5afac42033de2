package delegate

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// HTTPBackend posts the photo as multipart form data to a detection service.
type HTTPBackend struct {
	Endpoint   string
	HTTPClient *http.Client
	logger     *zap.Logger
}

// NewHTTPBackend creates an HTTP backend.
func NewHTTPBackend(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPBackend {
	return &HTTPBackend{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     logging.Component(logger, "delegate_http"),
	}
}

// Name implements Backend.
func (b *HTTPBackend) Name() string { return BackendHTTP }

// Detect implements Backend.
func (b *HTTPBackend) Detect(ctx context.Context, req Request) ([]common.Candidate, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "meal.jpg")
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err := io.Copy(part, bytes.NewReader(req.Image)); err != nil {
		return nil, errors.Wrap(err, "copy image data")
	}
	fields := map[string]string{
		"user_id":          req.UserID,
		"text":             req.Text,
		"cultural_context": req.CulturalContext,
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, errors.Wrapf(err, "write field %s", k)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	resp, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "delegate request")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read delegate response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrStatus, "status %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}

	candidates, err := Normalize(payload)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("delegate response", zap.Int("candidates", len(candidates)))
	return candidates, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
