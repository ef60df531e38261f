package results

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docflow/internal/config"
	"docflow/internal/logging"
	"docflow/internal/services"
)

const userAgent = "Docflow-Go/0.1.0"

// SendResult reports what the sender did with one payload.
type SendResult struct {
	Delivered bool
	Skipped   bool
	Attempts  int
}

// Sender delivers result payloads to the configured endpoint. When
// delivery is disabled it becomes a no-op that reports Skipped.
type Sender struct {
	enabled       bool
	url           string
	mode          string
	includeReport bool
	headers       map[string]string
	retryCount    int
	retryDelay    time.Duration
	client        *http.Client
	logger        *slog.Logger
}

// NewSender builds a sender from configuration.
func NewSender(cfg *config.Config, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "results")

	timeout := time.Duration(cfg.Delivery.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retryCount := cfg.Delivery.RetryCount
	if retryCount <= 0 {
		retryCount = 1
	}

	return &Sender{
		enabled:       cfg.Delivery.Enabled,
		url:           strings.TrimSpace(cfg.Delivery.URL),
		mode:          cfg.Delivery.Mode,
		includeReport: cfg.Delivery.IncludeReport,
		headers:       cfg.DeliveryHeaders(),
		retryCount:    retryCount,
		retryDelay:    time.Duration(cfg.Delivery.RetryDelay) * time.Second,
		client:        &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// Send delivers the payload, attaching the report file when the mode
// carries one. Every attempt failure is retried up to the configured
// count with a fixed delay; the last error is returned once the
// budget is spent.
func (s *Sender) Send(ctx context.Context, payload Payload, reportPath string) (SendResult, error) {
	if !s.enabled {
		s.logger.Debug("delivery disabled, skipping", logging.String(logging.FieldTaskID, payload.TaskID))
		return SendResult{Skipped: true}, nil
	}

	mode := s.mode
	if !s.includeReport {
		reportPath = ""
	}
	if mode != "json" && reportPath != "" {
		if _, err := os.Stat(reportPath); err != nil {
			s.logger.Warn("report file unavailable, sending payload only",
				logging.String("path", reportPath),
				logging.Error(err),
			)
			reportPath = ""
		}
	}
	if reportPath == "" {
		mode = "json"
	}

	var lastErr error
	result := SendResult{}
	for attempt := 1; attempt <= s.retryCount; attempt++ {
		result.Attempts = attempt
		lastErr = s.sendOnce(ctx, mode, payload, reportPath)
		if lastErr == nil {
			result.Delivered = true
			return result, nil
		}
		s.logger.Warn("delivery attempt failed",
			logging.String(logging.FieldTaskID, payload.TaskID),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", s.retryCount),
			logging.Error(lastErr),
		)
		if attempt == s.retryCount {
			break
		}
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}
	return result, services.Wrap(services.ErrTransient, "results", "send",
		fmt.Sprintf("delivery failed after %d attempts", result.Attempts), lastErr)
}

func (s *Sender) sendOnce(ctx context.Context, mode string, payload Payload, reportPath string) error {
	switch mode {
	case "multipart":
		return s.sendMultipart(ctx, payload, reportPath)
	case "base64":
		return s.sendBase64(ctx, payload, reportPath)
	default:
		return s.sendJSON(ctx, payload)
	}
}

func (s *Sender) sendJSON(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return s.post(ctx, "application/json", bytes.NewReader(body))
}

func (s *Sender) sendBase64(ctx context.Context, payload Payload, reportPath string) error {
	content, err := os.ReadFile(reportPath)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	wrapped := envelope{
		Payload: payload,
		Attachment: &Attachment{
			Filename: filepath.Base(reportPath),
			Content:  base64.StdEncoding.EncodeToString(content),
			MimeType: mimeTypeFor(reportPath),
		},
	}
	body, err := json.Marshal(wrapped)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return s.post(ctx, "application/json", bytes.NewReader(body))
}

func (s *Sender) sendMultipart(ctx context.Context, payload Payload, reportPath string) error {
	file, err := os.Open(reportPath)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := writer.WriteField("payload", string(encoded)); err != nil {
		return fmt.Errorf("write payload part: %w", err)
	}

	part, err := writer.CreateFormFile("file", filepath.Base(reportPath))
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy report: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	return s.post(ctx, writer.FormDataContentType(), &buf)
}

func (s *Sender) post(ctx context.Context, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", contentType)
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func mimeTypeFor(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
