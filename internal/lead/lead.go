package lead

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ragchat/internal/logging"

	"go.uber.org/zap"
)

// Contact is what gets forwarded for one lead. Empty fields are omitted.
type Contact struct {
	FirstName   string
	PhoneNumber string
	Message     string
}

// Logger posts contacts to a webhook on a best-effort basis.
type Logger struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
}

// NewLogger returns a Logger. With an empty webhookURL contacts are only logged locally.
func NewLogger(webhookURL string, timeout time.Duration, logger *zap.Logger) *Logger {
	return &Logger{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logging.OrNop(logger),
	}
}

// Log forwards c. Failures are logged and never returned.
func (l *Logger) Log(ctx context.Context, c Contact) {
	if l == nil {
		return
	}
	if l.webhookURL == "" {
		l.logger.Info("new user contact",
			zap.String("first_name", c.FirstName),
			zap.String("phone_number", c.PhoneNumber))
		return
	}
	if err := l.post(ctx, c); err != nil {
		l.logger.Warn("failed to log contact information",
			zap.String("first_name", c.FirstName), zap.Error(err))
		return
	}
	l.logger.Info("contact information logged", zap.String("first_name", c.FirstName))
}

func (l *Logger) post(ctx context.Context, c Contact) error {
	form := url.Values{}
	form.Set("firstName", c.FirstName)
	if c.PhoneNumber != "" {
		form.Set("phoneNumber", c.PhoneNumber)
	}
	if c.Message != "" {
		form.Set("message", c.Message)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.webhookURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
