package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Sender delivers magic-link login emails. Delivery failure is reported to
// the caller and never retried here.
type Sender interface {
	SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error
}

// HTTPSender posts messages to a transactional mail provider's JSON API.
type HTTPSender struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	from       string
}

var _ Sender = (*HTTPSender)(nil)

// NewHTTPSender constructs the default provider-backed sender.
func NewHTTPSender(client *http.Client, endpoint, apiKey, from string) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{httpClient: client, endpoint: endpoint, apiKey: apiKey, from: from}
}

func (s *HTTPSender) SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error {
	payload := map[string]string{
		"from":    s.from,
		"to":      to,
		"subject": "Your CommentKit login link",
		"text": fmt.Sprintf("Click to sign in: %s\n\nThis link expires in %d minutes and can be used once.",
			link, int(ttl.Minutes())),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail delivery failed: status=%d", resp.StatusCode)
	}
	return nil
}

// LogSender writes the link to the log instead of sending. Development only.
type LogSender struct {
	logger *zap.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.L()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error {
	s.logger.Info("magic link (mail delivery disabled)",
		zap.String("to", to),
		zap.String("link", link),
		zap.Duration("ttl", ttl),
	)
	return nil
}
