package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultRelayTimeout    = 5 * time.Second
	defaultRelayMaxTries   = 3
	defaultRelayMaxElapsed = 15 * time.Second
)

// RelaySender delivers codes through an HTTP mail relay. Transient failures
// are retried with capped exponential backoff; 4xx responses are treated as
// permanent.
type RelaySender struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// RelayOption configures the RelaySender.
type RelayOption func(*RelaySender)

// WithRelayClient overrides the HTTP client, mainly for tests.
func WithRelayClient(client *http.Client) RelayOption {
	return func(s *RelaySender) {
		if client != nil {
			s.client = client
		}
	}
}

// WithRelayLogger overrides the logger.
func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(s *RelaySender) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRelaySender constructs a sender posting to the given relay URL.
func NewRelaySender(url string, opts ...RelayOption) *RelaySender {
	s := &RelaySender{
		url:    url,
		client: &http.Client{Timeout: defaultRelayTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type relayRequest struct {
	To          string `json:"to"`
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

func (s *RelaySender) SendCode(ctx context.Context, email, code, displayName string) error {
	body, err := json.Marshal(relayRequest{To: email, Code: code, DisplayName: displayName})
	if err != nil {
		return fmt.Errorf("encode relay request: %w", err)
	}

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := s.post(ctx, body); err != nil {
			s.logger.WarnContext(ctx, "otp relay send failed",
				"attempt", attempt,
				"error", err,
			)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(defaultRelayMaxTries),
		backoff.WithMaxElapsedTime(defaultRelayMaxElapsed),
	)
	if err != nil {
		return fmt.Errorf("send code via relay: %w", err)
	}
	return nil
}

func (s *RelaySender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(fmt.Errorf("relay rejected send: %s", resp.Status))
	default:
		return fmt.Errorf("relay unavailable: %s", resp.Status)
	}
}
