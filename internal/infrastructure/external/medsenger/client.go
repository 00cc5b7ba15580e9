package medsenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/medsenger/education-agent/pkg/circuitbreaker"
	"github.com/medsenger/education-agent/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Medsenger agent API client.
type ClientConfig struct {
	// Host is the Medsenger platform base URL (e.g. https://medsenger.ru)
	Host string

	// APIKey is the agent API key, sent in every request body
	APIKey string

	// AgentID is the platform-side id of this agent
	AgentID int

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Retrier controls retry behavior (default: MedsengerAPIRetrier)
	Retrier *retry.Retrier

	// Breaker protects the platform from hammering (default: MedsengerAPIBreaker)
	Breaker *circuitbreaker.CircuitBreaker

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(host, apiKey string) ClientConfig {
	return ClientConfig{
		Host:    host,
		APIKey:  apiKey,
		Timeout: 15 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Message describes an outbound chat message.
type Message struct {
	// Text is the message body shown in the chat
	Text string

	// ActionLink is an agent-relative page the recipient can open
	ActionLink string

	// ActionName is the button caption for the action link
	ActionName string

	// ActionDeadline is a Unix timestamp after which the action expires
	ActionDeadline int64

	// OnlyPatient hides the message from the doctor side
	OnlyPatient bool

	// OnlyDoctor hides the message from the patient side
	OnlyDoctor bool

	// IsUrgent marks the message as urgent on the platform
	IsUrgent bool
}

// Client is the Medsenger agent API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a new Medsenger client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Retrier == nil {
		config.Retrier = retry.MedsengerAPIRetrier()
	}
	if config.Breaker == nil {
		config.Breaker = circuitbreaker.MedsengerAPIBreaker(func(name string, from, to circuitbreaker.State) {
			config.Logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		})
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retrier: config.Retrier,
		breaker: config.Breaker,
		logger:  config.Logger,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SENDING MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// SendMessage delivers a chat message into a contract's dialogue.
func (c *Client) SendMessage(ctx context.Context, contractID int64, msg Message) error {
	body := sendMessageRequest{
		ContractID: contractID,
		APIKey:     c.config.APIKey,
		Message: messageDTO{
			Text:           msg.Text,
			ActionLink:     msg.ActionLink,
			ActionName:     msg.ActionName,
			ActionDeadline: msg.ActionDeadline,
			OnlyPatient:    msg.OnlyPatient,
			OnlyDoctor:     msg.OnlyDoctor,
			IsUrgent:       msg.IsUrgent,
		},
	}

	if err := c.post(ctx, "/api/agents/message", body); err != nil {
		return fmt.Errorf("send message to contract %d: %w", contractID, err)
	}

	return nil
}

// SendText is a convenience method for a plain text message.
func (c *Client) SendText(ctx context.Context, contractID int64, text string) error {
	return c.SendMessage(ctx, contractID, Message{Text: text})
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// post performs a JSON POST guarded by the circuit breaker, retrying
// transient failures.
func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			err := c.doSingleRequest(ctx, path, body)
			if err == nil {
				return nil
			}
			if isRetryable(err) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		})
	})
}

// doSingleRequest performs a single API call.
func (c *Client) doSingleRequest(ctx context.Context, path string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Host+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.config.Debug {
		c.logger.Debug("medsenger api call", "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var state stateResponse
		if json.Unmarshal(respBody, &state) == nil {
			apiErr.Description = state.Error
		}
		return apiErr
	}

	var state stateResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &state); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		if !state.isSuccess() {
			return &APIError{StatusCode: resp.StatusCode, Description: state.Error}
		}
	}

	return nil
}

// isRetryable checks if an error is worth another attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// 429 and 5xx are transient; other client errors are not.
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.IsServerError()
	}

	errStr := err.Error()
	for _, marker := range []string{"timeout", "connection refused", "temporary", "reset", "EOF"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the platform accepts this agent's key.
func (c *Client) IsHealthy(ctx context.Context) bool {
	err := c.doSingleRequest(ctx, "/api/agents/message", sendMessageRequest{
		APIKey: c.config.APIKey,
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// Any answer short of a server error means the platform is up.
		return !apiErr.IsServerError()
	}
	return err == nil
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
