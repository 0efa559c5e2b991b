package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/medwait/waitline/backend/pkg/config"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// DeliveryError is a classified failure from the SMS transport. Retryable
// errors (timeouts, transient unavailability, rate limiting) are worth another
// attempt; permanent ones (malformed phone, oversized message, bad
// credentials) are not.
type DeliveryError struct {
	Code      string
	Message   string
	Retryable bool
}

// Error implements the error interface
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error (%s): %s", e.Code, e.Message)
}

// IsRetryable reports whether a send failure is worth another attempt.
// Unclassified errors are treated as transient.
func IsRetryable(err error) bool {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Retryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// SMSGatewaySender sends messages via an HTTP SMS gateway
type SMSGatewaySender struct {
	apiKey           string
	senderID         string
	maxMessageLength int
	httpClient       *http.Client
	baseURL          string
}

// NewSMSGatewaySender creates a new SMS gateway sender
func NewSMSGatewaySender(cfg *config.NotificationConfig) (*SMSGatewaySender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("SMS_API_KEY must be set")
	}

	return &SMSGatewaySender{
		apiKey:           cfg.APIKey,
		senderID:         cfg.SenderID,
		maxMessageLength: cfg.MaxMessageLength,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.GatewayURL,
	}, nil
}

// smsRequest represents an outbound message
type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

// smsResponse represents the gateway response
type smsResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Deliver sends one message and returns the gateway's message ID
func (s *SMSGatewaySender) Deliver(ctx context.Context, phone, message string) (string, error) {
	if !phonePattern.MatchString(phone) {
		return "", &DeliveryError{
			Code:      "invalid_phone",
			Message:   fmt.Sprintf("phone number %q is not deliverable", phone),
			Retryable: false,
		}
	}
	if len(message) > s.maxMessageLength {
		return "", &DeliveryError{
			Code:      "message_too_long",
			Message:   fmt.Sprintf("message length %d exceeds transport limit %d", len(message), s.maxMessageLength),
			Retryable: false,
		}
	}

	payload := smsRequest{
		To:   phone,
		From: s.senderID,
		Body: message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/messages", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Transport-level failures (timeouts, refused connections) are transient
		return "", &DeliveryError{
			Code:      "transport",
			Message:   err.Error(),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	var smsResp smsResponse
	if err := json.Unmarshal(body, &smsResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if smsResp.MessageID == "" {
		return "", fmt.Errorf("no message ID in gateway response")
	}

	return smsResp.MessageID, nil
}

// MessageStatus fetches the delivery status for an accepted message ID
func (s *SMSGatewaySender) MessageStatus(ctx context.Context, messageID string) (string, error) {
	url := fmt.Sprintf("%s/messages/%s", s.baseURL, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &DeliveryError{Code: "transport", Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	var smsResp smsResponse
	if err := json.Unmarshal(body, &smsResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return smsResp.Status, nil
}

// classifyStatus maps a gateway HTTP status to a classified delivery error
func classifyStatus(statusCode int, body string) *DeliveryError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &DeliveryError{Code: "rate_limited", Message: body, Retryable: true}
	case statusCode == http.StatusRequestTimeout:
		return &DeliveryError{Code: "timeout", Message: body, Retryable: true}
	case statusCode >= 500:
		return &DeliveryError{Code: "gateway_unavailable", Message: body, Retryable: true}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &DeliveryError{Code: "invalid_credentials", Message: body, Retryable: false}
	default:
		return &DeliveryError{
			Code:      fmt.Sprintf("gateway_rejected_%d", statusCode),
			Message:   body,
			Retryable: false,
		}
	}
}
