package emergencyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"telecare-sos/internal/models"
)

const (
	DefaultTimeout = 15 * time.Second

	sosAlertPath = "/emergency/sos-alert"
	healthPath   = "/emergency/health"
	testPath     = "/emergency/test"
	contactsPath = "/emergency/contacts/"
)

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	AuthToken string
	UserAgent string
}

// Client talks to the emergency backend. Every request is bounded by the
// configured timeout; a zero timeout is replaced with DefaultTimeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
	userAgent  string
}

type apiEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewClient(config *Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("emergency api base url is required")
	}
	if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid emergency api base url: %w", err)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "telecare-sos-agent"
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		authToken:  config.AuthToken,
		userAgent:  userAgent,
	}, nil
}

func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

func (c *Client) SendSOSAlert(ctx context.Context, payload *models.SOSAlertPayload) (*models.SOSResponse, error) {
	var response models.SOSResponse
	if err := c.do(ctx, "send_sos_alert", http.MethodPost, sosAlertPath, payload, &response); err != nil {
		return nil, err
	}
	if response.AlertID == "" {
		response.AlertID = payload.AlertID
	}
	return &response, nil
}

func (c *Client) CheckHealth(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, healthPath, nil, nil)
}

func (c *Client) TestSystem(ctx context.Context) (*models.SystemCheck, error) {
	var check models.SystemCheck
	if err := c.do(ctx, "system_test", http.MethodPost, testPath, struct{}{}, &check); err != nil {
		return nil, err
	}
	return &check, nil
}

func (c *Client) GetEmergencyContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	var contacts []models.EmergencyContact
	path := contactsPath + url.PathEscape(userID)
	if err := c.do(ctx, "emergency_contacts", http.MethodGet, path, nil, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &NetworkError{Op: op, Message: "failed to encode request", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &NetworkError{Op: op, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Message: "request failed", Err: err, Timeout: isTimeout(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err, Timeout: isTimeout(err)}
	}

	var envelope apiEnvelope
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := http.StatusText(resp.StatusCode)
		if decodeErr == nil && envelope.Error != nil && envelope.Error.Message != "" {
			message = envelope.Error.Message
		}
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Message: message}
	}

	if decodeErr != nil {
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response body", Err: decodeErr}
	}
	if envelope.Status != "success" {
		message := envelope.Message
		if envelope.Error != nil && envelope.Error.Message != "" {
			message = envelope.Error.Message
		}
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Message: "backend rejected request: " + message}
	}

	if out != nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &NetworkError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response data", Err: err}
		}
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
