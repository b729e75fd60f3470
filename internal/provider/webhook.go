package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ricirt/chatpulse/internal/domain"
)

// SendRequest is the JSON body posted to the push gateway.
type SendRequest struct {
	Token          string            `json:"token"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Data           map[string]string `json:"data,omitempty"`
	Priority       string            `json:"priority"`
	AndroidChannel string            `json:"android_channel,omitempty"`
	Sound          string            `json:"sound,omitempty"`
	Badge          int               `json:"badge,omitempty"`
}

// errorBody is what the gateway returns alongside a 4xx.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WebhookProvider delivers pushes by POSTing JSON to an HTTP gateway.
// The base URL is injected from config so tests can point to httptest.
type WebhookProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookProvider(baseURL string, timeout time.Duration) *WebhookProvider {
	return &WebhookProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the message and expects 200 or 202 with a messageId.
//
//	4xx (except 429)      -> *domain.TransportError with the gateway's code
//	429, 5xx, net errors  -> domain.ErrTransportUnavailable
func (p *WebhookProvider) Send(ctx context.Context, msg *domain.PushMessage) (*SendResponse, error) {
	body, err := json.Marshal(SendRequest{
		Token:          msg.Token,
		Title:          msg.Title,
		Body:           msg.Body,
		Data:           msg.Data,
		Priority:       string(msg.Hints.Priority),
		AndroidChannel: msg.Hints.AndroidChannel,
		Sound:          msg.Hints.Sound,
		Badge:          msg.Hints.BadgeIncrement,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("send request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, unavailable("send request", fmt.Errorf("gateway status %d", resp.StatusCode))
	default:
		return nil, rejection(resp)
	}

	// The gateway has accepted the push at this point. An empty or
	// unreadable body only loses the message id.
	var sendResp SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return &SendResponse{}, nil
	}
	return &sendResp, nil
}

func rejection(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	if eb.Code == "" {
		switch resp.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			eb.Code = domain.CodeUnregistered
		default:
			eb.Code = fmt.Sprintf("http-%d", resp.StatusCode)
		}
	}
	if eb.Message == "" {
		eb.Message = http.StatusText(resp.StatusCode)
	}
	return &domain.TransportError{Code: eb.Code, Message: eb.Message}
}

var _ Provider = (*WebhookProvider)(nil)
