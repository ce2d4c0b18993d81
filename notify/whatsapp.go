package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// WhatsAppSender delivers texts through the WhatsApp Cloud API.
type WhatsAppSender struct {
	client  *http.Client
	baseURL string
	token   string
	phoneID string
}

type WhatsAppConfig struct {
	Token   string
	PhoneID string
	// BaseURL overrides the Graph API endpoint, mainly for tests.
	BaseURL string
}

func NewWhatsAppSender(cfg WhatsAppConfig) (*WhatsAppSender, error) {
	if cfg.Token == "" || cfg.PhoneID == "" {
		return nil, fmt.Errorf("invalid WhatsApp configuration: token and phone id are required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	return &WhatsAppSender{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		token:   cfg.Token,
		phoneID: cfg.PhoneID,
	}, nil
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

func (s *WhatsAppSender) Send(ctx context.Context, address string, text string) error {
	payload := whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               address,
		Type:             "text",
		Text:             whatsAppText{Body: text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("message to %s rejected with status %d: %s", address, resp.StatusCode, detail)
	}
	return nil
}
