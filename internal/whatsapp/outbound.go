package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to the WhatsApp Cloud API messages endpoint.
type Client struct {
	baseURL string
	phoneID string
	token   string
	client  *http.Client
	log     *zap.Logger
}

type ClientConfig struct {
	BaseURL       string // https://graph.facebook.com
	APIVersion    string // v18.0
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
}

// APIError is a non-2xx answer from the Cloud API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: %d body=%s", e.Status, e.Body)
}

func NewClient(cfg ClientConfig, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v18.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/" + cfg.APIVersion,
		phoneID: cfg.PhoneNumberID,
		token:   cfg.AccessToken,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log,
	}
}

type Button struct {
	ID    string
	Title string
}

type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

func (c *Client) SendText(ctx context.Context, to, text string) error {
	return c.send(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": text},
	})
}

// SendButtons sends up to three reply buttons under body.
func (c *Client) SendButtons(ctx context.Context, to, header, body string, buttons []Button) error {
	if len(buttons) > 3 {
		buttons = buttons[:3]
	}

	actions := make([]map[string]any, 0, len(buttons))
	for i, b := range buttons {
		id := b.ID
		if id == "" {
			id = fmt.Sprintf("btn_%d", i)
		}
		actions = append(actions, map[string]any{
			"type":  "reply",
			"reply": map[string]string{"id": id, "title": b.Title},
		})
	}

	interactive := map[string]any{
		"type":   "button",
		"body":   map[string]string{"text": body},
		"action": map[string]any{"buttons": actions},
	}
	if header != "" {
		interactive["header"] = map[string]string{"type": "text", "text": header}
	}

	return c.sendInteractive(ctx, to, interactive)
}

func (c *Client) SendList(ctx context.Context, to, header, body, buttonText string, sections []Section) error {
	interactive := map[string]any{
		"type": "list",
		"body": map[string]string{"text": body},
		"action": map[string]any{
			"button":   buttonText,
			"sections": sections,
		},
	}
	if header != "" {
		interactive["header"] = map[string]string{"type": "text", "text": header}
	}

	return c.sendInteractive(ctx, to, interactive)
}

func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return c.send(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	})
}

func (c *Client) sendInteractive(ctx context.Context, to string, interactive map[string]any) error {
	return c.send(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive":       interactive,
	})
}

func (c *Client) send(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/"+c.phoneID+"/messages",
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("whatsapp send rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return nil
}
