// internal/telegram/client.go
//
// Minimal Bot API client: JSON POST per method, one response envelope.
// Only the methods the bot uses are wrapped.

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	apiBase     = "https://api.telegram.org"
	callTimeout = 15 * time.Second
)

// AllowedUpdates is the update filter registered for polling and webhooks.
var AllowedUpdates = []string{"message", "callback_query"}

// APIError is a response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(token string) *Client {
	return NewClientWithBase(token, apiBase, &http.Client{})
}

// NewClientWithBase points the client at another API root (tests, local Bot API server).
func NewClientWithBase(token, base string, hc *http.Client) *Client {
	return &Client{
		httpClient: hc,
		baseURL:    fmt.Sprintf("%s/bot%s", base, token),
	}
}

func (c *Client) call(ctx context.Context, method string, payload any, timeout time.Duration) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal %s (status %d): %w", method, resp.StatusCode, err)
	}
	if !apiResp.OK {
		apiErr := &APIError{Method: method, Code: apiResp.ErrorCode, Description: apiResp.Description}
		if apiResp.Parameters != nil {
			apiErr.RetryAfter = time.Duration(apiResp.Parameters.RetryAfter) * time.Second
		}
		return nil, apiErr
	}
	return apiResp.Result, nil
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	result, err := c.call(ctx, "getMe", struct{}{}, callTimeout)
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(result, &u); err != nil {
		return nil, fmt.Errorf("getMe: %w", err)
	}
	return &u, nil
}

// GetUpdates long-polls for up to timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	req := GetUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout.Seconds()),
		AllowedUpdates: AllowedUpdates,
	}
	result, err := c.call(ctx, "getUpdates", req, timeout+callTimeout)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	return updates, nil
}

// SendMessage sends req; markup may be nil.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest, markup any) (int64, error) {
	if markup != nil {
		rm, err := json.Marshal(markup)
		if err != nil {
			return 0, err
		}
		req.ReplyMarkup = rm
	}

	result, err := c.call(ctx, "sendMessage", req, callTimeout)
	if err != nil {
		return 0, err
	}
	var msg MessageResult
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("sendMessage: %w", err)
	}
	return msg.MessageID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	req := struct {
		ChatID    int64 `json:"chat_id"`
		MessageID int64 `json:"message_id"`
	}{ChatID: chatID, MessageID: messageID}
	_, err := c.call(ctx, "deleteMessage", req, callTimeout)
	return err
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error {
	req := AnswerCallbackQueryRequest{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       showAlert,
	}
	_, err := c.call(ctx, "answerCallbackQuery", req, callTimeout)
	return err
}

func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (*ChatMember, error) {
	req := struct {
		ChatID int64 `json:"chat_id"`
		UserID int64 `json:"user_id"`
	}{ChatID: chatID, UserID: userID}
	result, err := c.call(ctx, "getChatMember", req, callTimeout)
	if err != nil {
		return nil, err
	}
	var m ChatMember
	if err := json.Unmarshal(result, &m); err != nil {
		return nil, fmt.Errorf("getChatMember: %w", err)
	}
	return &m, nil
}

func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	req := SetWebhookRequest{URL: url, SecretToken: secretToken, AllowedUpdates: AllowedUpdates}
	_, err := c.call(ctx, "setWebhook", req, callTimeout)
	return err
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := c.call(ctx, "deleteWebhook", struct{}{}, callTimeout)
	return err
}
