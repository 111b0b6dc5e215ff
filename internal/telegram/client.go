package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultAPIBase = "https://api.telegram.org"

// Client talks to the Telegram Bot API. All calls carry bounded timeouts
// and treat upstream failure as a recoverable error.
type Client struct {
	http  *resty.Client
	files *resty.Client
	token string
	log   *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIBase overrides the Bot API base URL (used in tests).
func WithAPIBase(base string) ClientOption {
	return func(c *Client) {
		c.http.SetBaseURL(base + "/bot" + c.token)
		c.files.SetBaseURL(base + "/file/bot" + c.token)
	}
}

// NewClient creates a Bot API client for the given token.
func NewClient(token string, log *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		token: token,
		log:   log,
	}
	c.http = resty.New().
		SetBaseURL(defaultAPIBase + "/bot" + token).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	c.files = resty.New().
		SetBaseURL(defaultAPIBase + "/file/bot" + token).
		SetTimeout(30 * time.Second)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

// call performs one Bot API method call and decodes the result into out
// (which may be nil).
func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	var envelope apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&envelope).
		SetError(&envelope).
		Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	if resp.IsError() || !envelope.OK {
		return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode(), envelope.Description)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// sendMessageRequest is the sendMessage payload.
type sendMessageRequest struct {
	ChatID      int64  `json:"chat_id"`
	Text        string `json:"text"`
	ParseMode   string `json:"parse_mode,omitempty"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

// SendMessage sends a text reply. markup may be a ReplyKeyboardMarkup,
// an InlineKeyboardMarkup, or nil.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup any) error {
	return c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	}, nil)
}

// GetFile resolves a file id into a download path.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	var f File
	err := c.call(ctx, "getFile", map[string]string{"file_id": fileID}, &f)
	return f, err
}

// DownloadFile fetches the bytes of a resolved file path. Returns the
// body and the upstream content type.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, string, error) {
	resp, err := c.files.R().
		SetContext(ctx).
		Get("/" + filePath)
	if err != nil {
		return nil, "", fmt.Errorf("telegram download: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("telegram download: status %d", resp.StatusCode())
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

// SetWebhook registers the public webhook URL with the Bot API.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.call(ctx, "setWebhook", map[string]string{"url": url}, nil)
}
