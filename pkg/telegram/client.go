package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"igrelay/pkg/config"
	errs "igrelay/pkg/errors"
	"igrelay/pkg/logger"
	"igrelay/pkg/models"
	"igrelay/pkg/ratelimit"
	"igrelay/pkg/retry"
)

// Client talks to the Telegram Bot API over HTTPS. Uploads go out as
// multipart/form-data; transient failures are retried with backoff and all
// sends share a token bucket so the bot stays under the API message budget.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    ratelimit.Limiter
	maxRetries int
	backoff    retry.BackoffStrategy
	logger     logger.Logger
}

// apiResponse is the envelope every Bot API method returns
type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// filePart is one file attached to a multipart request
type filePart struct {
	field string
	name  string
	data  []byte
}

// NewClient creates a Bot API client from the Telegram config section.
func NewClient(cfg *config.TelegramConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	perMinute := cfg.MessagesPerMinute
	if perMinute <= 0 {
		perMinute = 20
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL:    cfg.APIBaseURL,
		token:      cfg.Token,
		limiter:    ratelimit.NewTokenBucket(perMinute, time.Minute),
		maxRetries: cfg.MaxRetries,
		backoff:    retry.DefaultExponentialBackoff(),
		logger:     log,
	}
}

// SendPhoto delivers a single image with a caption to a chat
func (c *Client) SendPhoto(chatID string, file InputFile, caption string) error {
	fields := map[string]string{
		"chat_id": chatID,
		"caption": caption,
	}
	return c.invoke("sendPhoto", fields, []filePart{{field: "photo", name: file.Name, data: file.Data}})
}

// SendVideo delivers a single video with a caption to a chat
func (c *Client) SendVideo(chatID string, file InputFile, caption string) error {
	fields := map[string]string{
		"chat_id": chatID,
		"caption": caption,
	}
	return c.invoke("sendVideo", fields, []filePart{{field: "video", name: file.Name, data: file.Data}})
}

// SendMediaGroup delivers an album of 2-10 items to a chat. Files are
// uploaded alongside the media descriptors using attach:// references.
func (c *Client) SendMediaGroup(chatID string, media []InputMedia) error {
	type mediaDescriptor struct {
		Type    string `json:"type"`
		Media   string `json:"media"`
		Caption string `json:"caption,omitempty"`
	}

	descriptors := make([]mediaDescriptor, 0, len(media))
	files := make([]filePart, 0, len(media))
	for i, m := range media {
		field := fmt.Sprintf("file%d", i)
		kind := "photo"
		if m.Kind == models.MediaKindVideo {
			kind = "video"
		}
		descriptors = append(descriptors, mediaDescriptor{
			Type:    kind,
			Media:   "attach://" + field,
			Caption: m.Caption,
		})
		files = append(files, filePart{field: field, name: m.File.Name, data: m.File.Data})
	}

	encoded, err := json.Marshal(descriptors)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to encode media group: %v", err),
		}
	}

	fields := map[string]string{
		"chat_id": chatID,
		"media":   string(encoded),
	}
	return c.invoke("sendMediaGroup", fields, files)
}

// invoke performs one Bot API method call with rate limiting and retries.
// The multipart body is rebuilt for every attempt so a retry never reuses a
// consumed reader.
func (c *Client) invoke(method string, fields map[string]string, files []filePart) error {
	c.limiter.Wait()

	op := func() error {
		return c.doRequest(method, fields, files)
	}

	return retry.Do(op, &retry.Config{
		MaxAttempts: c.maxRetries,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Logger:      c.logger,
	})
}

// doRequest performs a single multipart POST to the Bot API
func (c *Client) doRequest(method string, fields map[string]string, files []filePart) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to write form field: %v", err),
			}
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.name)
		if err != nil {
			return &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to attach file: %v", err),
			}
		}
		if _, err := part.Write(file.data); err != nil {
			return &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to write file data: %v", err),
			}
		}
	}
	if err := writer.Close(); err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to finalize request body: %v", err),
		}
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	c.logger.DebugWithFields("sending Bot API request", map[string]interface{}{
		"method": method,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.ErrorWithFields("Bot API request failed", map[string]interface{}{
			"method":   method,
			"error":    err.Error(),
			"duration": duration,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		preview := string(respBody)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse Bot API response", map[string]interface{}{
			"method":       method,
			"status":       resp.StatusCode,
			"body_preview": preview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse response: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if !apiResp.OK {
		return c.apiError(method, &apiResp)
	}

	c.logger.DebugWithFields("Bot API request completed", map[string]interface{}{
		"method":   method,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return nil
}

// apiError maps a Bot API error response to the typed error taxonomy
func (c *Client) apiError(method string, resp *apiResponse) error {
	errType := errs.ErrorTypeUnknown
	switch {
	case resp.ErrorCode == http.StatusTooManyRequests:
		errType = errs.ErrorTypeRateLimit
	case resp.ErrorCode == http.StatusUnauthorized || resp.ErrorCode == http.StatusForbidden:
		errType = errs.ErrorTypeAuth
	case resp.ErrorCode == http.StatusNotFound:
		errType = errs.ErrorTypeNotFound
	case resp.ErrorCode == http.StatusBadRequest:
		errType = errs.ErrorTypeDelivery
	case resp.ErrorCode >= 500:
		errType = errs.ErrorTypeServerError
	}

	c.logger.WarnWithFields("Bot API returned an error", map[string]interface{}{
		"method":      method,
		"error_code":  resp.ErrorCode,
		"description": resp.Description,
	})

	return &errs.Error{
		Type:    errType,
		Message: resp.Description,
		Code:    resp.ErrorCode,
	}
}
