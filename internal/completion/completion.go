package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"discord-gpt-bot/internal/config"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	contextLengthExceededCode = "context_length_exceeded"
)

// Result classifies the outcome of a pipeline call.
type Result int8

const (
	ResultOK Result = iota
	ResultTooLong
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultTooLong:
		return "too_long"
	default:
		return "error"
	}
}

// Message is a single conversational turn as assembled by the caller.
type Message struct {
	User string
	Text string
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (m Message) Render() ChatMessage {
	return ChatMessage{Role: m.User, Content: m.Text}
}

// CompletionData carries either a reply (OK) or a status text (otherwise).
type CompletionData struct {
	Status     Result
	ReplyText  string
	StatusText string
}

// ImageCompletionData carries either a base64 image (OK) or a status text.
type ImageCompletionData struct {
	Status     Result
	ImageB64   string
	StatusText string
}

type Client struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewClient(cfg config.OpenAIConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 180 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type imageRequest struct {
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	Model          string `json:"model"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateCompletion posts the conversation to the chat completion endpoint
// and classifies the outcome. Exactly one request is made per call; all
// failures are logged here and returned as classifications, never as errors.
func (c *Client) GenerateCompletion(ctx context.Context, messages []Message) CompletionData {
	rendered := make([]ChatMessage, 0, len(messages))
	for _, message := range messages {
		rendered = append(rendered, message.Render())
	}

	status, body, err := c.post(ctx, c.cfg.Endpoint, chatRequest{
		Model:    c.cfg.Model,
		Messages: rendered,
	})
	if err != nil {
		zap.L().Error("completion request failed", zap.Error(err))
		return CompletionData{Status: ResultError, StatusText: err.Error()}
	}

	if status != http.StatusOK {
		result, statusText := classifyFailure(body)
		return CompletionData{Status: result, StatusText: statusText}
	}

	var parsed chatResponse
	if err = json.Unmarshal(body, &parsed); err != nil {
		zap.L().Error("malformed completion response", zap.Error(err))
		return CompletionData{Status: ResultError, StatusText: "malformed response: " + err.Error()}
	}

	if len(parsed.Choices) == 0 {
		zap.L().Error("malformed completion response", zap.String("body", string(body)))
		return CompletionData{Status: ResultError, StatusText: "malformed response: no choices"}
	}

	// empty content is still OK, the renderer substitutes a notice
	return CompletionData{Status: ResultOK, ReplyText: parsed.Choices[0].Message.Content}
}

// GenerateImage posts a single prompt to the image endpoint, requesting one
// base64-encoded image of the configured size.
func (c *Client) GenerateImage(ctx context.Context, prompt Message) ImageCompletionData {
	status, body, err := c.post(ctx, c.cfg.ImageEndpoint, imageRequest{
		Prompt:         prompt.Render().Content,
		N:              1,
		Size:           c.cfg.ImageSize,
		ResponseFormat: "b64_json",
		Model:          c.cfg.ImageModel,
	})
	if err != nil {
		zap.L().Error("image request failed", zap.Error(err))
		return ImageCompletionData{Status: ResultError, StatusText: err.Error()}
	}

	if status != http.StatusOK {
		result, statusText := classifyFailure(body)
		return ImageCompletionData{Status: result, StatusText: statusText}
	}

	var parsed imageResponse
	if err = json.Unmarshal(body, &parsed); err != nil {
		zap.L().Error("malformed image response", zap.Error(err))
		return ImageCompletionData{Status: ResultError, StatusText: "malformed response: " + err.Error()}
	}

	if len(parsed.Data) == 0 {
		zap.L().Error("malformed image response", zap.String("body", string(body)))
		return ImageCompletionData{Status: ResultError, StatusText: "malformed response: no image data"}
	}

	return ImageCompletionData{Status: ResultOK, ImageB64: parsed.Data[0].B64JSON}
}

func (c *Client) post(ctx context.Context, url string, payload any) (int, []byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	zap.L().Debug("api request", zap.String("url", url), zap.String("body", string(jsonBody)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return 0, nil, err
	}

	req.SetBasicAuth("", c.cfg.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

// classifyFailure maps a non-200 body to TOO_LONG or ERROR. The failure body
// shape is server-dependent, so the code is picked out dynamically and the
// raw payload carried verbatim as status text.
func classifyFailure(body []byte) (Result, string) {
	if gjson.GetBytes(body, "error.code").String() == contextLengthExceededCode {
		return ResultTooLong, string(body)
	}

	return ResultError, string(body)
}
