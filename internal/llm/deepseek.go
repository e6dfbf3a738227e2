package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nyashahama/nlsql-queryengine/internal/apperr"
)

// DeepSeekClient is the concrete SQLGenerator backed by the DeepSeek API.
// DeepSeek exposes an OpenAI-compatible /v1/chat/completions endpoint, so
// the request/response shapes are standard OpenAI chat format, not
// Anthropic's. It exists as the documented fallback provider behind
// AnthropicClient.
type DeepSeekClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewDeepSeekClient returns a client that calls the DeepSeek API.
//   - apiKey: your DEEPSEEK_API_KEY
//   - model:  e.g. "deepseek-chat"
func NewDeepSeekClient(apiKey, model string, callTimeout time.Duration) *DeepSeekClient {
	return &DeepSeekClient{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: callTimeout,
		},
	}
}

// ─── OPENAI-COMPATIBLE API SHAPES ──────────────────────────────────────────

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat instructs the model to return valid JSON. DeepSeek
// honours {"type": "json_object"} the same way OpenAI does.
type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate implements SQLGenerator.
func (c *DeepSeekClient) Generate(ctx context.Context, params GenerateParams) (string, error) {
	reqBody := openAIRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []openAIMessage{
			{Role: "system", Content: sqlGenerationSystemPrompt},
			{Role: "user", Content: buildGenerationPrompt(params)},
		},
	}

	raw, err := c.call(ctx, reqBody)
	if err != nil {
		return "", err
	}

	sql := extractSQL(raw)
	if sql == "" {
		return "", apperr.LLMError("failed to extract SQL from model response: %.200s", raw)
	}
	return sql, nil
}

// DeepSeekResultValidator is the DeepSeek-backed ResultValidator, sharing
// its HTTP plumbing with a DeepSeekClient the same way
// AnthropicResultValidator shares an AnthropicClient.
type DeepSeekResultValidator struct {
	client *DeepSeekClient
	config ValidationConfig
}

// NewDeepSeekResultValidator builds a ResultValidator over an existing
// DeepSeekClient.
func NewDeepSeekResultValidator(client *DeepSeekClient, config ValidationConfig) *DeepSeekResultValidator {
	return &DeepSeekResultValidator{client: client, config: config}
}

// Validate implements ResultValidator.
func (v *DeepSeekResultValidator) Validate(ctx context.Context, question, sql string, sample []ResultRow, rowCount int) (ValidationResult, error) {
	if !v.config.Enabled {
		return ValidationResult{
			Confidence:   100,
			Explanation:  "validation is disabled in configuration",
			IsAcceptable: true,
		}, nil
	}

	sampleRows := sample
	if v.config.SampleRows > 0 && len(sampleRows) > v.config.SampleRows {
		sampleRows = sampleRows[:v.config.SampleRows]
	}

	reqBody := openAIRequest{
		Model:          v.client.model,
		MaxTokens:      500,
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
		Messages: []openAIMessage{
			{Role: "system", Content: resultValidationSystemPrompt},
			{Role: "user", Content: buildValidationPrompt(question, sql, sampleRows, rowCount)},
		},
	}

	raw, err := v.client.call(ctx, reqBody)
	if err != nil {
		return ValidationResult{}, err
	}

	result := parseValidationResponse(raw)
	result.IsAcceptable = result.Confidence >= v.config.ConfidenceThreshold
	return result, nil
}

// call sends one request to the DeepSeek chat completions endpoint and
// returns the text content of the first choice.
func (c *DeepSeekClient) call(ctx context.Context, reqBody openAIRequest) (string, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperr.LLMError("marshal request: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.deepseek.com/v1/chat/completions",
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", apperr.LLMError("build request: %s", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperr.LLMTimeout("DeepSeek API request timed out")
		}
		return "", apperr.LLMError("http request: %s", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperr.LLMError("read response: %s", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", apperr.LLMError("unmarshal response: %s", err)
	}

	if parsed.Error != nil {
		return "", classifyAPIError(parsed.Error.Type, parsed.Error.Message)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusTooManyRequests {
		return "", apperr.LLMUnavailable("DeepSeek API unavailable (status %d): %.200s", resp.StatusCode, string(respBytes))
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.LLMError("unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	if len(parsed.Choices) == 0 {
		return "", apperr.LLMError("no choices in response")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
