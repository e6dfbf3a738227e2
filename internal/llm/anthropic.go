package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nyashahama/nlsql-queryengine/internal/apperr"
)

// anthropicEndpoint is the Messages API URL. It is a variable, not a
// constant, so tests can redirect it at an httptest server.
var anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// AnthropicClient is the concrete SQLGenerator backed by the Anthropic
// Messages API. AnthropicResultValidator builds the ResultValidator on top
// of it.
type AnthropicClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewAnthropicClient returns a client that calls the Anthropic API.
//   - apiKey: your ANTHROPIC_API_KEY
//   - model:  e.g. "claude-opus-4-6"
func NewAnthropicClient(apiKey, model string, callTimeout time.Duration) *AnthropicClient {
	return &AnthropicClient{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: callTimeout,
		},
	}
}

// ─── ANTHROPIC API SHAPES ──────────────────────────────────────────────────

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system"`
	Temperature float64            `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const sqlGenerationSystemPrompt = `You are a PostgreSQL expert. Given a database schema and a natural-language question, write a single read-only SQL statement (SELECT or WITH) that answers the question.

Rules:
- Only SELECT or WITH statements. Never write DDL or DML.
- Use only tables and columns present in the supplied schema.
- If a previous attempt and an error message are supplied, correct the SQL accordingly.
- Respond with exactly one SQL statement inside a single ` + "```sql" + ` fenced code block. No prose, no explanation.`

const resultValidationSystemPrompt = `You are validating whether a SQL query's results correctly answer a user's question.

Respond ONLY with valid JSON matching this exact schema, no markdown fences, no preamble:
{
  "confidence": <integer 0-100>,
  "explanation": "<one or two sentences>",
  "suggestion": "<optional improvement, or null>"
}`

// Generate implements SQLGenerator.
func (c *AnthropicClient) Generate(ctx context.Context, params GenerateParams) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    sqlGenerationSystemPrompt,
		Messages: []anthropicMessage{
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

// ValidationConfig tunes an AnthropicResultValidator. It mirrors the
// original's validation_config: a disabled validator skips the LLM call
// entirely and reports full confidence.
type ValidationConfig struct {
	Enabled             bool
	ConfidenceThreshold int
	SampleRows          int
}

// AnthropicResultValidator is the concrete ResultValidator backed by the
// Anthropic Messages API. It shares its HTTP plumbing with AnthropicClient
// but owns its own validation-specific configuration.
type AnthropicResultValidator struct {
	client *AnthropicClient
	config ValidationConfig
}

// NewAnthropicResultValidator builds a ResultValidator over an existing
// AnthropicClient (so both generation and validation share one API key,
// model, and HTTP client).
func NewAnthropicResultValidator(client *AnthropicClient, config ValidationConfig) *AnthropicResultValidator {
	return &AnthropicResultValidator{client: client, config: config}
}

// Validate implements ResultValidator.
func (v *AnthropicResultValidator) Validate(ctx context.Context, question, sql string, sample []ResultRow, rowCount int) (ValidationResult, error) {
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

	reqBody := anthropicRequest{
		Model:       v.client.model,
		MaxTokens:   500,
		Temperature: 0,
		System:      resultValidationSystemPrompt,
		Messages: []anthropicMessage{
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

// call sends one request to the Anthropic Messages API and returns the
// text content of the first content block, translating transport and API
// failures into the apperr taxonomy.
func (c *AnthropicClient) call(ctx context.Context, reqBody anthropicRequest) (string, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperr.LLMError("marshal request: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		anthropicEndpoint,
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", apperr.LLMError("build request: %s", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperr.LLMTimeout("Anthropic API request timed out")
		}
		return "", apperr.LLMError("http request: %s", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB cap
	if err != nil {
		return "", apperr.LLMError("read response body: %s", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", apperr.LLMError("unmarshal response: %s", err)
	}

	if parsed.Error != nil {
		return "", classifyAPIError(parsed.Error.Type, parsed.Error.Message)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusTooManyRequests {
		return "", apperr.LLMUnavailable("Anthropic API unavailable (status %d): %.200s", resp.StatusCode, string(respBytes))
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.LLMError("unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", apperr.LLMError("no text content in response")
}

// classifyAPIError maps a vendor-reported error into the apperr taxonomy.
// Authentication and rate/quota failures surface as llm_unavailable so the
// orchestrator never retries a doomed call; everything else is llm_error.
func classifyAPIError(errType, message string) error {
	lower := strings.ToLower(errType + " " + message)
	if strings.Contains(lower, "authentication") || strings.Contains(lower, "permission") || strings.Contains(lower, "invalid_api_key") {
		return apperr.LLMUnavailable("Anthropic API authentication failed: %s", message)
	}
	if strings.Contains(lower, "rate_limit") || strings.Contains(lower, "quota") || strings.Contains(lower, "overloaded") {
		return apperr.LLMUnavailable("Anthropic API rate limit exceeded: %s", message)
	}
	return apperr.LLMError("Anthropic API error %s: %s", errType, message)
}

func buildGenerationPrompt(p GenerateParams) string {
	var sb strings.Builder
	sb.WriteString("Database schema:\n")
	sb.WriteString(p.Schema.Describe())

	if p.Context != "" {
		fmt.Fprintf(&sb, "\nAdditional context: %s\n", p.Context)
	}

	fmt.Fprintf(&sb, "\nQuestion: %s\n", p.Question)

	if p.PreviousAttempt != "" {
		fmt.Fprintf(&sb, "\nPrevious attempt (rejected): %s\n", p.PreviousAttempt)
		fmt.Fprintf(&sb, "Error: %s\n", p.ErrorFeedback)
		sb.WriteString("Correct the SQL to address the error above.\n")
	}

	return sb.String()
}

func buildValidationPrompt(question, sql string, sample []ResultRow, rowCount int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", question)
	fmt.Fprintf(&sb, "SQL: %s\n", sql)
	fmt.Fprintf(&sb, "Total rows returned: %d\n", rowCount)

	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		sampleJSON = []byte("[]")
	}
	fmt.Fprintf(&sb, "Sample results: %s\n", sampleJSON)

	return sb.String()
}

type validationJSON struct {
	Confidence  any     `json:"confidence"`
	Explanation string  `json:"explanation"`
	Suggestion  *string `json:"suggestion"`
}

// parseValidationResponse tolerates any JSON shape: missing fields
// default, out-of-range or non-numeric confidence is clamped or defaulted,
// and malformed JSON produces a recoverable confidence=60/unacceptable
// result rather than an error.
func parseValidationResponse(raw string) ValidationResult {
	raw = stripFences(raw)

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var parsed validationJSON
	if err := dec.Decode(&parsed); err != nil {
		return ValidationResult{
			Confidence:   60,
			Explanation:  fmt.Sprintf("validation response parsing failed: %s", err),
			Suggestion:   "unable to parse LLM response, manual verification recommended",
			IsAcceptable: false,
		}
	}

	confidence := 50
	switch c := parsed.Confidence.(type) {
	case json.Number:
		if f, err := c.Float64(); err == nil {
			confidence = clampConfidence(int(f))
		}
	case string:
		if f, err := json.Number(strings.TrimSpace(c)).Float64(); err == nil {
			confidence = clampConfidence(int(f))
		}
	}

	explanation := parsed.Explanation
	if explanation == "" {
		explanation = "no explanation provided"
	}

	suggestion := ""
	if parsed.Suggestion != nil {
		suggestion = *parsed.Suggestion
	}

	return ValidationResult{
		Confidence:  confidence,
		Explanation: explanation,
		Suggestion:  suggestion,
	}
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}
