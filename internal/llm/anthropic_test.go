package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nyashahama/nlsql-queryengine/internal/apperr"
	"github.com/nyashahama/nlsql-queryengine/internal/schema"
)

func newTestAnthropicClient(t *testing.T, handler http.HandlerFunc) (*AnthropicClient, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewAnthropicClient("test-key", "claude-test", 2*time.Second)
	client.httpClient = srv.Client()
	// Route requests to the test server instead of the real Anthropic host.
	anthropicEndpoint = srv.URL
	return client, srv.Close
}

func TestAnthropicGenerateExtractsFencedSQL(t *testing.T) {
	client, closeFn := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{{Type: "text", Text: "```sql\nSELECT 1\n```"}},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer closeFn()

	sql, err := client.Generate(context.Background(), GenerateParams{
		Question: "how many rows",
		Schema:   schema.DatabaseSchema{DatabaseName: "test"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if want := "SELECT 1;"; sql != want {
		t.Fatalf("Generate() = %q, want %q", sql, want)
	}
}

func TestAnthropicGenerateFailsOnUnextractableResponse(t *testing.T) {
	client, closeFn := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{{Type: "text", Text: "I can't help with that."}},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer closeFn()

	_, err := client.Generate(context.Background(), GenerateParams{Question: "q"})
	ae := apperr.AsError(err)
	if ae == nil || ae.Code != apperr.CodeLLMError {
		t.Fatalf("err = %v, want llm_error", err)
	}
}

func TestAnthropicGenerateClassifiesAuthFailure(t *testing.T) {
	client, closeFn := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(anthropicResponse{
			Error: &struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			}{Type: "authentication_error", Message: "invalid x-api-key"},
		})
	})
	defer closeFn()

	_, err := client.Generate(context.Background(), GenerateParams{Question: "q"})
	ae := apperr.AsError(err)
	if ae == nil || ae.Code != apperr.CodeLLMUnavailable {
		t.Fatalf("err = %v, want llm_unavailable", err)
	}
}

func TestAnthropicResultValidatorDisabledShortCircuits(t *testing.T) {
	client := NewAnthropicClient("key", "model", time.Second)
	validator := NewAnthropicResultValidator(client, ValidationConfig{Enabled: false})

	result, err := validator.Validate(context.Background(), "q", "SELECT 1;", nil, 0)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Confidence != 100 || !result.IsAcceptable {
		t.Fatalf("result = %+v, want full-confidence acceptable result", result)
	}
}

func TestAnthropicResultValidatorMalformedJSONIsRecoverable(t *testing.T) {
	client, closeFn := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{{Type: "text", Text: "not json at all"}},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer closeFn()

	validator := NewAnthropicResultValidator(client, ValidationConfig{Enabled: true, ConfidenceThreshold: 70})
	result, err := validator.Validate(context.Background(), "q", "SELECT 1;", nil, 1)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Confidence != 60 || result.IsAcceptable {
		t.Fatalf("result = %+v, want confidence=60 and not acceptable", result)
	}
}

func TestAnthropicResultValidatorClampsOutOfRangeConfidence(t *testing.T) {
	client, closeFn := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{{Type: "text", Text: `{"confidence": 150, "explanation": "looks right"}`}},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer closeFn()

	validator := NewAnthropicResultValidator(client, ValidationConfig{Enabled: true, ConfidenceThreshold: 70})
	result, err := validator.Validate(context.Background(), "q", "SELECT 1;", nil, 1)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Confidence != 100 {
		t.Fatalf("Confidence = %d, want clamped to 100", result.Confidence)
	}
	if !result.IsAcceptable {
		t.Fatal("expected IsAcceptable true once clamped confidence clears threshold")
	}
}

func TestAnthropicResultValidatorMissingConfidenceDefaults(t *testing.T) {
	client, closeFn := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{{Type: "text", Text: `{"explanation": "no confidence field"}`}},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer closeFn()

	validator := NewAnthropicResultValidator(client, ValidationConfig{Enabled: true, ConfidenceThreshold: 40})
	result, err := validator.Validate(context.Background(), "q", "SELECT 1;", nil, 1)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Confidence != 50 {
		t.Fatalf("Confidence = %d, want default 50", result.Confidence)
	}
}
