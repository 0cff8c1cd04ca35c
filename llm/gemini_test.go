package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zero-day-ai/sentinel/schema"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiProvider(GeminiOptions{BaseURL: srv.URL, APIKey: "test-key"})
}

func TestGeminiProvider_RequestShape(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		gotBody map[string]any
	)
	p := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{}"}]},"finishReason":"STOP"}]}`)
	})

	req := NewCompletionRequest(
		[]Message{SystemMessage("You are terse."), UserMessage("Describe CVE-2021-44228")},
		WithModel("gemini-2.5-pro"),
		WithSearchGrounding(),
		WithResponseSchema(schema.Object(map[string]schema.JSON{"description": schema.String()}, "description")),
	)
	if _, err := p.Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if gotPath != "/v1beta/models/gemini-2.5-pro:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}

	contents, _ := gotBody["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("contents = %v, want one user turn", gotBody["contents"])
	}
	if role := contents[0].(map[string]any)["role"]; role != "user" {
		t.Errorf("role = %v", role)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Error("systemInstruction missing")
	}
	tools, _ := gotBody["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", gotBody["tools"])
	}
	if _, ok := tools[0].(map[string]any)["googleSearch"]; !ok {
		t.Error("googleSearch tool missing")
	}
	cfg, _ := gotBody["generationConfig"].(map[string]any)
	if cfg["responseMimeType"] != "application/json" {
		t.Errorf("responseMimeType = %v", cfg["responseMimeType"])
	}
	if _, ok := cfg["responseJsonSchema"].(map[string]any); !ok {
		t.Errorf("responseJsonSchema = %v", cfg["responseJsonSchema"])
	}
}

func TestGeminiProvider_DefaultModelAndNoConfig(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	p := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	})

	if _, err := p.Complete(context.Background(), NewCompletionRequest([]Message{UserMessage("hi")})); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(gotPath, DefaultGeminiModel) {
		t.Errorf("path %q does not use default model", gotPath)
	}
	if _, ok := gotBody["generationConfig"]; ok {
		t.Error("generationConfig should be omitted when nothing is set")
	}
	if _, ok := gotBody["tools"]; ok {
		t.Error("tools should be omitted without search grounding")
	}
}

func TestGeminiProvider_Response(t *testing.T) {
	p := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Related: "}, {"text": "CVE-2021-44228"}]},
				"finishReason": "STOP",
				"groundingMetadata": {"groundingChunks": [
					{"web": {"uri": "https://nvd.nist.gov/a", "title": "NVD"}},
					{"retrievedContext": {}},
					{"web": {"uri": "https://example.org", "title": ""}}
				]}
			}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 30, "totalTokenCount": 42}
		}`)
	})

	resp, err := p.Complete(context.Background(), NewCompletionRequest([]Message{UserMessage("hi")}))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Related: CVE-2021-44228" {
		t.Errorf("Content = %q", resp.Content)
	}
	if !resp.IsComplete() {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("Citations = %v, want 2 web chunks", resp.Citations)
	}
	if resp.Citations[0] != (Citation{URI: "https://nvd.nist.gov/a", Title: "NVD"}) {
		t.Errorf("Citations[0] = %v", resp.Citations[0])
	}
	if resp.Usage != (TokenUsage{InputTokens: 12, OutputTokens: 30, TotalTokens: 42}) {
		t.Errorf("Usage = %v", resp.Usage)
	}
}

func TestGeminiProvider_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantAPI    bool
		retryable  bool
		wantEmpty  bool
		wantSubstr string
	}{
		{
			name:       "bad request",
			status:     http.StatusBadRequest,
			body:       `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`,
			wantAPI:    true,
			wantSubstr: "API key not valid",
		},
		{
			name:      "unavailable",
			status:    http.StatusServiceUnavailable,
			body:      `upstream down`,
			wantAPI:   true,
			retryable: true,
		},
		{
			name:      "no candidates",
			status:    http.StatusOK,
			body:      `{"candidates":[]}`,
			wantEmpty: true,
		},
		{
			name:       "blocked prompt",
			status:     http.StatusOK,
			body:       `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantEmpty:  true,
			wantSubstr: "SAFETY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := p.Complete(context.Background(), NewCompletionRequest([]Message{UserMessage("hi")}))
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var apiErr *APIError
			if got := errors.As(err, &apiErr); got != tt.wantAPI {
				t.Errorf("errors.As(APIError) = %v, want %v (err = %v)", got, tt.wantAPI, err)
			}
			if tt.wantAPI {
				if apiErr.StatusCode != tt.status {
					t.Errorf("StatusCode = %d", apiErr.StatusCode)
				}
				if apiErr.Retryable() != tt.retryable {
					t.Errorf("Retryable() = %v", apiErr.Retryable())
				}
			}
			if got := errors.Is(err, ErrEmptyResponse); got != tt.wantEmpty {
				t.Errorf("errors.Is(ErrEmptyResponse) = %v, want %v", got, tt.wantEmpty)
			}
			if tt.wantSubstr != "" && !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("error %q does not contain %q", err, tt.wantSubstr)
			}
		})
	}
}

func TestGeminiProvider_Preconditions(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	noKey := NewGeminiProvider(GeminiOptions{BaseURL: srv.URL})
	if _, err := noKey.Complete(context.Background(), NewCompletionRequest([]Message{UserMessage("hi")})); err == nil {
		t.Error("expected error without API key")
	}

	p := NewGeminiProvider(GeminiOptions{BaseURL: srv.URL, APIKey: "k"})
	if _, err := p.Complete(context.Background(), NewCompletionRequest(nil)); err == nil {
		t.Error("expected error for empty request")
	}

	if called {
		t.Error("no HTTP request should be sent when preconditions fail")
	}
}
