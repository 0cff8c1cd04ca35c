package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zero-day-ai/sentinel/schema"
)

const (
	// DefaultGeminiBaseURL is the public Generative Language API endpoint.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultGeminiModel is used when a request names no model.
	DefaultGeminiModel = "gemini-2.5-flash"

	maxErrorBody = 64 << 10
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// GeminiOptions configures a GeminiProvider.
type GeminiOptions struct {
	// BaseURL defaults to DefaultGeminiBaseURL.
	BaseURL string

	// APIKey is sent in the x-goog-api-key header.
	APIKey string

	// DefaultModel is used for requests without a model.
	DefaultModel string

	// Timeout bounds each HTTP request. Defaults to 60s.
	// Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the HTTP client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// GeminiProvider calls the Gemini generateContent REST endpoint.
type GeminiProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a provider.
//
// Example:
//
//	p := llm.NewGeminiProvider(llm.GeminiOptions{
//	    APIKey: os.Getenv("API_KEY"),
//	})
func NewGeminiProvider(opts GeminiOptions) *GeminiProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGeminiBaseURL
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = DefaultGeminiModel
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &GeminiProvider{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		model:   opts.DefaultModel,
		client:  opts.HTTPClient,
		logger:  opts.Logger.With("component", "gemini"),
	}
}

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid completion request: %w", err)
	}
	if p.apiKey == "" {
		return nil, errors.New("gemini API key is not configured")
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	payload, err := json.Marshal(toGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.logger.Warn("failed to close resource", "resource", "Gemini HTTP response", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeGeminiError(resp)
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := gr.toCompletionResponse()
	p.logger.Debug("completion finished",
		"model", model,
		"duration_ms", time.Since(start).Milliseconds(),
		"finish_reason", out.FinishReason,
		"total_tokens", out.Usage.TotalTokens,
	)

	if !out.HasContent() {
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: prompt blocked: %s", ErrEmptyResponse, gr.PromptFeedback.BlockReason)
		}
		return nil, ErrEmptyResponse
	}
	return out, nil
}

func decodeGeminiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Message = envelope.Error.Message
		apiErr.Status = envelope.Error.Status
	}
	return apiErr
}

// Wire types for generateContent. Only the fields Sentinel uses are mapped.

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature        *float64     `json:"temperature,omitempty"`
	TopP               *float64     `json:"topP,omitempty"`
	MaxOutputTokens    *int         `json:"maxOutputTokens,omitempty"`
	StopSequences      []string     `json:"stopSequences,omitempty"`
	ResponseMIMEType   string       `json:"responseMimeType,omitempty"`
	ResponseJSONSchema *schema.JSON `json:"responseJsonSchema,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content           geminiContent `json:"content"`
		FinishReason      string        `json:"finishReason"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func toGeminiRequest(req *CompletionRequest) geminiRequest {
	var out geminiRequest

	var system []geminiPart
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, geminiPart{Text: m.Content})
		case RoleAssistant:
			out.Contents = append(out.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		out.SystemInstruction = &geminiContent{Parts: system}
	}

	if req.SearchGrounding {
		out.Tools = []geminiTool{{GoogleSearch: &struct{}{}}}
	}

	cfg := geminiGenerationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxTokens,
		StopSequences:   req.Stop,
	}
	if req.ResponseSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJSONSchema = req.ResponseSchema
	}
	if cfg.Temperature != nil || cfg.TopP != nil || cfg.MaxOutputTokens != nil ||
		len(cfg.StopSequences) > 0 || cfg.ResponseJSONSchema != nil {
		out.GenerationConfig = &cfg
	}

	return out
}

func (r geminiResponse) toCompletionResponse() *CompletionResponse {
	out := &CompletionResponse{
		Usage: TokenUsage{
			InputTokens:  r.UsageMetadata.PromptTokenCount,
			OutputTokens: r.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  r.UsageMetadata.TotalTokenCount,
		},
	}
	if len(r.Candidates) == 0 {
		return out
	}

	cand := r.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}
	out.Content = sb.String()
	out.FinishReason = cand.FinishReason

	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			out.Citations = append(out.Citations, Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
		}
	}
	return out
}
