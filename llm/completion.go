package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zero-day-ai/sentinel/schema"
)

// CompletionRequest represents a request for LLM completion.
type CompletionRequest struct {
	// Model names the model to use. Providers fall back to their default
	// model when empty.
	Model string

	// Messages contains the conversation history.
	Messages []Message

	// Temperature controls randomness in the output (0.0 to 2.0).
	Temperature *float64

	// MaxTokens limits the maximum number of tokens to generate.
	MaxTokens *int

	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP *float64

	// Stop contains sequences that will stop generation when encountered.
	Stop []string

	// SearchGrounding lets the model consult web search. Sources it used
	// are returned as CompletionResponse.Citations.
	SearchGrounding bool

	// ResponseSchema, when set, asks for a JSON response conforming to it.
	ResponseSchema *schema.JSON
}

// Citation is a web source the model grounded its answer on.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// CompletionResponse represents a response from an LLM completion.
type CompletionResponse struct {
	// Content is the generated text content.
	Content string

	// FinishReason indicates why the generation stopped, as reported by
	// the provider (e.g. "STOP", "MAX_TOKENS", "SAFETY").
	FinishReason string

	// Citations lists grounding sources in the order the provider reported
	// them. Entries may repeat or be incomplete.
	Citations []Citation

	// Usage contains token usage statistics.
	Usage TokenUsage
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// CompletionOption is a functional option for configuring CompletionRequest.
type CompletionOption func(*CompletionRequest)

// WithModel selects the model.
func WithModel(model string) CompletionOption {
	return func(r *CompletionRequest) {
		r.Model = model
	}
}

// WithTemperature sets the temperature for the completion request.
func WithTemperature(t float64) CompletionOption {
	return func(r *CompletionRequest) {
		r.Temperature = &t
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(n int) CompletionOption {
	return func(r *CompletionRequest) {
		r.MaxTokens = &n
	}
}

// WithTopP sets the nucleus sampling parameter.
func WithTopP(p float64) CompletionOption {
	return func(r *CompletionRequest) {
		r.TopP = &p
	}
}

// WithStopSequences sets sequences that will stop generation.
func WithStopSequences(stops ...string) CompletionOption {
	return func(r *CompletionRequest) {
		r.Stop = stops
	}
}

// WithSearchGrounding enables web search grounding.
func WithSearchGrounding() CompletionOption {
	return func(r *CompletionRequest) {
		r.SearchGrounding = true
	}
}

// WithResponseSchema requests JSON output conforming to s.
func WithResponseSchema(s schema.JSON) CompletionOption {
	return func(r *CompletionRequest) {
		r.ResponseSchema = &s
	}
}

// ApplyOptions applies a set of options to the completion request.
func (r *CompletionRequest) ApplyOptions(opts ...CompletionOption) {
	for _, opt := range opts {
		opt(r)
	}
}

// NewCompletionRequest creates a new CompletionRequest with the given messages and options.
func NewCompletionRequest(messages []Message, opts ...CompletionOption) *CompletionRequest {
	req := &CompletionRequest{
		Messages: messages,
	}
	req.ApplyOptions(opts...)
	return req
}

// Validate checks that the request can be sent.
func (r *CompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("at least one message is required")
	}
	for i, m := range r.Messages {
		if !m.IsValid() {
			return fmt.Errorf("message %d is invalid", i)
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", *r.Temperature)
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return fmt.Errorf("top_p must be between 0 and 1, got %v", *r.TopP)
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", *r.MaxTokens)
	}
	return nil
}

// HasContent returns true if the response contains text content.
func (r *CompletionResponse) HasContent() bool {
	return strings.TrimSpace(r.Content) != ""
}

// IsComplete returns true if generation finished normally (not truncated
// or blocked).
func (r *CompletionResponse) IsComplete() bool {
	return r.FinishReason == "" || strings.EqualFold(r.FinishReason, "stop")
}

// Add combines two TokenUsage instances.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}
