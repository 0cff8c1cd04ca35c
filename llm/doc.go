// Package llm provides provider-neutral types for generative-AI completions
// and a Gemini REST provider.
//
// # Completion Requests
//
// CompletionRequest carries the conversation and generation settings.
// Use functional options to configure it:
//
//	req := llm.NewCompletionRequest(
//	    []llm.Message{llm.UserMessage(prompt)},
//	    llm.WithModel("gemini-2.5-pro"),
//	    llm.WithSearchGrounding(),
//	)
//
// WithResponseSchema asks the model for JSON matching a schema.JSON. The
// caller should still validate the answer; providers treat the schema as
// guidance.
//
// # Providers
//
// Provider is the single-method interface the rest of Sentinel depends on.
// GeminiProvider implements it over the generateContent endpoint:
//
//	p := llm.NewGeminiProvider(llm.GeminiOptions{APIKey: key})
//	resp, err := p.Complete(ctx, req)
//
// Non-2xx answers are returned as *APIError. A response without text is
// ErrEmptyResponse.
//
// # Token Tracking
//
// DefaultTokenTracker accumulates TokenUsage per operation:
//
//	tracker := llm.NewTokenTracker()
//	tracker.Add("remediation", resp.Usage)
//	total := tracker.Total()
package llm
