package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/sentinel/llm"
	"github.com/zero-day-ai/sentinel/parser"
	"github.com/zero-day-ai/sentinel/vuln"
)

const tracerName = "github.com/zero-day-ai/sentinel/advisor"

// Operation names, used for token accounting and span names.
const (
	OpRemediation = "remediation"
	OpRelatedCVEs = "related_cves"
	OpCVEDetails  = "cve_details"
)

// Default models per operation.
const (
	DefaultRemediationModel = "gemini-2.5-pro"
	DefaultRelatedCVEsModel = "gemini-2.5-flash"
	DefaultCVEDetailsModel  = "gemini-2.5-pro"
)

var (
	// ErrServiceUnavailable matches every lookup failure.
	ErrServiceUnavailable = errors.New("AI service unavailable")

	// ErrInvalidCVEID is returned for identifiers not shaped like CVE-YYYY-NNNN.
	ErrInvalidCVEID = errors.New("invalid CVE identifier")
)

// LookupError is the error returned by Client. Message is meant for the
// user; Err keeps the cause for logs.
type LookupError struct {
	Op      string
	Message string
	Err     error
}

func (e *LookupError) Error() string { return e.Message }

func (e *LookupError) Unwrap() error { return e.Err }

// Is reports ErrServiceUnavailable as a match.
func (e *LookupError) Is(target error) bool {
	return target == ErrServiceUnavailable
}

// Models selects the model per operation. Empty fields use the defaults.
type Models struct {
	Remediation string `yaml:"remediation"`
	RelatedCVEs string `yaml:"related_cves"`
	CVEDetails  string `yaml:"cve_details"`
}

func (m Models) withDefaults() Models {
	if m.Remediation == "" {
		m.Remediation = DefaultRemediationModel
	}
	if m.RelatedCVEs == "" {
		m.RelatedCVEs = DefaultRelatedCVEsModel
	}
	if m.CVEDetails == "" {
		m.CVEDetails = DefaultCVEDetailsModel
	}
	return m
}

// Service is the set of lookups a detail view can trigger.
type Service interface {
	GetRemediation(ctx context.Context, v vuln.Vulnerability) (string, error)
	GetRelatedCVEs(ctx context.Context, v vuln.Vulnerability) (CVEInfo, error)
	GetCVEDetails(ctx context.Context, cveID string) (CVEDetails, error)
}

// Client implements Service over an llm.Provider.
type Client struct {
	provider llm.Provider
	models   Models
	tokens   llm.TokenTracker
	tracer   trace.Tracer
	logger   *slog.Logger
}

var _ Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithModels overrides the per-operation models.
func WithModels(m Models) Option {
	return func(c *Client) {
		c.models = m.withDefaults()
	}
}

// WithTokenTracker records token usage per operation.
func WithTokenTracker(t llm.TokenTracker) Option {
	return func(c *Client) {
		c.tokens = t
	}
}

// WithTracer sets the tracer. Defaults to the global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client.
func New(provider llm.Provider, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		models:   Models{}.withDefaults(),
		tokens:   llm.NewTokenTracker(),
		tracer:   otel.Tracer(tracerName),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "advisor")
	return c
}

// Tokens returns the tracker receiving token usage.
func (c *Client) Tokens() llm.TokenTracker {
	return c.tokens
}

// GetRemediation returns markdown remediation advice for v.
func (c *Client) GetRemediation(ctx context.Context, v vuln.Vulnerability) (string, error) {
	req := llm.NewCompletionRequest(
		[]llm.Message{llm.UserMessage(remediationPrompt(v))},
		llm.WithModel(c.models.Remediation),
	)

	resp, err := c.complete(ctx, OpRemediation, req, attribute.String("vuln.id", v.ID))
	if err != nil {
		return "", c.fail(OpRemediation, "Failed to communicate with the AI service.", err)
	}
	return resp.Content, nil
}

// GetRelatedCVEs asks for public CVEs related to v using search grounding.
func (c *Client) GetRelatedCVEs(ctx context.Context, v vuln.Vulnerability) (CVEInfo, error) {
	req := llm.NewCompletionRequest(
		[]llm.Message{llm.UserMessage(relatedCVEsPrompt(v))},
		llm.WithModel(c.models.RelatedCVEs),
		llm.WithSearchGrounding(),
	)

	resp, err := c.complete(ctx, OpRelatedCVEs, req, attribute.String("vuln.id", v.ID))
	if err != nil {
		return CVEInfo{}, c.fail(OpRelatedCVEs, "Failed to communicate with the AI service for CVE information.", err)
	}

	return CVEInfo{
		Summary: resp.Content,
		CVEIDs:  parser.ExtractUnique(cvePattern, resp.Content),
		Sources: uniqueSources(resp.Citations),
	}, nil
}

// GetCVEDetails returns a structured breakdown of one CVE. The identifier
// is normalized to upper case and must look like CVE-YYYY-NNNN.
func (c *Client) GetCVEDetails(ctx context.Context, cveID string) (CVEDetails, error) {
	id, err := NormalizeCVEID(cveID)
	if err != nil {
		return CVEDetails{}, err
	}

	contract := DetailsSchema()
	req := llm.NewCompletionRequest(
		[]llm.Message{llm.UserMessage(cveDetailsPrompt(id))},
		llm.WithModel(c.models.CVEDetails),
		llm.WithSearchGrounding(),
		llm.WithResponseSchema(contract),
	)

	msg := fmt.Sprintf("Failed to communicate with the AI service for details on %s.", id)
	resp, err := c.complete(ctx, OpCVEDetails, req, attribute.String("cve.id", id))
	if err != nil {
		return CVEDetails{}, c.fail(OpCVEDetails, msg, err)
	}

	body := []byte(parser.StripCodeFence(resp.Content))
	if err := contract.ValidateJSON(body); err != nil {
		return CVEDetails{}, c.fail(OpCVEDetails, msg, fmt.Errorf("response violates schema: %w", err))
	}
	details, err := parser.ParseJSON[CVEDetails](body)
	if err != nil {
		return CVEDetails{}, c.fail(OpCVEDetails, msg, err)
	}
	return *details, nil
}

// NormalizeCVEID trims and upper-cases id and checks its shape.
func NormalizeCVEID(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !cveIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCVEID, id)
	}
	return id, nil
}

func (c *Client) complete(ctx context.Context, op string, req *llm.CompletionRequest, attrs ...attribute.KeyValue) (*llm.CompletionResponse, error) {
	ctx, span := c.tracer.Start(ctx, "advisor."+op,
		trace.WithAttributes(append(attrs, attribute.String("llm.model", req.Model))...),
	)
	defer span.End()

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.tokens.Add(op, resp.Usage)
	span.SetAttributes(
		attribute.Int("llm.tokens.input", resp.Usage.InputTokens),
		attribute.Int("llm.tokens.output", resp.Usage.OutputTokens),
		attribute.Int("llm.citations", len(resp.Citations)),
	)
	return resp, nil
}

func (c *Client) fail(op, message string, err error) error {
	c.logger.Error("AI lookup failed", "operation", op, "error", err)
	return &LookupError{Op: op, Message: message, Err: err}
}
