package advisor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/sentinel/llm"
	"github.com/zero-day-ai/sentinel/mockdata"
	"github.com/zero-day-ai/sentinel/vuln"
)

func testRecord() vuln.Vulnerability {
	return vuln.NewRecord("vuln-1", mockdata.NewScanFinding, vuln.Endpoint{
		Method: vuln.MethodGet,
		Path:   "/v2/products/search",
	}, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
}

// recordingProvider answers every request with resp/err and keeps the
// requests it saw.
type recordingProvider struct {
	mu   sync.Mutex
	reqs []*llm.CompletionRequest
	resp *llm.CompletionResponse
	err  error
}

func (p *recordingProvider) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	return p.resp, p.err
}

func (p *recordingProvider) last(t *testing.T) *llm.CompletionRequest {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.reqs)
	return p.reqs[len(p.reqs)-1]
}

func TestGetRemediation(t *testing.T) {
	provider := &recordingProvider{resp: &llm.CompletionResponse{
		Content: "## Risk\nUse parameterized queries.",
		Usage:   llm.TokenUsage{InputTokens: 100, OutputTokens: 40, TotalTokens: 140},
	}}
	client := New(provider)

	text, err := client.GetRemediation(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, "## Risk\nUse parameterized queries.", text)

	req := provider.last(t)
	assert.Equal(t, DefaultRemediationModel, req.Model)
	assert.False(t, req.SearchGrounding)
	prompt := req.Messages[0].Content
	assert.Contains(t, prompt, "**Type:** SQL Injection (API3:2023)")
	assert.Contains(t, prompt, "**Endpoint:** GET /v2/products/search")
	assert.Contains(t, prompt, mockdata.NewScanFinding.Details)

	assert.Equal(t, 140, client.Tokens().ByOperation(OpRemediation).TotalTokens)
}

func TestGetRemediation_Failure(t *testing.T) {
	cause := &llm.APIError{StatusCode: 503}
	client := New(&recordingProvider{err: cause})

	text, err := client.GetRemediation(context.Background(), testRecord())
	require.Error(t, err)
	assert.Empty(t, text)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, "Failed to communicate with the AI service.", err.Error())

	var apiErr *llm.APIError
	assert.True(t, errors.As(err, &apiErr), "cause should stay reachable")
	assert.Zero(t, client.Tokens().ByOperation(OpRemediation).TotalTokens)
}

func TestGetRelatedCVEs(t *testing.T) {
	provider := &recordingProvider{resp: &llm.CompletionResponse{
		Content: "CVE-2021-44228 is the classic case. See also CVE-2019-12345 and again CVE-2021-44228.",
		Citations: []llm.Citation{
			{URI: "https://nvd.nist.gov/a", Title: "NVD A"},
			{URI: "", Title: "no uri"},
			{URI: "https://mitre.org/b", Title: ""},
			{URI: "https://owasp.org/c", Title: "OWASP"},
			{URI: "https://nvd.nist.gov/a", Title: "NVD A (updated)"},
		},
	}}
	client := New(provider, WithModels(Models{RelatedCVEs: "custom-flash"}))

	info, err := client.GetRelatedCVEs(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, []string{"CVE-2021-44228", "CVE-2019-12345"}, info.CVEIDs)
	assert.Equal(t, []llm.Citation{
		{URI: "https://nvd.nist.gov/a", Title: "NVD A (updated)"},
		{URI: "https://owasp.org/c", Title: "OWASP"},
	}, info.Sources)
	assert.Equal(t, provider.resp.Content, info.Summary)

	req := provider.last(t)
	assert.Equal(t, "custom-flash", req.Model)
	assert.True(t, req.SearchGrounding)
	assert.Contains(t, req.Messages[0].Content, `**OWASP Category:** "API3:2023"`)
}

func TestGetRelatedCVEs_NoMatches(t *testing.T) {
	client := New(&recordingProvider{resp: &llm.CompletionResponse{Content: "No specific CVEs."}})

	info, err := client.GetRelatedCVEs(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Empty(t, info.CVEIDs)
	assert.Empty(t, info.Sources)
}

const validDetails = `{
	"description": "JNDI lookup RCE",
	"cvss": {"score": 10.0, "vector": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H"},
	"affected": "log4j-core 2.0-beta9 to 2.14.1",
	"references": ["https://nvd.nist.gov/vuln/detail/CVE-2021-44228"]
}`

func TestGetCVEDetails(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "raw JSON", content: validDetails},
		{name: "fenced JSON", content: "```json\n" + validDetails + "\n```"},
		{name: "not JSON", content: "I could not find that CVE.", wantErr: true},
		{name: "missing cvss", content: `{"description":"d","affected":"a","references":[]}`, wantErr: true},
		{name: "score out of range", content: `{"description":"d","cvss":{"score":42,"vector":"v"},"affected":"a","references":[]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &recordingProvider{resp: &llm.CompletionResponse{Content: tt.content}}
			client := New(provider)

			details, err := client.GetCVEDetails(context.Background(), " cve-2021-44228 ")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrServiceUnavailable)
				assert.Equal(t, "Failed to communicate with the AI service for details on CVE-2021-44228.", err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "JNDI lookup RCE", details.Description)
			assert.InDelta(t, 10.0, details.CVSS.Score, 0.001)
			assert.Len(t, details.References, 1)

			req := provider.last(t)
			assert.Equal(t, DefaultCVEDetailsModel, req.Model)
			assert.True(t, req.SearchGrounding)
			require.NotNil(t, req.ResponseSchema)
			assert.ElementsMatch(t, []string{"description", "cvss", "affected", "references"}, req.ResponseSchema.Required)
			assert.Contains(t, req.Messages[0].Content, "CVE-2021-44228.")
		})
	}
}

func TestGetCVEDetails_InvalidID(t *testing.T) {
	provider := &recordingProvider{}
	client := New(provider)

	for _, id := range []string{"", "CVE-21-1", "GHSA-xxxx", "CVE-2021-123"} {
		_, err := client.GetCVEDetails(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidCVEID, id)
	}
	assert.Empty(t, provider.reqs)
}

func TestDetailsSchema(t *testing.T) {
	s := DetailsSchema()
	cvss := s.Properties["cvss"]
	assert.ElementsMatch(t, []string{"score", "vector"}, cvss.Required)
	assert.Equal(t, "CVSS scoring information.", cvss.Description)
	require.NotNil(t, cvss.Properties["score"].Maximum)
	assert.Equal(t, 10.0, *cvss.Properties["score"].Maximum)
	assert.Equal(t, "array", s.Properties["references"].Type)
}

func TestClient_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	provider := &recordingProvider{err: errors.New("boom")}
	client := New(provider, WithTracer(tp.Tracer("test")))

	_, _ = client.GetRemediation(context.Background(), testRecord())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "advisor.remediation", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

// fakeService lets tests release each call explicitly.
type fakeService struct {
	remediation chan result[string]
	cves        chan result[CVEInfo]
	details     map[string]chan result[CVEDetails]
	mu          sync.Mutex
}

type result[T any] struct {
	val T
	err error
}

func newFakeService() *fakeService {
	return &fakeService{
		remediation: make(chan result[string], 1),
		cves:        make(chan result[CVEInfo], 1),
		details:     make(map[string]chan result[CVEDetails]),
	}
}

func (f *fakeService) detailsChan(id string) chan result[CVEDetails] {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.details[id]
	if !ok {
		ch = make(chan result[CVEDetails], 1)
		f.details[id] = ch
	}
	return ch
}

func (f *fakeService) GetRemediation(context.Context, vuln.Vulnerability) (string, error) {
	r := <-f.remediation
	return r.val, r.err
}

func (f *fakeService) GetRelatedCVEs(context.Context, vuln.Vulnerability) (CVEInfo, error) {
	r := <-f.cves
	return r.val, r.err
}

func (f *fakeService) GetCVEDetails(_ context.Context, id string) (CVEDetails, error) {
	r := <-f.detailsChan(id)
	return r.val, r.err
}

func TestLookup_RemediationRejected(t *testing.T) {
	svc := newFakeService()
	lookup := NewLookup(svc, testRecord())

	require.True(t, lookup.LoadRemediation(context.Background()))
	assert.True(t, lookup.State().Remediation.Loading)
	assert.False(t, lookup.LoadRemediation(context.Background()), "second load while loading")

	svc.remediation <- result[string]{err: ErrServiceUnavailable}
	lookup.Wait()

	state := lookup.State()
	assert.False(t, state.Remediation.Loading)
	assert.NotEmpty(t, state.Remediation.Error)
	assert.Nil(t, state.Remediation.Result)
	assert.Equal(t, "vuln-1", state.RecordID)
}

func TestLookup_FailureKeepsPriorResult(t *testing.T) {
	svc := newFakeService()
	lookup := NewLookup(svc, testRecord())

	svc.remediation <- result[string]{val: "first answer"}
	lookup.LoadRemediation(context.Background())
	lookup.Wait()

	svc.remediation <- result[string]{err: errors.New("down")}
	lookup.LoadRemediation(context.Background())
	lookup.Wait()

	state := lookup.State()
	require.NotNil(t, state.Remediation.Result)
	assert.Equal(t, "first answer", *state.Remediation.Result)
	assert.Equal(t, "Failed to get remediation advice. Please try again.", state.Remediation.Error)

	svc.remediation <- result[string]{val: "second answer"}
	lookup.LoadRemediation(context.Background())
	lookup.Wait()
	state = lookup.State()
	assert.Empty(t, state.Remediation.Error, "a new attempt clears the old message")
	assert.Equal(t, "second answer", *state.Remediation.Result)
}

func TestLookup_SlotsAreIndependent(t *testing.T) {
	svc := newFakeService()
	lookup := NewLookup(svc, testRecord())
	ctx := context.Background()

	lookup.LoadRemediation(ctx)
	lookup.LoadRelatedCVEs(ctx)

	svc.cves <- result[CVEInfo]{val: CVEInfo{Summary: "s", CVEIDs: []string{"CVE-2021-44228"}}}
	require.Eventually(t, func() bool { return lookup.State().RelatedCVEs.Result != nil }, time.Second, 5*time.Millisecond)

	state := lookup.State()
	assert.True(t, state.Remediation.Loading, "remediation still pending")
	assert.Equal(t, []string{"CVE-2021-44228"}, state.RelatedCVEs.Result.CVEIDs)

	svc.remediation <- result[string]{err: errors.New("down")}
	lookup.Wait()
	state = lookup.State()
	assert.NotEmpty(t, state.Remediation.Error)
	assert.Empty(t, state.RelatedCVEs.Error)
}

func TestLookup_ToggleCVE(t *testing.T) {
	svc := newFakeService()
	lookup := NewLookup(svc, testRecord())
	ctx := context.Background()

	require.True(t, lookup.ToggleCVE(ctx, "CVE-2021-44228"))
	assert.Equal(t, "CVE-2021-44228", lookup.State().SelectedCVE)
	assert.True(t, lookup.State().CVEDetails.Loading)

	svc.detailsChan("CVE-2021-44228") <- result[CVEDetails]{val: CVEDetails{Description: "log4shell"}}
	lookup.Wait()
	require.NotNil(t, lookup.State().CVEDetails.Result)

	assert.False(t, lookup.ToggleCVE(ctx, "CVE-2021-44228"), "toggling the same CVE collapses it")
	state := lookup.State()
	assert.Empty(t, state.SelectedCVE)
	assert.Nil(t, state.CVEDetails.Result)
}

func TestLookup_LateDetailsDropped(t *testing.T) {
	svc := newFakeService()
	lookup := NewLookup(svc, testRecord())
	ctx := context.Background()

	lookup.ToggleCVE(ctx, "CVE-2021-0001")
	lookup.ToggleCVE(ctx, "CVE-2021-0002")

	svc.detailsChan("CVE-2021-0002") <- result[CVEDetails]{val: CVEDetails{Description: "second"}}
	require.Eventually(t, func() bool { return lookup.State().CVEDetails.Result != nil }, time.Second, 5*time.Millisecond)

	svc.detailsChan("CVE-2021-0001") <- result[CVEDetails]{val: CVEDetails{Description: "first"}}
	lookup.Wait()

	state := lookup.State()
	assert.Equal(t, "CVE-2021-0002", state.SelectedCVE)
	assert.Equal(t, "second", state.CVEDetails.Result.Description)
}

func TestLookup_DetailsFailureMessage(t *testing.T) {
	svc := newFakeService()
	lookup := NewLookup(svc, testRecord())

	lookup.ToggleCVE(context.Background(), "CVE-2020-5555")
	svc.detailsChan("CVE-2020-5555") <- result[CVEDetails]{err: ErrServiceUnavailable}
	lookup.Wait()

	assert.Equal(t, "Failed to fetch details for CVE-2020-5555.", lookup.State().CVEDetails.Error)
	assert.True(t, strings.HasPrefix(lookup.State().CVEDetails.Error, "Failed"))
}
