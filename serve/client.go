package serve

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zero-day-ai/sentinel/advisor"
	"github.com/zero-day-ai/sentinel/query"
	"github.com/zero-day-ai/sentinel/scan"
	"github.com/zero-day-ai/sentinel/store"
	"github.com/zero-day-ai/sentinel/vuln"
)

// Client calls the vulnerability service. It implements advisor.Service,
// so a remote server can back an advisor.Lookup.
//
// Status errors are mapped back where a domain error exists: NotFound
// matches store.ErrNotFound, form validation failures come back as
// scan.FieldErrors, and failed AI lookups as *advisor.LookupError.
type Client struct {
	cc grpc.ClientConnInterface
}

var _ advisor.Service = (*Client)(nil)

// NewClient creates a client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return err
	}
	return decodeResponse(out, resp)
}

// ListVulnerabilities returns the records matching opts.
func (c *Client) ListVulnerabilities(ctx context.Context, opts query.Options) (ListResponse, error) {
	var resp ListResponse
	if err := c.invoke(ctx, MethodListVulnerabilities, opts, &resp); err != nil {
		return ListResponse{}, fromStatus(err)
	}
	return resp, nil
}

func (c *Client) GetVulnerability(ctx context.Context, id string) (vuln.Vulnerability, error) {
	var v vuln.Vulnerability
	if err := c.invoke(ctx, MethodGetVulnerability, GetRequest{ID: id}, &v); err != nil {
		return vuln.Vulnerability{}, fromStatus(err)
	}
	return v, nil
}

func (c *Client) TransitionStatus(ctx context.Context, id string, target vuln.Status) (vuln.Vulnerability, error) {
	var v vuln.Vulnerability
	req := TransitionRequest{ID: id, Status: string(target)}
	if err := c.invoke(ctx, MethodTransitionStatus, req, &v); err != nil {
		return vuln.Vulnerability{}, fromStatus(err)
	}
	return v, nil
}

func (c *Client) AssignVulnerability(ctx context.Context, id, assignee string) (vuln.Vulnerability, error) {
	var v vuln.Vulnerability
	req := AssignRequest{ID: id, Assignee: assignee}
	if err := c.invoke(ctx, MethodAssignVulnerability, req, &v); err != nil {
		return vuln.Vulnerability{}, fromStatus(err)
	}
	return v, nil
}

func (c *Client) GetSummary(ctx context.Context) (query.Summary, error) {
	var summary query.Summary
	if err := c.invoke(ctx, MethodGetSummary, struct{}{}, &summary); err != nil {
		return query.Summary{}, fromStatus(err)
	}
	return summary, nil
}

func (c *Client) GetTraffic(ctx context.Context) (TrafficResponse, error) {
	var resp TrafficResponse
	if err := c.invoke(ctx, MethodGetTraffic, struct{}{}, &resp); err != nil {
		return TrafficResponse{}, fromStatus(err)
	}
	return resp, nil
}

// RunScan drives the scan wizard. A submit without advanced options blocks
// until the scan completes.
func (c *Client) RunScan(ctx context.Context, req ScanRequest) (scan.State, error) {
	var st scan.State
	if err := c.invoke(ctx, MethodRunScan, req, &st); err != nil {
		return scan.State{}, fromStatus(err)
	}
	return st, nil
}

// GetRemediation implements advisor.Service.
func (c *Client) GetRemediation(ctx context.Context, v vuln.Vulnerability) (string, error) {
	var resp RemediationResponse
	if err := c.invoke(ctx, MethodGetRemediation, LookupRequest{Record: &v}, &resp); err != nil {
		return "", lookupError(advisor.OpRemediation, err)
	}
	return resp.Text, nil
}

// GetRelatedCVEs implements advisor.Service.
func (c *Client) GetRelatedCVEs(ctx context.Context, v vuln.Vulnerability) (advisor.CVEInfo, error) {
	var info advisor.CVEInfo
	if err := c.invoke(ctx, MethodGetRelatedCVEs, LookupRequest{Record: &v}, &info); err != nil {
		return advisor.CVEInfo{}, lookupError(advisor.OpRelatedCVEs, err)
	}
	return info, nil
}

// GetCVEDetails implements advisor.Service.
func (c *Client) GetCVEDetails(ctx context.Context, cveID string) (advisor.CVEDetails, error) {
	var details advisor.CVEDetails
	if err := c.invoke(ctx, MethodGetCVEDetails, CVEDetailsRequest{CVEID: cveID}, &details); err != nil {
		return advisor.CVEDetails{}, lookupError(advisor.OpCVEDetails, err)
	}
	return details, nil
}

// WatchEvents streams store change events. The channel closes when ctx
// ends or the stream fails.
func (c *Client) WatchEvents(ctx context.Context, buffer int) (<-chan store.Event, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod(MethodWatchEvents))
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}

	in, err := toStruct(WatchRequest{Buffer: buffer})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, fmt.Errorf("failed to send watch request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to close send side: %w", err)
	}

	events := make(chan store.Event)
	go func() {
		defer close(events)
		for {
			out := new(structpb.Struct)
			if err := stream.RecvMsg(out); err != nil {
				return
			}
			var ev store.Event
			if err := decodeResponse(out, &ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
