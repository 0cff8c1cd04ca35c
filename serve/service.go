package serve

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zero-day-ai/sentinel/advisor"
	"github.com/zero-day-ai/sentinel/query"
	"github.com/zero-day-ai/sentinel/scan"
	"github.com/zero-day-ai/sentinel/store"
	"github.com/zero-day-ai/sentinel/traffic"
	"github.com/zero-day-ai/sentinel/vuln"
)

// TrafficSource provides the live traffic series. *traffic.Sampler
// satisfies it.
type TrafficSource interface {
	Snapshot() []traffic.Sample
	Current() traffic.Sample
}

// Service implements VulnerabilityServiceServer over a store. Traffic,
// scans and the advisor are optional; their methods answer Unimplemented
// when the dependency is not configured.
type Service struct {
	store   *store.Store
	traffic TrafficSource
	scans   *scan.Sessions
	advisor advisor.Service
	logger  *slog.Logger
}

var _ VulnerabilityServiceServer = (*Service)(nil)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithTraffic(t TrafficSource) ServiceOption {
	return func(s *Service) {
		s.traffic = t
	}
}

func WithScans(sessions *scan.Sessions) ServiceOption {
	return func(s *Service) {
		s.scans = sessions
	}
}

func WithAdvisor(a advisor.Service) ServiceOption {
	return func(s *Service) {
		s.advisor = a
	}
}

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates the vulnerability service.
func NewService(st *store.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "vulnerability_service")
	return s
}

// handle decodes the request, runs fn and encodes its result, mapping
// errors onto status codes.
func handle[Req, Resp any](ctx context.Context, in *structpb.Struct, fn func(context.Context, Req) (Resp, error)) (*structpb.Struct, error) {
	var req Req
	if err := decodeRequest(in, &req); err != nil {
		return nil, invalidArgument("invalid request: %v", err)
	}
	resp, err := fn(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := toStruct(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func (s *Service) ListVulnerabilities(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, s.list)
}

func (s *Service) GetVulnerability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, s.get)
}

func (s *Service) TransitionStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, s.transition)
}

func (s *Service) AssignVulnerability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, s.assign)
}

func (s *Service) GetSummary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, s.summary)
}

func (s *Service) GetTraffic(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, s.trafficSeries)
}

func (s *Service) RunScan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, s.runScan)
}

func (s *Service) GetRemediation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, s.remediation)
}

func (s *Service) GetRelatedCVEs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, s.relatedCVEs)
}

func (s *Service) GetCVEDetails(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, s.cveDetails)
}

// WatchEvents streams store change events until the client goes away.
func (s *Service) WatchEvents(in *structpb.Struct, stream grpc.ServerStream) error {
	var req WatchRequest
	if err := decodeRequest(in, &req); err != nil {
		return invalidArgument("invalid request: %v", err)
	}

	events, cancel := s.store.Subscribe(req.Buffer)
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			out, err := toStruct(ev)
			if err != nil {
				return status.Errorf(codes.Internal, "failed to encode event: %v", err)
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		}
	}
}

func (s *Service) list(_ context.Context, opts query.Options) (ListResponse, error) {
	opts, err := normalizeFilter(opts)
	if err != nil {
		return ListResponse{}, invalidArgument("%v", err)
	}
	engine, err := query.New(opts)
	if err != nil {
		return ListResponse{}, invalidArgument("%v", err)
	}
	snap := s.store.Snapshot()
	res := engine.Apply(snap.Records)
	return ListResponse{Records: res.Records, Total: res.Total, Version: snap.Version}, nil
}

// normalizeFilter accepts severity and status display names ("High",
// "Acknowledged") as well as wire values.
func normalizeFilter(opts query.Options) (query.Options, error) {
	if opts.Severity != "" {
		sev, err := vuln.ParseSeverity(string(opts.Severity))
		if err != nil {
			return opts, err
		}
		opts.Severity = sev
	}
	if opts.Status != "" {
		st, err := vuln.ParseStatus(string(opts.Status))
		if err != nil {
			return opts, err
		}
		opts.Status = st
	}
	return opts, nil
}

func (s *Service) get(_ context.Context, req GetRequest) (vuln.Vulnerability, error) {
	if req.ID == "" {
		return vuln.Vulnerability{}, invalidArgument("id is required")
	}
	return s.store.Get(req.ID)
}

func (s *Service) transition(ctx context.Context, req TransitionRequest) (vuln.Vulnerability, error) {
	if req.ID == "" {
		return vuln.Vulnerability{}, invalidArgument("id is required")
	}
	target, err := vuln.ParseStatus(req.Status)
	if err != nil {
		return vuln.Vulnerability{}, invalidArgument("%v", err)
	}
	return s.store.Transition(ctx, req.ID, target)
}

func (s *Service) assign(ctx context.Context, req AssignRequest) (vuln.Vulnerability, error) {
	if req.ID == "" {
		return vuln.Vulnerability{}, invalidArgument("id is required")
	}
	return s.store.Assign(ctx, req.ID, req.Assignee)
}

func (s *Service) summary(_ context.Context, _ struct{}) (query.Summary, error) {
	return query.Summarize(s.store.Snapshot().Records), nil
}

func (s *Service) trafficSeries(_ context.Context, _ struct{}) (TrafficResponse, error) {
	if s.traffic == nil {
		return TrafficResponse{}, status.Error(codes.Unimplemented, "traffic sampling is not configured")
	}
	return TrafficResponse{Samples: s.traffic.Snapshot(), Current: s.traffic.Current()}, nil
}

func (s *Service) runScan(ctx context.Context, req ScanRequest) (scan.State, error) {
	if s.scans == nil {
		return scan.State{}, status.Error(codes.Unimplemented, "scanning is not configured")
	}

	session := req.Session
	if session == "" {
		session = DefaultSession
	}
	action := req.Action
	if action == "" {
		action = ScanState
		if req.Form != nil {
			action = ScanSubmit
		}
	}

	w := s.scans.Get(session)

	var st scan.State
	var err error
	switch action {
	case ScanSubmit:
		if req.Form == nil {
			return scan.State{}, invalidArgument("form is required for submit")
		}
		st, err = w.Submit(ctx, *req.Form)
	case ScanConfirm:
		st, err = w.Confirm(ctx)
	case ScanBack:
		st, err = w.Back()
	case ScanReset:
		st, err = w.Reset()
	case ScanState:
		st = w.State()
	default:
		return scan.State{}, invalidArgument("unknown scan action %q", action)
	}
	if err != nil {
		s.logger.Debug("scan action rejected", "session", session, "action", action, "error", err)
		return scan.State{}, err
	}

	st.Form.APIKey = st.Form.MaskedAPIKey()
	return st, nil
}

func (s *Service) lookupRecord(req LookupRequest) (vuln.Vulnerability, error) {
	if s.advisor == nil {
		return vuln.Vulnerability{}, status.Error(codes.Unimplemented, "AI advisor is not configured")
	}
	if req.Record != nil {
		if err := req.Record.Validate(); err != nil {
			return vuln.Vulnerability{}, invalidArgument("invalid record: %v", err)
		}
		return *req.Record, nil
	}
	if req.ID == "" {
		return vuln.Vulnerability{}, invalidArgument("id or record is required")
	}
	return s.store.Get(req.ID)
}

func (s *Service) remediation(ctx context.Context, req LookupRequest) (RemediationResponse, error) {
	v, err := s.lookupRecord(req)
	if err != nil {
		return RemediationResponse{}, err
	}
	text, err := s.advisor.GetRemediation(ctx, v)
	if err != nil {
		return RemediationResponse{}, err
	}
	return RemediationResponse{Text: text}, nil
}

func (s *Service) relatedCVEs(ctx context.Context, req LookupRequest) (advisor.CVEInfo, error) {
	v, err := s.lookupRecord(req)
	if err != nil {
		return advisor.CVEInfo{}, err
	}
	return s.advisor.GetRelatedCVEs(ctx, v)
}

func (s *Service) cveDetails(ctx context.Context, req CVEDetailsRequest) (advisor.CVEDetails, error) {
	if s.advisor == nil {
		return advisor.CVEDetails{}, status.Error(codes.Unimplemented, "AI advisor is not configured")
	}
	return s.advisor.GetCVEDetails(ctx, req.CVEID)
}
