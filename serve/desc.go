package serve

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sentinel.v1.VulnerabilityService"

// Method names of the vulnerability service.
const (
	MethodListVulnerabilities = "ListVulnerabilities"
	MethodGetVulnerability    = "GetVulnerability"
	MethodTransitionStatus    = "TransitionStatus"
	MethodAssignVulnerability = "AssignVulnerability"
	MethodGetSummary          = "GetSummary"
	MethodGetTraffic          = "GetTraffic"
	MethodRunScan             = "RunScan"
	MethodGetRemediation      = "GetRemediation"
	MethodGetRelatedCVEs      = "GetRelatedCVEs"
	MethodGetCVEDetails       = "GetCVEDetails"
	MethodWatchEvents         = "WatchEvents"
)

// FullMethod returns "/sentinel.v1.VulnerabilityService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// VulnerabilityServiceServer is the server API of the vulnerability service.
// Every message is a google.protobuf.Struct holding the JSON form of the
// request and response types in this package.
type VulnerabilityServiceServer interface {
	ListVulnerabilities(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetVulnerability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TransitionStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AssignVulnerability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTraffic(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunScan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRemediation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRelatedCVEs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCVEDetails(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(*structpb.Struct, grpc.ServerStream) error
}

type unaryMethod func(VulnerabilityServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(VulnerabilityServiceServer)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(svc, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(VulnerabilityServiceServer).WatchEvents(in, stream)
}

// ServiceDesc describes the vulnerability service for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VulnerabilityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc(MethodListVulnerabilities, VulnerabilityServiceServer.ListVulnerabilities),
		methodDesc(MethodGetVulnerability, VulnerabilityServiceServer.GetVulnerability),
		methodDesc(MethodTransitionStatus, VulnerabilityServiceServer.TransitionStatus),
		methodDesc(MethodAssignVulnerability, VulnerabilityServiceServer.AssignVulnerability),
		methodDesc(MethodGetSummary, VulnerabilityServiceServer.GetSummary),
		methodDesc(MethodGetTraffic, VulnerabilityServiceServer.GetTraffic),
		methodDesc(MethodRunScan, VulnerabilityServiceServer.RunScan),
		methodDesc(MethodGetRemediation, VulnerabilityServiceServer.GetRemediation),
		methodDesc(MethodGetRelatedCVEs, VulnerabilityServiceServer.GetRelatedCVEs),
		methodDesc(MethodGetCVEDetails, VulnerabilityServiceServer.GetCVEDetails),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchEvents,
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "sentinel/v1/vulnerability_service.proto",
}

// RegisterVulnerabilityServiceServer registers srv with s.
func RegisterVulnerabilityServiceServer(s grpc.ServiceRegistrar, srv VulnerabilityServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
