// Package serve exposes Sentinel over gRPC.
//
// Server wraps a grpc.Server with the standard health service, optional
// TLS, graceful shutdown on SIGINT/SIGTERM or context cancellation, and
// optional registration in the service registry while it runs.
//
// Service implements sentinel.v1.VulnerabilityService. The service is
// registered from a hand-written grpc.ServiceDesc; every request and
// response is a google.protobuf.Struct carrying the JSON form of the Go
// types in this package (ListResponse, ScanRequest, ...), so no generated
// code is needed.
//
// # Usage
//
//	srv, err := serve.NewServer(nil,
//	    serve.WithPort(50051),
//	    serve.WithGracefulShutdown(30*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.RegisterVulnerabilityService(serve.NewService(st,
//	    serve.WithTraffic(sampler),
//	    serve.WithScans(sessions),
//	    serve.WithAdvisor(adv),
//	))
//	err = srv.Serve(ctx)
//
// # Client
//
// Client wraps any grpc.ClientConnInterface:
//
//	conn, _ := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
//	c := serve.NewClient(conn)
//	resp, err := c.ListVulnerabilities(ctx, query.Options{Severity: vuln.SeverityHigh})
//
// # Error Codes
//
//   - NotFound: unknown record ID
//   - InvalidArgument: malformed requests, invalid filters, scan form errors
//     (with a BadRequest detail per field), malformed CVE IDs
//   - FailedPrecondition: wizard action not valid in the current step
//   - Unavailable: the AI service failed; the message is user-facing
//   - Unimplemented: traffic, scans or the advisor are not configured
package serve
