// Package sentinel is the backend of an API security scanning dashboard.
//
// Sentinel keeps an in-memory set of discovered API vulnerabilities, lets
// an analyst filter, triage and assign them, samples live request traffic,
// drives a four-step scan wizard whose simulated scans add new findings,
// and asks a generative-AI service for remediation advice and related
// CVEs. Everything is served over gRPC by the serve package.
//
// # Core Concepts
//
//   - Records: vulnerabilities with a severity, an OWASP API Top 10 code,
//     an endpoint and an append-only status history (package vuln)
//   - Store: the single owner of the record collection (package store)
//   - Queries: filters, sorting, CEL expressions and counts (package query)
//   - Traffic: a rolling window of requests/minute samples (package traffic)
//   - Scans: the wizard state machine and scan simulator (package scan)
//   - Advisor: remediation and CVE lookups through an LLM (package advisor)
//
// # Getting Started
//
// New wires every component from a configuration:
//
//	cfg, err := config.Load("sentinel.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app, err := sentinel.New(cfg, sentinel.WithVersion("1.2.0"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//
//	if err := app.Serve(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Scan Dispatch
//
// With scan.dispatch set to local, confirmed scans run in the API process.
// With queue, they are pushed to Redis and executed by processes started
// with RunWorker; results come back over Redis pub/sub. Record changes are
// also published to Redis so that other API instances can follow them.
//
// # Service Registry
//
// When registry.endpoints is set, API servers and workers register
// themselves in etcd under /{namespace}/{role}/{instance} for the lifetime
// of the process. Discover lists them. An unreachable registry is logged
// and otherwise ignored.
//
// # Error Handling
//
// Errors returned by this package are *Error values carrying the failed
// operation and a Kind:
//
//	app, err := sentinel.New(cfg)
//	switch sentinel.KindOf(err) {
//	case sentinel.KindConfiguration:
//	    // fix sentinel.yaml
//	case sentinel.KindNetwork:
//	    // Redis is down
//	}
//
// Sentinel errors such as ErrQueueRequired can be matched with errors.Is.
//
// # Thread Safety
//
// An App is safe for concurrent use once New returns. Serve and RunWorker
// may run at the same time in one process.
package sentinel
