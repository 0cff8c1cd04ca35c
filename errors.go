package sentinel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for process-level failures.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrInvalidConfig indicates the configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrQueueRequired indicates an operation needs the Redis scan queue,
	// but redis.url is not set.
	ErrQueueRequired = errors.New("redis scan queue is not configured")

	// ErrRegistryDisabled indicates an operation needs the service registry,
	// but registry.endpoints is empty.
	ErrRegistryDisabled = errors.New("service registry is not configured")
)

// Error kinds categorize errors by their type.
const (
	// KindNotFound represents errors where a resource was not found.
	KindNotFound = "not_found"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindNetwork represents errors reaching Redis, etcd or the AI service.
	KindNetwork = "network"

	// KindInternal represents internal errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with
// the operation that failed and the category of error.
//
// Example usage:
//
//	err := &Error{
//		Op:   "App.RunWorker",
//		Kind: KindConfiguration,
//		Err:  ErrQueueRequired,
//	}
type Error struct {
	// Op is the operation that failed (e.g., "sentinel.New", "App.Serve").
	Op string

	// Kind categorizes the error (e.g., KindNetwork, KindConfiguration).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context carries optional debugging values such as file paths or
	// endpoints.
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sentinel: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("sentinel: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("sentinel: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a target *Error by Kind, and by Op when the target sets one.
// Other targets are compared with the underlying error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a copy of e with ctx merged into its context.
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	newErr.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		newErr.Context[k] = v
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if
// there is none.
func KindOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func NewNotFoundError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: err}
}

func NewValidationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

func NewNetworkError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNetwork, Err: err}
}

func NewInternalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements to ensure
// cleanup errors are not silently ignored.
//
// If logger is nil, slog.Default() is used.
//
// Example usage:
//
//	defer sentinel.CloseWithLog(conn, logger, "gRPC connection")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
