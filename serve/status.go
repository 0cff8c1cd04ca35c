package serve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zero-day-ai/sentinel/advisor"
	"github.com/zero-day-ai/sentinel/scan"
	"github.com/zero-day-ai/sentinel/store"
)

// toStatus converts a domain error into a gRPC status error.
func toStatus(err error) error {
	var fieldErrs scan.FieldErrors
	var lookupErr *advisor.LookupError

	switch {
	case errors.As(err, &fieldErrs):
		return fieldErrorsStatus(fieldErrs)
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateID):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidRecord),
		errors.Is(err, advisor.ErrInvalidCVEID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, scan.ErrScanInProgress), errors.Is(err, scan.ErrInvalidStep):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &lookupErr):
		return status.Error(codes.Unavailable, lookupErr.Message)
	case errors.Is(err, advisor.ErrServiceUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, scan.ErrScanFailed):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}

	if st, ok := status.FromError(err); ok {
		return st.Err()
	}
	return status.Error(codes.Internal, err.Error())
}

func invalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// fieldErrorsStatus carries the field messages as a BadRequest detail so
// clients can rebuild scan.FieldErrors.
func fieldErrorsStatus(fe scan.FieldErrors) error {
	st := status.New(codes.InvalidArgument, fe.Error())

	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	br := &errdetails.BadRequest{}
	for _, field := range fields {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       field,
			Description: fe[field],
		})
	}
	if detailed, err := st.WithDetails(br); err == nil {
		st = detailed
	}
	return st.Err()
}

// fromStatus maps a status error from the server back onto the domain
// errors, keeping the status reachable through errors.As.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	case codes.InvalidArgument:
		for _, d := range st.Details() {
			br, ok := d.(*errdetails.BadRequest)
			if !ok || len(br.GetFieldViolations()) == 0 {
				continue
			}
			fe := scan.FieldErrors{}
			for _, v := range br.GetFieldViolations() {
				fe[v.GetField()] = v.GetDescription()
			}
			return fe
		}
	case codes.FailedPrecondition:
		if strings.HasPrefix(st.Message(), scan.ErrScanInProgress.Error()) {
			return fmt.Errorf("%w: %w", scan.ErrScanInProgress, err)
		}
		return fmt.Errorf("%w: %w", scan.ErrInvalidStep, err)
	}
	return err
}

// lookupError turns an advisor RPC failure into an *advisor.LookupError
// carrying the server's user-facing message.
func lookupError(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &advisor.LookupError{Op: op, Message: err.Error(), Err: err}
	}
	switch st.Code() {
	case codes.InvalidArgument:
		if op == advisor.OpCVEDetails {
			return fmt.Errorf("%w: %w", advisor.ErrInvalidCVEID, err)
		}
		return err
	case codes.NotFound:
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	return &advisor.LookupError{Op: op, Message: st.Message(), Err: err}
}
