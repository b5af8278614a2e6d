package fleetrpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/schoolbus-tracker/kb"
)

// ErrInvalidRequest is used for client-side validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps store errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, kb.ErrBusNotFound),
		errors.Is(err, kb.ErrAlertNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, kb.ErrInvalidStatus),
		errors.Is(err, kb.ErrInvalidPosition):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, kb.ErrBusExists):
		return status.Error(codes.AlreadyExists, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
