package rpc

import (
	"budget-grid/errors"
	"context"
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus converts a grid error into the status sent to the client.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case stderrors.Is(err, errors.ErrInvalidArgument):
		return codes.InvalidArgument
	case stderrors.Is(err, errors.ErrLockTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case stderrors.Is(err, context.Canceled):
		return codes.Canceled
	case stderrors.Is(err, errors.ErrNotLockOwner):
		return codes.FailedPrecondition
	case stderrors.Is(err, errors.ErrAccountNotFound):
		return codes.NotFound
	case stderrors.Is(err, errors.ErrUnauthenticated):
		return codes.Unauthenticated
	case stderrors.Is(err, errors.ErrGridUnavailable), stderrors.Is(err, errors.ErrSubscriptionClosed):
		return codes.Unavailable
	}
	return codes.Internal
}

// FromStatus converts a call error back into the grid errors.
// A deadline or cancellation of ctx itself is returned as ctx.Err().
func FromStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", errors.ErrGridUnavailable, err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", errors.ErrInvalidArgument, st.Message())
	case codes.DeadlineExceeded:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", errors.ErrLockTimeout, st.Message())
	case codes.Canceled:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", errors.ErrGridUnavailable, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", errors.ErrNotLockOwner, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", errors.ErrAccountNotFound, st.Message())
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", errors.ErrUnauthenticated, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", errors.ErrGridUnavailable, st.Message())
	}
	return fmt.Errorf("grid call failed (%s): %s", st.Code(), st.Message())
}
