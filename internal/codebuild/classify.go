package codebuild

import (
	"context"
	"errors"
	"fmt"
	"net"

	smithyhttp "github.com/aws/smithy-go/transport/http"

	builderrors "github.com/narvanalabs/codebuild-runner/internal/builder/errors"
)

// classify wraps a service error for op. Failures to get an HTTP response
// and timeouts are transient; caller cancellation is a cancel; everything
// else is fatal.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", op, err)

	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return builderrors.Wrap(builderrors.KindCancel, wrapped)
	case isTransient(err):
		return builderrors.New(builderrors.KindTransientNetwork, builderrors.MsgUnableToExecuteRequest).WithCause(wrapped)
	default:
		return builderrors.Wrap(builderrors.KindFatal, wrapped)
	}
}

func isTransient(err error) bool {
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
