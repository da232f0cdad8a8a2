package gcp

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"studyflow/internal/apperr"
)

// classify maps a gRPC failure onto the application error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := apperr.FromContext(err); ctxErr != nil {
		return ctxErr
	}
	st, ok := status.FromError(err)
	if !ok {
		return apperr.Wrap(err, apperr.ProviderUnavailable, op+" failed")
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return apperr.Wrap(err, apperr.Timeout, op+" deadline exceeded")
	case codes.Canceled:
		return apperr.Wrap(err, apperr.Canceled, op+" canceled")
	case codes.InvalidArgument:
		return apperr.Wrap(err, apperr.InvalidInput, op+": "+st.Message())
	case codes.ResourceExhausted:
		return apperr.Wrap(err, apperr.RateLimited, op+": "+st.Message())
	default:
		return apperr.Wrap(err, apperr.ProviderUnavailable, op+": "+st.Message())
	}
}
