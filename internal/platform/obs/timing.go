package obs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// RequestID returns the request id stored on ctx, if any.
func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(RequestIDKey).(string)
	return reqID
}

// Time logs the duration of an operation when the returned func is called.
//
//	defer obs.Time(ctx, log, "trace.store.Append")(&err)
func Time(ctx context.Context, log zerolog.Logger, name string) func(errp *error) {
	start := time.Now()
	reqID := RequestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		ev := log.Debug()
		if errp != nil && *errp != nil {
			ev = log.Warn().Err(*errp)
		}
		ev.Str("req_id", reqID).
			Str("op", name).
			Int64("dur_ms", dur.Milliseconds()).
			Msg("op finished")
	}
}
