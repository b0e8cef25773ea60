package obs

import (
	"context"
	"time"

	"distribution-service/internal/platform/metrics"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// Logger receives operation timings. Defaults to the logrus standard logger.
var Logger logrus.FieldLogger = logrus.StandardLogger()

// Time starts timing op and returns a func that logs and records the outcome:
//
//	defer obs.Time(ctx, "ors.OptimizeRoute")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	reqID, _ := ctx.Value(RequestIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start)

		entry := Logger.WithFields(logrus.Fields{
			"req_id": reqID,
			"op":     name,
			"dur_ms": dur.Milliseconds(),
		})

		if errp != nil && *errp != nil {
			metrics.OperationDuration.WithLabelValues(name, "error").Observe(dur.Seconds())
			entry.WithError(*errp).Debug("operation failed")
			return
		}
		metrics.OperationDuration.WithLabelValues(name, "ok").Observe(dur.Seconds())
		entry.Debug("operation done")
	}
}
