package services

import (
	"context"
	"reflect"
	"strconv"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/metrics"
	"distribution-service/internal/ports"

	"github.com/sirupsen/logrus"
)

// sendNotification is fire-and-forget: failures are logged and counted, never returned.
func sendNotification(ctx context.Context, n ports.Notifier, log logrus.FieldLogger, msg domain.Notification) {
	if isNilNotifier(n) {
		return
	}

	if err := n.Send(ctx, msg); err != nil {
		metrics.Notifications.WithLabelValues(string(msg.Type), "error").Inc()
		log.WithError(err).WithFields(logrus.Fields{
			"distributor_id": msg.DistributorID,
			"type":           msg.Type,
		}).Warn("notification failed")
		return
	}
	metrics.Notifications.WithLabelValues(string(msg.Type), "sent").Inc()
}

// isNilNotifier also catches a nil pointer stored in the interface.
func isNilNotifier(n ports.Notifier) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func itoa(n int) string { return strconv.Itoa(n) }
