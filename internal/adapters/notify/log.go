package notify

import (
	"context"

	"distribution-service/internal/domain"
	"distribution-service/internal/ports"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes notifications to the log. Used when no broker is configured.
type LogNotifier struct {
	log logrus.FieldLogger
}

var _ ports.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogNotifier{log: log.WithField("component", "notifier")}
}

func (l *LogNotifier) Send(ctx context.Context, n domain.Notification) error {
	l.log.WithFields(logrus.Fields{
		"distributor_id": n.DistributorID,
		"type":           n.Type,
		"priority":       n.Priority,
		"title":          n.Title,
	}).Info(n.Message)
	return nil
}
