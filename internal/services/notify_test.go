package services

import (
	"context"
	"testing"

	"distribution-service/internal/domain"
	"distribution-service/internal/platform/logging"

	"github.com/stretchr/testify/assert"
)

func TestSendNotificationSkipsNilPointerNotifier(t *testing.T) {
	var rec *recordingNotifier
	msg := domain.Notification{DistributorID: 7, Type: domain.NotificationScheduleUpdate}

	assert.NotPanics(t, func() {
		sendNotification(context.Background(), rec, logging.Discard(), msg)
	})
	assert.NotPanics(t, func() {
		sendNotification(context.Background(), nil, logging.Discard(), msg)
	})
}
