package ports

import (
	"context"

	"distribution-service/internal/domain"
)

// Contract for the notification sink. Callers log failures and do not retry.
type Notifier interface {
	Send(ctx context.Context, n domain.Notification) error
}
