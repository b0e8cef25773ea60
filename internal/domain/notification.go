package domain

type NotificationType string

const (
	NotificationScheduleUpdate   NotificationType = "schedule_update"
	NotificationPerformanceAlert NotificationType = "performance_alert"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is handed to the notification sink; delivery is fire-and-forget.
type Notification struct {
	DistributorID int64                `json:"distributor_id"`
	Type          NotificationType     `json:"type"`
	Title         string               `json:"title"`
	Message       string               `json:"message"`
	Priority      NotificationPriority `json:"priority"`
	Metadata      map[string]string    `json:"metadata,omitempty"`
}
