package enums

// NotificationType names the driver-facing notification categories. The
// (driver, type, dedup key) triple doubles as the send idempotency key.
type NotificationType string

const (
	NotificationConfirmationReminder NotificationType = "confirmation_reminder"
	NotificationAutoDropped          NotificationType = "assignment_auto_dropped"
	NotificationBidWindowOpened      NotificationType = "bid_window_opened"
	NotificationBidWon               NotificationType = "bid_won"
	NotificationBidLost              NotificationType = "bid_lost"
	NotificationManagerReview        NotificationType = "manager_review_required"
)
