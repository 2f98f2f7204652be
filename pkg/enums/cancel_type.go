package enums

// CancelType classifies how an assignment was cancelled.
type CancelType string

const (
	// CancelTypeDriver is a driver cancellation before confirming.
	CancelTypeDriver CancelType = "driver"
	// CancelTypeLate is a driver cancellation after confirming; it carries a
	// health penalty.
	CancelTypeLate CancelType = "late"
	// CancelTypeAutoDrop is a system cancellation for a missed confirmation
	// deadline.
	CancelTypeAutoDrop CancelType = "auto_drop"
)
