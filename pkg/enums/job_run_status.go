package enums

// JobRunStatus tracks one execution of a periodic job.
type JobRunStatus string

const (
	JobRunStatusPending   JobRunStatus = "pending"
	JobRunStatusRunning   JobRunStatus = "running"
	JobRunStatusSucceeded JobRunStatus = "succeeded"
	JobRunStatusFailed    JobRunStatus = "failed"
)
