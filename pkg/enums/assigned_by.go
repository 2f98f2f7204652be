package enums

// AssignedBy records which actor placed a driver on an assignment.
type AssignedBy string

const (
	// AssignedByAlgorithm indicates the schedule generator placed the driver.
	AssignedByAlgorithm AssignedBy = "algorithm"
	// AssignedByManager indicates a warehouse manager placed the driver.
	AssignedByManager AssignedBy = "manager"
	// AssignedByBid indicates the driver won a bid window.
	AssignedByBid AssignedBy = "bid"
)
