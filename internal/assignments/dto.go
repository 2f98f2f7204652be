package assignments

// InventoryParams record the parcel count loaded at shift start.
type InventoryParams struct {
	ParcelsStart int `json:"parcels_start" validate:"gt=0"`
}

// CompletionParams close out or amend a shift. The same invariants apply to
// complete and to edit: returns cannot exceed the starting count and excepted
// parcels require notes.
type CompletionParams struct {
	ParcelsDelivered int    `json:"parcels_delivered" validate:"gte=0"`
	ParcelsReturned  int    `json:"parcels_returned" validate:"gte=0"`
	ParcelsExcepted  int    `json:"parcels_excepted" validate:"gte=0"`
	ExceptionNotes   string `json:"exception_notes"`
}

// CancelParams describe a driver- or manager-initiated cancellation.
type CancelParams struct {
	Reason string `json:"reason"`
}
