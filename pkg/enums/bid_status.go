package enums

// BidStatus tracks a single driver's bid inside a window.
type BidStatus string

const (
	BidStatusPending BidStatus = "pending"
	BidStatusWon     BidStatus = "won"
	BidStatusLost    BidStatus = "lost"
)

// IsResolved reports whether the bid has reached a terminal state.
func (s BidStatus) IsResolved() bool {
	return s == BidStatusWon || s == BidStatusLost
}
