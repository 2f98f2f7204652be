package enums

import "fmt"

// BidWindowStatus tracks a bidding episode.
type BidWindowStatus string

const (
	BidWindowStatusOpen     BidWindowStatus = "open"
	BidWindowStatusClosed   BidWindowStatus = "closed"
	BidWindowStatusResolved BidWindowStatus = "resolved"
)

var validBidWindowStatuses = []BidWindowStatus{
	BidWindowStatusOpen,
	BidWindowStatusClosed,
	BidWindowStatusResolved,
}

// IsValid reports whether the value is a known BidWindowStatus.
func (s BidWindowStatus) IsValid() bool {
	for _, candidate := range validBidWindowStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// BidWindowMode selects how a window opens and resolves.
type BidWindowMode string

const (
	// BidWindowModeCompetitive waits for closes-at, then the highest score wins.
	BidWindowModeCompetitive BidWindowMode = "competitive"
	// BidWindowModeInstant resolves on the first accepting bid.
	BidWindowModeInstant BidWindowMode = "instant"
	// BidWindowModeEmergency is a no-show replacement; it resolves on the
	// first accepting bid and carries a pay bonus.
	BidWindowModeEmergency BidWindowMode = "emergency"
)

var validBidWindowModes = []BidWindowMode{
	BidWindowModeCompetitive,
	BidWindowModeInstant,
	BidWindowModeEmergency,
}

// IsValid reports whether the value is a known BidWindowMode.
func (m BidWindowMode) IsValid() bool {
	for _, candidate := range validBidWindowModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ResolvesOnFirstBid reports whether the mode short-circuits resolution on the
// first accepting bid instead of waiting for closes-at.
func (m BidWindowMode) ResolvesOnFirstBid() bool {
	return m == BidWindowModeInstant || m == BidWindowModeEmergency
}

// ParseBidWindowMode converts raw input into a BidWindowMode.
func ParseBidWindowMode(value string) (BidWindowMode, error) {
	for _, candidate := range validBidWindowModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bid window mode %q", value)
}
