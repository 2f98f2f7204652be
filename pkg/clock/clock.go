package clock

import (
	"fmt"
	"time"
)

// Clock supplies the current instant. All time-sensitive logic reads through
// it so tests can pin arbitrary instants and timezone boundaries.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

// NewSystem returns a wall clock pinned to the given IANA timezone. The
// service operates a single fixed region, so every component shares one
// location.
func NewSystem(timezone string) (Clock, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &systemClock{loc: loc}, nil
}

func (c *systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

type fixedClock struct {
	at time.Time
}

// FixedAt returns a clock frozen at the given instant.
func FixedAt(at time.Time) Clock {
	return &fixedClock{at: at}
}

func (c *fixedClock) Now() time.Time {
	return c.at
}
