package bids

import (
	"time"

	"github.com/fleetline/dispatch-backend/pkg/config"
	"github.com/shopspring/decimal"
)

// ScoreInput carries everything the scorer needs about one driver-route pair.
// HealthScore is nil for drivers without a health evaluation yet.
type ScoreInput struct {
	HealthScore      *int
	MaxHealthScore   int
	RouteCompletions int
	HiredAt          time.Time
	Preferred        bool
	AsOf             time.Time
}

// Scorer ranks bids. It is a pure function of its input and policy; the same
// input always yields the same score, which keeps window resolution
// reproducible on rerun.
type Scorer struct {
	policy config.BidPolicy
}

// NewScorer builds a scorer from the bidding policy.
func NewScorer(policy config.BidPolicy) *Scorer {
	return &Scorer{policy: policy}
}

// Score computes the weighted bid score, rounded to two decimals. Every
// component is normalized to [0,1] before weighting.
func (s *Scorer) Score(in ScoreInput) decimal.Decimal {
	weighted := s.policy.WeightHealth*s.healthComponent(in) +
		s.policy.WeightFamiliarity*s.familiarityComponent(in.RouteCompletions) +
		s.policy.WeightTenure*s.tenureComponent(in.HiredAt, in.AsOf) +
		s.policy.WeightPreference*s.preferenceComponent(in.Preferred)
	return decimal.NewFromFloat(weighted).Round(2)
}

func (s *Scorer) healthComponent(in ScoreInput) float64 {
	if in.HealthScore == nil {
		return s.policy.NeutralHealthComponent
	}
	if in.MaxHealthScore <= 0 {
		return s.policy.NeutralHealthComponent
	}
	return clamp01(float64(*in.HealthScore) / float64(in.MaxHealthScore))
}

// familiarityComponent grows monotonically with completed runs on the route
// and crosses 0.5 at the pivot count.
func (s *Scorer) familiarityComponent(completions int) float64 {
	if completions <= 0 {
		return 0
	}
	pivot := s.policy.FamiliarityPivot
	if pivot <= 0 {
		pivot = 1
	}
	return float64(completions) / float64(completions+pivot)
}

func (s *Scorer) tenureComponent(hiredAt, asOf time.Time) float64 {
	if hiredAt.IsZero() || !hiredAt.Before(asOf) {
		return 0
	}
	full := s.policy.FullTenureMonths
	if full <= 0 {
		return 1
	}
	months := asOf.Sub(hiredAt).Hours() / (24 * 30.44)
	return clamp01(months / float64(full))
}

func (s *Scorer) preferenceComponent(preferred bool) float64 {
	if preferred {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
