package services

import (
	"math"
	"time"

	"github.com/andar-app/andar_backend/models"
)

// PenaltyResult describes the outcome of a cancellation penalty computation.
type PenaltyResult struct {
	PenaltyAmount     float64
	DaysBeforeBooking int
	ApplicablePolicy  *models.CancellationPolicy
}

// ComputePenalty maps the post's cancellation policies, the booking total and
// the time remaining before the stay onto a penalty amount.
//
// The applicable policy is the tightest window still covering the
// cancellation: among policies whose daysQuantity >= daysBeforeBooking, the
// one with the smallest daysQuantity wins. Cancelling outside every window
// (or with no policies at all) costs nothing.
func ComputePenalty(policies []models.CancellationPolicy, totalAmount float64, startDate, now time.Time) PenaltyResult {
	days := daysBefore(startDate, now)
	result := PenaltyResult{DaysBeforeBooking: days}

	for i := range policies {
		p := &policies[i]
		if p.DaysQuantity < days {
			continue
		}
		if result.ApplicablePolicy == nil || p.DaysQuantity < result.ApplicablePolicy.DaysQuantity {
			result.ApplicablePolicy = p
		}
	}

	if result.ApplicablePolicy != nil {
		result.PenaltyAmount = roundCurrency(totalAmount * result.ApplicablePolicy.PenaltyPercentage / 100)
	}
	return result
}

// daysBefore returns ceil(startDate-now in days), floored at zero once the
// stay has already started.
func daysBefore(startDate, now time.Time) int {
	diff := startDate.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours() / 24))
}

func roundCurrency(amount float64) float64 {
	return math.Round(amount*100) / 100
}
