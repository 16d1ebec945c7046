package services

import (
	"testing"
	"time"

	"github.com/andar-app/andar_backend/models"
)

func TestComputePenalty(t *testing.T) {
	policies := []models.CancellationPolicy{
		{DaysQuantity: 7, PenaltyPercentage: 50},
		{DaysQuantity: 3, PenaltyPercentage: 20},
	}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		policies   []models.CancellationPolicy
		total      float64
		start      time.Time
		wantAmount float64
		wantDays   int
	}{
		{
			name:       "inside the wider window only",
			policies:   policies,
			total:      1000,
			start:      now.AddDate(0, 0, 5),
			wantAmount: 500,
			wantDays:   5,
		},
		{
			name:       "inside both windows, tightest wins",
			policies:   policies,
			total:      1000,
			start:      now.AddDate(0, 0, 2),
			wantAmount: 200,
			wantDays:   2,
		},
		{
			name:       "outside every window",
			policies:   policies,
			total:      1000,
			start:      now.AddDate(0, 0, 10),
			wantAmount: 0,
			wantDays:   10,
		},
		{
			name:       "exactly on a window boundary",
			policies:   policies,
			total:      1000,
			start:      now.AddDate(0, 0, 7),
			wantAmount: 500,
			wantDays:   7,
		},
		{
			name:       "no policies means no penalty",
			policies:   nil,
			total:      1000,
			start:      now.AddDate(0, 0, 1),
			wantAmount: 0,
			wantDays:   1,
		},
		{
			name:       "stay already started",
			policies:   policies,
			total:      1000,
			start:      now.AddDate(0, 0, -1),
			wantAmount: 200,
			wantDays:   0,
		},
		{
			name:       "partial day rounds up",
			policies:   policies,
			total:      1000,
			start:      now.Add(26 * time.Hour),
			wantAmount: 200,
			wantDays:   2,
		},
		{
			name: "penalty amount rounds to cents",
			policies: []models.CancellationPolicy{
				{DaysQuantity: 7, PenaltyPercentage: 33.333},
			},
			total:      100,
			start:      now.AddDate(0, 0, 5),
			wantAmount: 33.33,
			wantDays:   5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePenalty(tt.policies, tt.total, tt.start, now)
			if got.PenaltyAmount != tt.wantAmount {
				t.Errorf("PenaltyAmount = %v, want %v", got.PenaltyAmount, tt.wantAmount)
			}
			if got.DaysBeforeBooking != tt.wantDays {
				t.Errorf("DaysBeforeBooking = %v, want %v", got.DaysBeforeBooking, tt.wantDays)
			}
		})
	}
}

func TestComputePenaltyDeterministic(t *testing.T) {
	policies := []models.CancellationPolicy{
		{DaysQuantity: 7, PenaltyPercentage: 50},
		{DaysQuantity: 3, PenaltyPercentage: 20},
	}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, 4)

	first := ComputePenalty(policies, 1234.56, start, now)
	for i := 0; i < 10; i++ {
		again := ComputePenalty(policies, 1234.56, start, now)
		if again != first {
			t.Fatalf("run %d: got %+v, want %+v", i, again, first)
		}
	}
}
