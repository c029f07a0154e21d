package waitlist

import (
	"testing"
	"time"

	"github.com/avdeenko/skyhold/internal/domain"
)

func TestScore_TierAndAgeAndSpecialNeeds(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		tier         domain.LoyaltyTier
		bookedAt     time.Time
		specialNeeds bool
		want         int
	}{
		{
			name:         "platinum 50 days special needs",
			tier:         domain.TierPlatinum,
			bookedAt:     now.AddDate(0, 0, -50),
			specialNeeds: true,
			want:         400 + 400 + 200,
		},
		{
			name:     "regular booked today",
			tier:     domain.TierRegular,
			bookedAt: now,
			want:     100,
		},
		{
			name:     "gold 3 days",
			tier:     domain.TierGold,
			bookedAt: now.AddDate(0, 0, -3),
			want:     300 + 30,
		},
		{
			name:     "silver age capped at 400",
			tier:     domain.TierSilver,
			bookedAt: now.AddDate(0, 0, -365),
			want:     200 + 400,
		},
		{
			name:     "unknown tier scores as regular",
			tier:     domain.LoyaltyTier("BRONZE"),
			bookedAt: now,
			want:     100,
		},
		{
			name:     "booking in the future adds nothing",
			tier:     domain.TierRegular,
			bookedAt: now.AddDate(0, 0, 2),
			want:     100,
		},
		{
			name:     "partial day does not count",
			tier:     domain.TierRegular,
			bookedAt: now.Add(-23 * time.Hour),
			want:     100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.tier, tt.bookedAt, tt.specialNeeds, now)
			if got != tt.want {
				t.Fatalf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEstimateWaitTime_Buckets(t *testing.T) {
	tests := []struct {
		position int
		want     string
	}{
		{1, "5-10 minutes"},
		{2, "15-30 minutes"},
		{3, "15-30 minutes"},
		{4, "30-60 minutes"},
		{5, "30-60 minutes"},
		{6, "1-2 hours"},
		{42, "1-2 hours"},
	}

	for _, tt := range tests {
		if got := EstimateWaitTime(tt.position); got != tt.want {
			t.Fatalf("EstimateWaitTime(%d) = %q, want %q", tt.position, got, tt.want)
		}
	}
}
