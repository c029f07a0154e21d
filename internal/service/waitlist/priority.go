package waitlist

import (
	"time"

	"github.com/avdeenko/skyhold/internal/domain"
)

const (
	bookingAgePointsPerDay = 10
	bookingAgePointsCap    = 400
	specialNeedsPoints     = 200
)

var tierPoints = map[domain.LoyaltyTier]int{
	domain.TierPlatinum: 400,
	domain.TierGold:     300,
	domain.TierSilver:   200,
	domain.TierRegular:  100,
}

// Score ranks a waitlist entry. Pure: tier weight, plus 10 points per full
// day since booking capped at 400, plus 200 for special needs. Unknown tiers
// score as REGULAR.
func Score(
	tier domain.LoyaltyTier,
	bookedAt time.Time,
	specialNeeds bool,
	now time.Time,
) int {
	score, ok := tierPoints[tier]
	if !ok {
		score = tierPoints[domain.TierRegular]
	}

	days := int(now.Sub(bookedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}

	agePoints := days * bookingAgePointsPerDay
	if agePoints > bookingAgePointsCap {
		agePoints = bookingAgePointsCap
	}
	score += agePoints

	if specialNeeds {
		score += specialNeedsPoints
	}

	return score
}

// EstimateWaitTime buckets a queue position into a display string. Not used
// for ordering.
func EstimateWaitTime(position int) string {
	switch {
	case position <= 1:
		return "5-10 minutes"
	case position <= 3:
		return "15-30 minutes"
	case position <= 5:
		return "30-60 minutes"
	default:
		return "1-2 hours"
	}
}
