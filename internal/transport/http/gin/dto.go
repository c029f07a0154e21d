package httpgin

import (
	"time"

	"github.com/avdeenko/skyhold/internal/domain"
)

type HoldSeatRequest struct {
	PassengerID string `json:"passenger_id" binding:"required"`
	TTLSec      int    `json:"ttl_sec"`
}

type ConfirmSeatRequest struct {
	PassengerID string `json:"passenger_id" binding:"required"`
}

type JoinWaitlistRequest struct {
	PassengerID      string         `json:"passenger_id" binding:"required"`
	CheckInID        string         `json:"checkin_id" binding:"required"`
	FlightID         string         `json:"flight_id" binding:"required"`
	SeatID           string         `json:"seat_id" binding:"required"`
	LoyaltyTier      string         `json:"loyalty_tier" binding:"required,oneof=PLATINUM GOLD SILVER REGULAR"`
	BookingTimestamp string         `json:"booking_timestamp" binding:"required"`
	SpecialNeeds     bool           `json:"special_needs"`
	Baggage          domain.Baggage `json:"baggage"`
}

type CreateFlightRequest struct {
	FlightID string `json:"flight_id" binding:"required"`
	Aircraft string `json:"aircraft"`
	Rows     int    `json:"rows"`
}

type CreateFlightResponse struct {
	FlightID string `json:"flight_id"`
	Seats    int    `json:"seats"`
}

type ErrorResponse struct {
	Error       string   `json:"error"`
	Code        string   `json:"code,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
