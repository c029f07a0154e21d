package eventbus

import (
	"time"

	"github.com/avdeenko/skyhold/internal/domain"
)

// SeatEvent is the payload of seat.held, seat.released, seat.confirmed and
// seat.hold.expired. Only the fields meaningful for the event type are set.
type SeatEvent struct {
	SeatID         string     `json:"seat_id"`
	FlightID       string     `json:"flight_id"`
	PassengerID    string     `json:"passenger_id,omitempty"`
	PreviousHolder string     `json:"previous_holder,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// WaitlistEvent is the payload of waitlist.joined and waitlist.left.
type WaitlistEvent struct {
	WaitlistID  string `json:"waitlist_id"`
	PassengerID string `json:"passenger_id"`
	FlightID    string `json:"flight_id,omitempty"`
	SeatID      string `json:"seat_id,omitempty"`
	Position    int    `json:"position,omitempty"`
}

// CheckinCompletedEvent is the payload of waitlist.checkin.completed.
type CheckinCompletedEvent struct {
	WaitlistID   string               `json:"waitlist_id"`
	CheckInID    string               `json:"checkin_id"`
	PassengerID  string               `json:"passenger_id"`
	FlightID     string               `json:"flight_id"`
	SeatID       string               `json:"seat_id"`
	BoardingPass *domain.BoardingPass `json:"boarding_pass,omitempty"`
}
