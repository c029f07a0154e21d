package domain

import (
	"fmt"
	"strconv"
	"time"
)

type SeatState string

const (
	SeatAvailable SeatState = "AVAILABLE"
	SeatHeld      SeatState = "HELD"
	SeatConfirmed SeatState = "CONFIRMED"
	SeatCancelled SeatState = "CANCELLED"
)

type SeatCategory string

const (
	SeatWindow SeatCategory = "WINDOW"
	SeatMiddle SeatCategory = "MIDDLE"
	SeatAisle  SeatCategory = "AISLE"
)

type LoyaltyTier string

const (
	TierPlatinum LoyaltyTier = "PLATINUM"
	TierGold     LoyaltyTier = "GOLD"
	TierSilver   LoyaltyTier = "SILVER"
	TierRegular  LoyaltyTier = "REGULAR"
)

// Seat is the authoritative inventory record. HeldBy and HoldExpiresAt are
// set iff State is HELD; ConfirmedBy is set iff State is CONFIRMED.
type Seat struct {
	SeatID        string
	FlightID      string
	Row           int
	Column        string
	Category      SeatCategory
	State         SeatState
	HeldBy        *string
	HoldExpiresAt *time.Time
	ConfirmedBy   *string
	PriceCents    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Hold is what a successful hold request returns to the caller.
type Hold struct {
	HoldID    string    `json:"hold_id"`
	SeatID    string    `json:"seat_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiredHold identifies a hold reclaimed by the sweeper.
type ExpiredHold struct {
	SeatID         string
	FlightID       string
	PreviousHolder string
}

// SeatMapSeat is the public projection of a seat: holder identity is hidden
// and any non-AVAILABLE state collapses to UNAVAILABLE.
type SeatMapSeat struct {
	SeatID     string       `json:"seat_id"`
	Row        int          `json:"row"`
	Column     string       `json:"column"`
	State      string       `json:"state"`
	Category   SeatCategory `json:"category"`
	PriceCents int          `json:"price_cents"`
}

type SeatMap struct {
	FlightID       string        `json:"flight_id"`
	TotalSeats     int           `json:"total_seats"`
	AvailableSeats int           `json:"available_seats"`
	Seats          []SeatMapSeat `json:"seats"`
}

// Baggage is the waiter's stored baggage selection, replayed into the
// check-in completion call on promotion.
type Baggage struct {
	Count   int       `json:"count"`
	Weights []float64 `json:"weights,omitempty"`
}

type WaitlistEntry struct {
	WaitlistID    string
	PassengerID   string
	CheckInID     string
	FlightID      string
	SeatID        string
	PriorityScore int
	LoyaltyTier   LoyaltyTier
	SpecialNeeds  bool
	Baggage       Baggage
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

type WaitlistTicket struct {
	WaitlistID        string `json:"waitlist_id"`
	Position          int    `json:"position"`
	EstimatedWaitTime string `json:"estimated_wait_time"`
}

// BoardingPass is the artifact returned by the external check-in service.
type BoardingPass struct {
	PassengerID   string `json:"passenger_id"`
	FlightID      string `json:"flight_id"`
	SeatNumber    string `json:"seat_number"`
	BoardingGroup string `json:"boarding_group"`
	QRCode        string `json:"qr_code"`
}

// ParseSeatID splits a seat label like "12A" into row and column letter.
func ParseSeatID(seatID string) (row int, column string, err error) {
	if len(seatID) < 2 {
		return 0, "", fmt.Errorf("invalid seat id %q", seatID)
	}

	column = seatID[len(seatID)-1:]
	if column[0] < 'A' || column[0] > 'Z' {
		return 0, "", fmt.Errorf("invalid seat id %q", seatID)
	}

	row, err = strconv.Atoi(seatID[:len(seatID)-1])
	if err != nil || row < 1 {
		return 0, "", fmt.Errorf("invalid seat id %q", seatID)
	}

	return row, column, nil
}

// CategoryForColumn maps a column letter to its seat category in the
// standard 3-3 narrow-body layout: A/F window, C/D aisle, B/E middle.
func CategoryForColumn(column string) SeatCategory {
	switch column {
	case "A", "F":
		return SeatWindow
	case "C", "D":
		return SeatAisle
	default:
		return SeatMiddle
	}
}
