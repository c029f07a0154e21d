package seathold

import (
	"errors"
	"fmt"
)

var (
	ErrSeatNotFound   = errors.New("seat not found")
	ErrFlightNotFound = errors.New("flight not found")
	ErrNotHeld        = errors.New("seat is not held")
	ErrHeldByOther    = errors.New("seat held by another passenger")
	// ErrConcurrentConflict reports a mutation that slipped in between the
	// confirm path's diagnostic read and its conditional write.
	ErrConcurrentConflict = errors.New("seat changed concurrently")
)

// SeatUnavailableError carries alternative-seat suggestions alongside the
// conflict.
type SeatUnavailableError struct {
	SeatID      string
	Suggestions []string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat %s unavailable, %d alternatives", e.SeatID, len(e.Suggestions))
}
