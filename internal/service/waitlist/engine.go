package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/avdeenko/skyhold/internal/client"
	"github.com/avdeenko/skyhold/internal/domain"
	"github.com/avdeenko/skyhold/internal/eventbus"
	"github.com/avdeenko/skyhold/internal/repository"
)

type claimStore interface {
	ClaimTop(ctx context.Context, flightID, seatID string) (*domain.WaitlistEntry, error)
}

type checkinCompleter interface {
	CompleteCheckin(ctx context.Context, req client.CompleteCheckinRequest) (*client.CompleteCheckinResponse, error)
}

type notifier interface {
	Send(ctx context.Context, req client.NotificationRequest)
}

type publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type subscriber interface {
	Subscribe(eventType string, h eventbus.Handler)
}

// Engine reassigns freed seats to waiting passengers. It reacts to
// seat.released and seat.hold.expired, walks the seat's waitlist in priority
// order and drives the first reachable passenger's check-in to completion.
type Engine struct {
	waitlist    claimStore
	checkin     checkinCompleter
	notify      notifier
	bus         publisher
	logger      *slog.Logger
	callTimeout time.Duration
}

func NewEngine(
	waitlist claimStore,
	checkin checkinCompleter,
	notify notifier,
	bus publisher,
	logger *slog.Logger,
	callTimeout time.Duration,
) *Engine {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}

	return &Engine{
		waitlist:    waitlist,
		checkin:     checkin,
		notify:      notify,
		bus:         bus,
		logger:      logger,
		callTimeout: callTimeout,
	}
}

// Register wires the engine into the bus. Both event types mean the same
// thing here: this seat is free.
func (e *Engine) Register(bus subscriber) {
	bus.Subscribe(eventbus.SeatReleased, e.handleSeatAvailable)
	bus.Subscribe(eventbus.SeatHoldExpired, e.handleSeatAvailable)
}

func (e *Engine) handleSeatAvailable(ctx context.Context, ev eventbus.Envelope) error {
	var p eventbus.SeatEvent
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return err
	}

	if p.SeatID == "" || p.FlightID == "" {
		return nil
	}

	e.ProcessSeatAvailable(ctx, p.SeatID, p.FlightID)

	return nil
}

// ProcessSeatAvailable promotes the best candidate for a freed seat.
//
// Candidates are walked iteratively, highest priority first (equal scores by
// earliest join). Claiming removes the entry from the store before the
// external call, so a candidate whose check-in completion fails is gone for
// good and can never block the passengers behind it. The external call runs
// under its own deadline; the loop is bounded by the shrinking waitlist.
func (e *Engine) ProcessSeatAvailable(ctx context.Context, seatID, flightID string) {
	for {
		entry, err := e.waitlist.ClaimTop(ctx, flightID, seatID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				e.logger.Info("no waitlist entries for seat",
					"seat_id", seatID, "flight_id", flightID)
				return
			}

			e.logger.Error("waitlist claim failed",
				"seat_id", seatID, "flight_id", flightID, "error", err)
			return
		}

		e.logger.Info("processing waitlist assignment",
			"waitlist_id", entry.WaitlistID, "passenger_id", entry.PassengerID,
			"seat_id", seatID, "score", entry.PriorityScore)

		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		completed, err := e.checkin.CompleteCheckin(callCtx, client.CompleteCheckinRequest{
			CheckInID:   entry.CheckInID,
			PassengerID: entry.PassengerID,
			SeatID:      seatID,
			Baggage:     entry.Baggage,
		})
		cancel()

		if err != nil {
			// The entry is already claimed off the list: log for offline
			// review and move on to the next candidate.
			e.logger.Error("waitlist check-in completion failed",
				"waitlist_id", entry.WaitlistID, "checkin_id", entry.CheckInID,
				"passenger_id", entry.PassengerID, "error", err)
			continue
		}

		_ = e.bus.Publish(ctx, eventbus.WaitlistCheckinCompleted, eventbus.CheckinCompletedEvent{
			WaitlistID:   entry.WaitlistID,
			CheckInID:    entry.CheckInID,
			PassengerID:  entry.PassengerID,
			FlightID:     flightID,
			SeatID:       seatID,
			BoardingPass: completed.BoardingPass,
		})

		e.notify.Send(ctx, client.NotificationRequest{
			PassengerID: entry.PassengerID,
			Type:        "WAITLIST_CHECKIN_COMPLETED",
			Channels:    []string{"push", "email", "sms"},
			Data: map[string]any{
				"seat_id":       seatID,
				"flight_id":     flightID,
				"boarding_pass": completed.BoardingPass,
				"state":         completed.State,
			},
		})

		e.logger.Info("waitlist check-in auto-completed",
			"waitlist_id", entry.WaitlistID, "checkin_id", entry.CheckInID,
			"passenger_id", entry.PassengerID, "seat_id", seatID)

		return
	}
}
