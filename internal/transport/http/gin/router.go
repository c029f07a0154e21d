package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/avdeenko/skyhold/internal/domain"
	redisrepo "github.com/avdeenko/skyhold/internal/repository/redis"
	"github.com/avdeenko/skyhold/internal/service"
	"github.com/avdeenko/skyhold/internal/service/fleet"
	"github.com/avdeenko/skyhold/internal/service/seathold"
	"github.com/avdeenko/skyhold/internal/service/waitlist"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/flights/:id/seatmap", handleGetSeatMap(svcs))

	r.POST("/flights/:id/seats/:seat/hold", handleHoldSeat(svcs, idem))
	r.POST("/flights/:id/seats/:seat/release", handleReleaseSeat(svcs))
	r.POST("/flights/:id/seats/:seat/confirm", handleConfirmSeat(svcs))

	r.POST("/waitlist", handleJoinWaitlist(svcs))
	r.DELETE("/waitlist/:id", handleLeaveWaitlist(svcs))

	// Admin-API
	// TODO: add admin middleware
	admin := r.Group("/admin")
	{
		admin.POST("/flights", handleCreateFlight(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get seat map
// @Param    id  path  string  true  "Flight ID"
// @Success  200  {object}  domain.SeatMap
// @Failure  404  {object}  ErrorResponse
// @Router   /flights/{id}/seatmap [get]
func handleGetSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		flightID := c.Param("id")

		sm, err := svcs.SeatHold.SeatMap(c.Request.Context(), flightID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 5s, matches the server-side cache window
		writeJSONWithCache(c, http.StatusOK, sm, "public, max-age=5", true)
	}
}

// @Summary  Hold seat (idempotent)
// @Param    id    path  string  true  "Flight ID"
// @Param    seat  path  string  true  "Seat ID"
// @Param    req   body  HoldSeatRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.Hold
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seat unavailable / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /flights/{id}/seats/{seat}/hold [post]
func handleHoldSeat(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		flightID := c.Param("id")
		seatID := c.Param("seat")

		var req HoldSeatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemHold(flightID, seatID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		ttl := time.Duration(req.TTLSec) * time.Second
		rlKey := "hold:ip:" + c.ClientIP()

		hold, err := svcs.SeatHold.Hold(
			c.Request.Context(),
			flightID,
			seatID,
			req.PassengerID,
			ttl,
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			if isRateLimitedErr(err) {
				c.Header("Retry-After", "60")
				c.JSON(
					http.StatusTooManyRequests,
					ErrorResponse{Error: err.Error()},
				)
				return
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(hold)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, hold)
	}
}

// @Summary  Release seat
// @Param    id    path  string  true  "Flight ID"
// @Param    seat  path  string  true  "Seat ID"
// @Success  200 {object} map[string]string
// @Failure  404 {object} ErrorResponse
// @Router   /flights/{id}/seats/{seat}/release [post]
func handleReleaseSeat(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		flightID := c.Param("id")
		seatID := c.Param("seat")

		if err := svcs.SeatHold.Release(
			c.Request.Context(),
			seatID,
			flightID,
		); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "released"})
	}
}

// @Summary  Confirm held seat
// @Param    id    path  string  true  "Flight ID"
// @Param    seat  path  string  true  "Seat ID"
// @Param    req   body  ConfirmSeatRequest true "payload"
// @Success  200 {object} map[string]string
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /flights/{id}/seats/{seat}/confirm [post]
func handleConfirmSeat(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		flightID := c.Param("id")
		seatID := c.Param("seat")

		var req ConfirmSeatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := svcs.SeatHold.Confirm(
			c.Request.Context(),
			seatID,
			flightID,
			req.PassengerID,
		); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
	}
}

// @Summary  Join waitlist
// @Param    req body  JoinWaitlistRequest true "payload"
// @Success  201 {object} domain.WaitlistTicket
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /waitlist [post]
func handleJoinWaitlist(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req JoinWaitlistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		bookedAt, err := parseRFC3339(req.BookingTimestamp)
		if err != nil {
			badRequest(c, "invalid booking_timestamp (RFC3339)")
			return
		}

		ticket, err := svcs.Waitlist.Join(c.Request.Context(), waitlist.JoinRequest{
			PassengerID:      req.PassengerID,
			CheckInID:        req.CheckInID,
			FlightID:         req.FlightID,
			SeatID:           req.SeatID,
			LoyaltyTier:      domain.LoyaltyTier(req.LoyaltyTier),
			BookingTimestamp: bookedAt,
			SpecialNeeds:     req.SpecialNeeds,
			Baggage:          req.Baggage,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, ticket)
	}
}

// @Summary  Leave waitlist
// @Param    id            path   string  true  "Waitlist entry ID"
// @Param    passenger_id  query  string  true  "Passenger ID"
// @Success  200 {object} map[string]string
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /waitlist/{id} [delete]
func handleLeaveWaitlist(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		waitlistID := c.Param("id")

		passengerID := c.Query("passenger_id")
		if passengerID == "" {
			badRequest(c, "missing passenger_id")
			return
		}

		if err := svcs.Waitlist.Leave(
			c.Request.Context(),
			waitlistID,
			passengerID,
		); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "removed"})
	}
}

// @Summary  Create flight and seed seats
// @Param    req body  CreateFlightRequest true "payload"
// @Success  201 {object} CreateFlightResponse
// @Failure  409 {object} ErrorResponse
// @Router   /admin/flights [post]
func handleCreateFlight(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateFlightRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		seats, err := svcs.Fleet.CreateFlight(
			c.Request.Context(),
			req.FlightID,
			req.Aircraft,
			req.Rows,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateFlightResponse{
			FlightID: req.FlightID,
			Seats:    seats,
		})
	}
}

// --- Helpers ---

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func isRateLimitedErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "rate limited")
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var unavailable *seathold.SeatUnavailableError
	if errors.As(err, &unavailable) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:       "seat " + unavailable.SeatID + " is not available",
			Code:        "SEAT_UNAVAILABLE",
			Suggestions: unavailable.Suggestions,
		})
		return
	}

	switch {
	// seat hold manager
	case errors.Is(err, seathold.ErrSeatNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "seat not found",
			Code:  "SEAT_NOT_FOUND",
		})
		return
	case errors.Is(err, seathold.ErrFlightNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "flight not found",
			Code:  "FLIGHT_NOT_FOUND",
		})
		return
	case errors.Is(err, seathold.ErrNotHeld):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "seat is not held",
			Code:  "SEAT_NOT_HELD",
		})
		return
	case errors.Is(err, seathold.ErrHeldByOther):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "seat is held by another passenger",
			Code:  "SEAT_HELD_BY_OTHER",
		})
		return
	case errors.Is(err, seathold.ErrConcurrentConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "seat changed concurrently, retry",
			Code:  "CONCURRENT_CONFLICT",
		})
		return

	// waitlist
	case errors.Is(err, waitlist.ErrAlreadyOnWaitlist):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "already on waitlist for this seat",
			Code:  "ALREADY_ON_WAITLIST",
		})
		return
	case errors.Is(err, waitlist.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "waitlist entry not found",
			Code:  "WAITLIST_ENTRY_NOT_FOUND",
		})
		return
	case errors.Is(err, waitlist.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error: "entry belongs to another passenger",
			Code:  "FORBIDDEN",
		})
		return

	// fleet
	case errors.Is(err, fleet.ErrFlightConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "flight already exists",
			Code:  "FLIGHT_CONFLICT",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
