package service

import (
	"log/slog"
	"time"

	"github.com/avdeenko/skyhold/internal/client"
	"github.com/avdeenko/skyhold/internal/eventbus"
	postgres "github.com/avdeenko/skyhold/internal/repository/postgres"
	redis "github.com/avdeenko/skyhold/internal/repository/redis"
	"github.com/avdeenko/skyhold/internal/service/fleet"
	"github.com/avdeenko/skyhold/internal/service/seathold"
	"github.com/avdeenko/skyhold/internal/service/waitlist"
)

type Services struct {
	SeatHold *seathold.Service
	Waitlist *waitlist.Service
	Engine   *waitlist.Engine
	Fleet    *fleet.Service
}

type Config struct {
	SeatHold         seathold.Config
	Waitlist         waitlist.Config
	PromotionTimeout time.Duration
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	bus *eventbus.Bus,
	limiter *redis.SlidingWindowLimiter,
	checkin *client.CheckinClient,
	notify *client.Notifier,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		SeatHold: seathold.New(store, cache, bus, limiter, logger, cfg.SeatHold),
		Waitlist: waitlist.New(store, bus, logger, cfg.Waitlist),
		Engine: waitlist.NewEngine(
			store.Waitlist(), checkin, notify, bus, logger, cfg.PromotionTimeout,
		),
		Fleet: fleet.New(store, logger),
	}
}
