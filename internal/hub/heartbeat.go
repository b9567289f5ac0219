package hub

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"game-station/internal/log"
	"game-station/internal/station"
)

// HeartbeatSource is the part of the controller the heartbeater drives.
type HeartbeatSource interface {
	SendHeartbeat(ctx context.Context) error
	HeartbeatInterval() time.Duration
}

// Heartbeater periodically reports liveness to the hub while the station is available.
type Heartbeater struct {
	src    HeartbeatSource
	logger zerolog.Logger
}

// NewHeartbeater returns a heartbeater for src.
func NewHeartbeater(src HeartbeatSource) *Heartbeater {
	return &Heartbeater{src: src, logger: log.WithComponent("heartbeat")}
}

// Run sends heartbeats until ctx is cancelled.
func (h *Heartbeater) Run(ctx context.Context) error {
	interval := h.src.HeartbeatInterval()
	if interval <= 0 {
		h.logger.Info().Msg("heartbeat disabled by ruleset")
		<-ctx.Done()
		return nil
	}
	h.logger.Info().Dur("interval", interval).Msg("starting heartbeat")

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("heartbeat shutting down")
			return nil
		case <-timer.C:
			h.beat(ctx)
			timer.Reset(interval)
		}
	}
}

func (h *Heartbeater) beat(ctx context.Context) {
	err := h.src.SendHeartbeat(ctx)
	switch {
	case err == nil:
	case errors.Is(err, station.ErrNotOnline), errors.Is(err, station.ErrStopped):
		h.logger.Debug().Err(err).Msg("heartbeat skipped")
	default:
		h.logger.Warn().Err(err).Msg("heartbeat failed")
	}
}
