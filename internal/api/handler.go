package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"

	"game-station/internal/station"
	"game-station/internal/store"
)

// Station is the controller surface exposed over HTTP.
type Station interface {
	SubmitCommand(ctx context.Context, cmd station.Command) error
	SendHeartbeat(ctx context.Context) error
	ProcessConsoleInput(key rune) bool
	Snapshot() station.Snapshot
	Commands() []string
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	station Station
	store   store.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler. s may be nil when no results database is configured.
func NewHandler(st Station, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		station: st,
		store:   s,
		webpush: webpushOptions,
	}
}
