// Package notification delivers operator alerts as web push notifications.
package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"game-station/internal/log"
	"game-station/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Subscribers is the part of the store the pool reads operator endpoints from.
type Subscribers interface {
	Subscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Alert is one operator notification.
type Alert struct {
	StationID string `json:"station_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// WorkerPool manages a pool of workers for sending alerts.
type WorkerPool struct {
	size      int
	stationID string
	jobs      chan Alert
	subs      Subscribers
	webpush   *webpush.Options
	sender    NotificationSender
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. Alerts carry stationID so operators running
// several stations can tell them apart.
func NewWorkerPool(size int, stationID string, subs Subscribers, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:      size,
		stationID: stationID,
		jobs:      make(chan Alert, size*8),
		subs:      subs,
		webpush:   webpushOptions,
		sender:    &WebPushSender{},
		logger:    log.WithComponent("notification"),
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	logger := wp.logger.With().Int("worker", id).Logger()
	logger.Debug().Msg("worker started")
	for {
		select {
		case alert := <-wp.jobs:
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			logger.Debug().Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues an alert. It never blocks: when the queue is full the alert is dropped.
func (wp *WorkerPool) Dispatch(alert Alert) bool {
	if alert.StationID == "" {
		alert.StationID = wp.stationID
	}
	select {
	case wp.jobs <- alert:
		return true
	default:
		wp.logger.Warn().Str("title", alert.Title).Msg("alert queue full, dropping alert")
		return false
	}
}

// Alert satisfies station.Alerter.
func (wp *WorkerPool) Alert(title, body string) {
	wp.Dispatch(Alert{Title: title, Body: body})
}

func (wp *WorkerPool) sendAlert(ctx context.Context, alert Alert) {
	subscriptions, err := wp.subs.Subscriptions(ctx)
	if err != nil {
		wp.logger.Error().Err(err).Msg("error fetching subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		wp.logger.Debug().Str("title", alert.Title).Msg("no operator subscribed, alert not sent")
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		wp.logger.Error().Err(err).Msg("failed to encode alert")
		return
	}

	wp.logger.Info().Int("subscriptions", len(subscriptions)).Str("title", alert.Title).Msg("sending alert")
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn().Err(err).Str(log.FieldEndpoint, sub.Endpoint).Msg("error sending notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.logger.Info().Str(log.FieldEndpoint, sub.Endpoint).Msg("subscription expired, deleting")
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.logger.Error().Err(err).Str(log.FieldEndpoint, sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
