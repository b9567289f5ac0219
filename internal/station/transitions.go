package station

import (
	"context"
	"fmt"

	"game-station/internal/log"
	"game-station/internal/metrics"
)

func (c *Controller) activateLocked() error {
	c.activationAttempts++
	attempt := c.activationAttempts

	ctx, cancel := c.hubContext(context.Background())
	defer cancel()

	err := c.hub.Register(ctx, c.cfg.StationID, c.cfg.StationKey)
	if err != nil {
		metrics.RecordHubFailure("register")
	} else if err = c.setStateLocked(ctx, StateActivated); err == nil {
		c.activationAttempts = 0
		c.settleDog.Restart()
		return nil
	}

	c.logger.Warn().Err(err).Int(log.FieldAttempt, attempt).Msg("activation refused by hub; is another station already running?")
	c.forceStateLocked(StateInitialised)
	c.scheduleRetryLocked(attempt)
	return fmt.Errorf("activate station %s: %w", c.cfg.StationID, err)
}

func (c *Controller) scheduleRetryLocked(attempt int) {
	policy := c.cfg.ActivationRetry
	if attempt > policy.MaxRetries {
		c.logger.Error().Int(log.FieldAttempt, attempt).Msg("activation retries exhausted, waiting for reset watchdog")
		c.alertLocked("Station activation failed",
			fmt.Sprintf("station %s could not register after %d attempts", c.cfg.StationID, attempt))
		return
	}

	c.cancelRetryLocked()
	epoch := c.retryEpoch
	delay := policy.Delay(attempt)
	c.retryTimer = c.clock.AfterFunc(delay, func() { c.events.push(retryEvent{epoch}) })
	c.logger.Info().Dur("delay", delay).Int(log.FieldAttempt, attempt).Msg("activation retry scheduled")
}

func (c *Controller) cancelRetryLocked() {
	c.retryEpoch++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// setStateLocked uploads next to the hub and commits it only once the hub confirmed it.
// Transitioning to the current state succeeds without side effects.
func (c *Controller) setStateLocked(ctx context.Context, next State) error {
	if c.state == next {
		return nil
	}
	prev := c.state

	hubCtx, cancel := c.hubContext(ctx)
	defer cancel()
	if err := c.hub.UploadStatus(hubCtx, next.String()); err != nil {
		metrics.RecordHubFailure("upload_status")
		metrics.RecordTransition(prev.String(), next.String(), "failed")
		c.logger.Warn().Err(err).
			Stringer(log.FieldOldState, prev).
			Stringer(log.FieldNewState, next).
			Msg("status upload failed, state unchanged")
		return fmt.Errorf("%w: %s -> %s: %v", ErrStatusNotConfirmed, prev, next, err)
	}

	c.commitLocked(prev, next, true)
	return nil
}

// forceStateLocked commits next even when the hub cannot be told about it; the snapshot
// then reports the state as unconfirmed.
func (c *Controller) forceStateLocked(next State) {
	if c.state == next {
		return
	}
	prev := c.state

	ctx, cancel := c.hubContext(context.Background())
	defer cancel()
	err := c.hub.UploadStatus(ctx, next.String())
	if err != nil {
		metrics.RecordHubFailure("upload_status")
		c.logger.Warn().Err(err).Stringer(log.FieldNewState, next).Msg("status upload failed, committing locally")
	}
	c.commitLocked(prev, next, err == nil)
}

func (c *Controller) commitLocked(prev, next State, confirmed bool) {
	c.state = next
	c.confirmed = confirmed
	if next != StateAuthenticating {
		c.accessCode = 0
	}
	if !c.cleanedUp {
		c.resetDog.Restart()
	}

	outcome := "ok"
	if !confirmed {
		outcome = "unconfirmed"
	}
	metrics.RecordTransition(prev.String(), next.String(), outcome)
	c.publishStateMetric()
	c.logger.Info().
		Stringer(log.FieldOldState, prev).
		Stringer(log.FieldNewState, next).
		Bool("confirmed", confirmed).
		Msg("lifecycle state changed")

	if confirmed && !c.cleanedUp {
		c.rules.OnLifecycleStateChanged(next)
	}
}

func (c *Controller) detachClientLocked() {
	c.publishLocked(context.Background(), TopicClientDetached, "")
}

// publishLocked relays a message to the attached client. Delivery is best effort.
func (c *Controller) publishLocked(ctx context.Context, topic, payload string) {
	hubCtx, cancel := c.hubContext(ctx)
	defer cancel()
	if err := c.hub.PublishToClient(hubCtx, topic, payload); err != nil {
		metrics.RecordHubFailure("publish")
		c.logger.Warn().Err(err).Str("topic", topic).Msg("failed to publish to client")
	}
}

func (c *Controller) recordSessionLocked(ctx context.Context, score int) {
	if c.recorder == nil {
		return
	}
	result := SessionResult{
		StationID:  c.cfg.StationID,
		Ruleset:    c.cfg.Ruleset,
		Score:      score,
		StartedAt:  c.sessionStarted,
		FinishedAt: c.clock.Now(),
	}
	recCtx, cancel := c.hubContext(ctx)
	defer cancel()
	if err := c.recorder.RecordSession(recCtx, result); err != nil {
		c.logger.Error().Err(err).Msg("failed to record session result")
	}
}

func (c *Controller) alertLocked(title, body string) {
	if c.alerter != nil {
		c.alerter.Alert(title, body)
	}
}

func (c *Controller) hubContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, c.cfg.HubCallTimeout)
}

func (c *Controller) publishStateMetric() {
	all := States()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.String()
	}
	metrics.SetLifecycleState(c.state.String(), names)
}
