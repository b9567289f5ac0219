package station

import (
	"context"
	"strconv"

	"game-station/internal/log"
	"game-station/internal/metrics"
	"game-station/internal/watchdog"
)

func (c *Controller) handleExpiry(e watchdog.Expiry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanedUp {
		return
	}

	switch e.Name {
	case WatchdogReset:
		c.onResetExpiredLocked(e)
	case WatchdogAuthentication:
		// Client did not redeem the code in time.
		c.onGuardedExpiryLocked(e, c.authDog, StateAuthenticating, true)
	case WatchdogPreGame:
		// Client did not begin the game in time.
		c.onGuardedExpiryLocked(e, c.preGameDog, StatePreGame, true)
	case WatchdogPostGame:
		c.onGuardedExpiryLocked(e, c.postGameDog, StatePostGame, false)
	case watchdogSettle:
		c.onGuardedExpiryLocked(e, c.settleDog, StateActivated, false)
	default:
		c.logger.Error().Str(log.FieldWatchdog, e.Name).Msg("expiry from unknown watchdog")
	}
}

// onGuardedExpiryLocked moves the station Online if the expiry is still current and the
// station is still in the state the watchdog guards. Anything else is stale.
func (c *Controller) onGuardedExpiryLocked(e watchdog.Expiry, dog *watchdog.Timer, guarded State, detach bool) {
	if !dog.Current(e.Epoch) || c.state != guarded {
		c.discardStaleLocked(e, guarded)
		return
	}

	metrics.RecordWatchdogExpiry(e.Name, false)
	c.logger.Info().Str(log.FieldWatchdog, e.Name).Stringer(log.FieldState, c.state).Msg("watchdog expired")
	if detach {
		c.detachClientLocked()
	}
	if err := c.setStateLocked(context.Background(), StateOnline); err != nil {
		c.logger.Warn().Err(err).Str(log.FieldWatchdog, e.Name).Msg("could not return to Online after expiry")
	}
}

func (c *Controller) onResetExpiredLocked(e watchdog.Expiry) {
	if !c.resetDog.Current(e.Epoch) {
		c.discardStaleLocked(e, c.state)
		return
	}

	metrics.RecordWatchdogExpiry(e.Name, false)
	c.logger.Warn().Stringer(log.FieldState, c.state).Msg("no lifecycle progress for too long, resetting station")

	// The expiry disarmed the watchdog; re-arm it so a failed cycle is retried later.
	c.resetDog.Restart()
	c.detachClientLocked()
	c.forceStateLocked(StateDeactivated)
	c.cancelRetryLocked()
	c.activationAttempts = 0
	if err := c.activateLocked(); err != nil {
		c.logger.Warn().Err(err).Msg("reactivation after reset failed")
	}
}

func (c *Controller) discardStaleLocked(e watchdog.Expiry, guarded State) {
	metrics.RecordWatchdogExpiry(e.Name, true)
	c.logger.Debug().
		Str(log.FieldWatchdog, e.Name).
		Stringer("guarded_state", guarded).
		Stringer(log.FieldState, c.state).
		Msg("discarding stale watchdog expiry")
}

func (c *Controller) handleActivationRetry(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanedUp || epoch != c.retryEpoch || c.state != StateInitialised {
		return
	}
	c.retryTimer = nil
	if err := c.activateLocked(); err != nil {
		c.logger.Warn().Err(err).Msg("activation retry failed")
	}
}

func (c *Controller) handleErrorOccurred(description string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanedUp {
		return
	}

	// Abort policy is left to operators; the lifecycle carries on.
	c.logger.Error().Str("description", description).Stringer(log.FieldState, c.state).Msg("ruleset reported an error")
	c.alertLocked("Station error", description)
}

func (c *Controller) handleScoreChanged(score int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanedUp || c.state != StateGamePlaying {
		return
	}
	c.logger.Info().Int(log.FieldScore, score).Msg("new score")
	c.publishLocked(context.Background(), TopicNewScore, strconv.Itoa(score))
}

func (c *Controller) handleSessionFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanedUp {
		return
	}
	if c.state != StateGamePlaying {
		c.logger.Debug().Stringer(log.FieldState, c.state).Msg("ignoring session-finished outside play")
		return
	}

	ctx := context.Background()
	score := c.rules.CurrentScore()
	c.logger.Info().Int(log.FieldScore, score).Msg("session finished")

	if err := c.setStateLocked(ctx, StatePostGame); err != nil {
		c.logger.Warn().Err(err).Msg("could not enter PostGame, game over not announced")
		return
	}
	c.postGameDog.Restart()
	c.publishLocked(ctx, TopicGameOver, strconv.Itoa(score))
	c.recordSessionLocked(ctx, score)
}
