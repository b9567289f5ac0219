package station

import (
	"context"
	"fmt"

	"game-station/internal/log"
	"game-station/internal/metrics"
)

func (c *Controller) generateAccessCodeLocked(ctx context.Context, cmd Command) error {
	if c.state != StateOnline {
		return c.rejectLocked(ctx, cmd, "Cannot generate access code in this state.")
	}

	code, err := c.newCode()
	if err != nil {
		return err
	}
	timeoutSec := c.rules.AuthenticationTimeoutSec()

	c.logger.Info().Msg("generating new access code and sending to hub")
	hubCtx, cancel := c.hubContext(ctx)
	defer cancel()
	if err := c.hub.DeliverAccessCode(hubCtx, code, timeoutSec); err != nil {
		metrics.RecordHubFailure("deliver_access_code")
		c.logger.Warn().Err(err).Msg("failed to upload access code")
		return fmt.Errorf("%w: %v", ErrAccessCodeDelivery, err)
	}

	c.accessCode = code
	if err := c.setStateLocked(ctx, StateAuthenticating); err != nil {
		c.accessCode = 0
		return err
	}
	c.authDog.Restart()
	c.logger.Info().Int("timeout_sec", timeoutSec).Msg("access code issued")
	return nil
}

func (c *Controller) attachClientLocked(ctx context.Context, cmd Command) error {
	if c.state != StateAuthenticating {
		return c.rejectLocked(ctx, cmd, "Cannot attach client in this state.")
	}

	c.logger.Info().Msg("attaching client")
	if err := c.setStateLocked(ctx, StatePreGame); err != nil {
		return err
	}
	c.rules.OnPreGameEntered()
	c.preGameDog.Restart()
	c.publishLocked(ctx, TopicClientAttached, "")
	return nil
}

func (c *Controller) beginGameLocked(ctx context.Context, cmd Command) error {
	if c.state != StatePreGame {
		return c.rejectLocked(ctx, cmd, "Cannot begin game in this state.")
	}

	if err := c.setStateLocked(ctx, StateGamePlaying); err != nil {
		return err
	}
	c.sessionStarted = c.clock.Now()
	c.rules.OnSessionStarted()
	return nil
}

func (c *Controller) rejectLocked(ctx context.Context, cmd Command, reason string) error {
	c.logger.Warn().
		Str(log.FieldCommand, cmd.Name).
		Stringer(log.FieldState, c.state).
		Msg(reason)
	c.publishLocked(ctx, rejectionTopic(cmd.Name), reason)
	return fmt.Errorf("%w: %s in state %s", ErrCommandRejected, cmd.Name, c.state)
}
