// Package station implements the lifecycle of a single unattended game station: hub
// registration, access-code authentication, one supervised play session at a time, and
// the watchdogs that pull the station back to a known state when a client or the
// hardware stalls.
package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"game-station/internal/log"
	"game-station/internal/metrics"
	"game-station/internal/watchdog"
)

// Watchdog names.
const (
	WatchdogReset          = "reset"
	WatchdogAuthentication = "authentication"
	WatchdogPreGame        = "pre-game"
	WatchdogPostGame       = "post-game"

	watchdogSettle = "settle"
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used by every watchdog.
func WithClock(c watchdog.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// WithResultRecorder persists every finished session.
func WithResultRecorder(r ResultRecorder) Option {
	return func(ctl *Controller) { ctl.recorder = r }
}

// WithAlerter forwards rules errors and exhausted activation retries to operators.
func WithAlerter(a Alerter) Option {
	return func(ctl *Controller) { ctl.alerter = a }
}

// Controller owns the lifecycle state and its watchdogs. It is the only writer of the
// state; every public method and every asynchronous input is serialised on mu.
type Controller struct {
	mu sync.Mutex

	cfg      Config
	hub      Hub
	rules    Rules
	clock    watchdog.Clock
	logger   zerolog.Logger
	recorder ResultRecorder
	alerter  Alerter
	events   *mailbox
	newCode  func() (int, error)

	state          State
	confirmed      bool
	accessCode     int
	sessionStarted time.Time
	cleanedUp      bool

	resetDog    *watchdog.Timer
	authDog     *watchdog.Timer
	preGameDog  *watchdog.Timer
	postGameDog *watchdog.Timer
	settleDog   *watchdog.Timer

	activationAttempts int
	retryEpoch         uint64
	retryTimer         watchdog.Stopper
}

// New builds the controller and initialises the ruleset produced by factory. The station
// starts Initialised; Run (or Activate) performs the first activation attempt.
func New(cfg Config, hub Hub, factory RulesFactory, opts ...Option) (*Controller, error) {
	if hub == nil {
		return nil, fmt.Errorf("%w: hub client is required", ErrInvalidConfig)
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: rules factory is required", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:     cfg,
		hub:     hub,
		clock:   watchdog.RealClock(),
		logger:  log.WithComponent("station"),
		events:  newMailbox(),
		newCode: generateAccessCode,
		state:   StateInitialised,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().
		Str(log.FieldStationID, cfg.StationID).
		Str(log.FieldRuleset, cfg.Ruleset).
		Logger()

	c.rules = factory(notifier{c.events})
	if c.rules == nil {
		return nil, fmt.Errorf("%w: rules factory returned nil", ErrInvalidConfig)
	}
	authSecs := c.rules.AuthenticationTimeoutSec()
	if authSecs <= 0 {
		return nil, fmt.Errorf("%w: authentication timeout must be positive, got %d", ErrInvalidConfig, authSecs)
	}

	withClock := watchdog.WithClock(c.clock)
	c.resetDog = watchdog.New(WatchdogReset, cfg.ResetInterval, c.postExpiry, withClock)
	c.authDog = watchdog.New(WatchdogAuthentication, time.Duration(authSecs)*time.Second, c.postExpiry, withClock)
	c.preGameDog = watchdog.New(WatchdogPreGame, cfg.PreGameTimeout, c.postExpiry, withClock)
	c.postGameDog = watchdog.New(WatchdogPostGame, cfg.PostGameTimeout, c.postExpiry, withClock)
	c.settleDog = watchdog.New(watchdogSettle, cfg.SettleDelay, c.postExpiry, withClock)

	if err := c.rules.Initialise(); err != nil {
		return nil, fmt.Errorf("initialise rules: %w", err)
	}

	c.resetDog.Start()
	c.publishStateMetric()
	return c, nil
}

// Run activates the station and then processes watchdog expiries and rules notifications
// until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Activate(); err != nil {
		c.logger.Warn().Err(err).Msg("initial activation failed")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.events.ready():
			c.processPending()
		}
	}
}

// Activate registers the station with the hub. On success the station is Activated and
// moves Online once the settle delay passes undisturbed. On refusal it falls back to
// Initialised and schedules a bounded retry.
func (c *Controller) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanedUp {
		return ErrStopped
	}
	return c.activateLocked()
}

// SubmitCommand routes an inbound command. Lifecycle commands outside their qualifying
// state are rejected with ErrCommandRejected and a response published to the client; game
// commands outside GamePlaying are ignored.
func (c *Controller) SubmitCommand(ctx context.Context, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanedUp {
		return ErrStopped
	}

	c.logger.Info().
		Str(log.FieldCommand, cmd.Name).
		Str(log.FieldParams, cmd.Params).
		Stringer(log.FieldState, c.state).
		Msg("processing command")

	if !cmd.IsLifecycle() {
		if c.state != StateGamePlaying {
			c.logger.Debug().Str(log.FieldCommand, cmd.Name).Stringer(log.FieldState, c.state).Msg("game command ignored outside play")
			metrics.RecordCommand("game", "ignored")
			return nil
		}
		c.rules.ProcessCommand(cmd)
		metrics.RecordCommand("game", "delegated")
		return nil
	}

	var err error
	switch cmd.Name {
	case CmdGenerateAccessCode:
		err = c.generateAccessCodeLocked(ctx, cmd)
	case CmdAttachClient:
		err = c.attachClientLocked(ctx, cmd)
	case CmdBeginGame:
		err = c.beginGameLocked(ctx, cmd)
	}

	switch {
	case err == nil:
		metrics.RecordCommand(cmd.Name, "accepted")
	case errors.Is(err, ErrCommandRejected):
		metrics.RecordCommand(cmd.Name, "rejected")
	default:
		metrics.RecordCommand(cmd.Name, "failed")
	}
	return err
}

// SendHeartbeat forwards a heartbeat to the hub while the station is available to clients.
func (c *Controller) SendHeartbeat(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanedUp {
		return ErrStopped
	}
	if !c.state.clientConnected() {
		return fmt.Errorf("%w: state %s", ErrNotOnline, c.state)
	}

	hubCtx, cancel := c.hubContext(ctx)
	defer cancel()
	if err := c.hub.SendHeartbeat(hubCtx); err != nil {
		metrics.RecordHubFailure("heartbeat")
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}

// ProcessConsoleInput hands a maintenance key press to the ruleset.
func (c *Controller) ProcessConsoleInput(key rune) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanedUp {
		return false
	}
	return c.rules.ProcessConsoleInput(key)
}

// Cleanup tears down the ruleset, stops every watchdog and forces Deactivated. The
// controller accepts no further transitions afterwards.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanedUp {
		return
	}

	c.rules.Deinitialise()
	c.cleanedUp = true
	for _, dog := range []*watchdog.Timer{c.resetDog, c.authDog, c.preGameDog, c.postGameDog, c.settleDog} {
		dog.Stop()
	}
	c.cancelRetryLocked()
	c.forceStateLocked(StateDeactivated)
	c.logger.Info().Msg("station cleaned up")
}

// processPending drains the mailbox on the caller's goroutine.
func (c *Controller) processPending() {
	for {
		pending := c.events.drain()
		if len(pending) == 0 {
			return
		}
		for _, ev := range pending {
			c.dispatch(ev)
		}
	}
}

func (c *Controller) dispatch(ev event) {
	c.logger.Debug().Type(log.FieldEvent, ev).Msg("dispatching controller event")
	switch e := ev.(type) {
	case expiryEvent:
		c.handleExpiry(e.Expiry)
	case retryEvent:
		c.handleActivationRetry(e.epoch)
	case errorEvent:
		c.handleErrorOccurred(e.description)
	case scoreEvent:
		c.handleScoreChanged(e.score)
	case finishedEvent:
		c.handleSessionFinished()
	default:
		c.logger.Error().Type(log.FieldEvent, ev).Msg("unknown controller event")
	}
}

func (c *Controller) postExpiry(e watchdog.Expiry) {
	c.events.push(expiryEvent{e})
}
