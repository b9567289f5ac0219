// Package tally is the reference ruleset: the hub sends points, the station adds them up
// and reports the total when the session ends.
package tally

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"game-station/internal/gpio"
	"game-station/internal/log"
	"game-station/internal/parse"
	"game-station/internal/station"
)

// Name is the registry name of the ruleset.
const Name = "tally"

// Game commands.
const (
	CmdScore  = "Score"
	CmdFinish = "Finish"
	CmdFault  = "Fault"
)

// Config tunes the ruleset.
type Config struct {
	AuthenticationTimeoutSec int
	HeartbeatIntervalMs      int
	TargetScore              int // 0 plays until Finish
	DemoTargetScore          int // used instead of TargetScore while the demo switch is on
	PulseDuration            time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		AuthenticationTimeoutSec: 60,
		HeartbeatIntervalMs:      30000,
		DemoTargetScore:          3,
		PulseDuration:            200 * time.Millisecond,
	}
}

// Game implements station.Rules.
type Game struct {
	cfg      Config
	board    *gpio.Board
	notifier station.Notifier
	logger   zerolog.Logger

	mu       sync.Mutex
	score    int
	target   int
	playing  bool
	finished bool
}

// Factory binds cfg and an optional board into a station.RulesFactory.
func Factory(cfg Config, board *gpio.Board) station.RulesFactory {
	return func(n station.Notifier) station.Rules {
		return New(cfg, board, n)
	}
}

// New builds the ruleset. board may be nil on stations without LEDs.
func New(cfg Config, board *gpio.Board, n station.Notifier) *Game {
	def := DefaultConfig()
	if cfg.AuthenticationTimeoutSec <= 0 {
		cfg.AuthenticationTimeoutSec = def.AuthenticationTimeoutSec
	}
	if cfg.HeartbeatIntervalMs <= 0 {
		cfg.HeartbeatIntervalMs = def.HeartbeatIntervalMs
	}
	if cfg.PulseDuration <= 0 {
		cfg.PulseDuration = def.PulseDuration
	}
	return &Game{
		cfg:      cfg,
		board:    board,
		notifier: n,
		logger:   log.WithComponent("rules." + Name),
	}
}

// Initialise picks the target score from the demo switch and clears the tally.
func (g *Game) Initialise() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.target = g.cfg.TargetScore
	if g.board != nil && g.board.ReadPin(gpio.PinDemoMode) == 1 {
		g.target = g.cfg.DemoTargetScore
		g.logger.Info().Int("target", g.target).Msg("demo switch on")
	}
	g.resetLocked()
	return nil
}

// Deinitialise stops accepting points.
func (g *Game) Deinitialise() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.playing = false
}

// AuthenticationTimeoutSec is how long a generated access code stays redeemable.
func (g *Game) AuthenticationTimeoutSec() int { return g.cfg.AuthenticationTimeoutSec }

// HeartbeatIntervalMs is the interval between hub heartbeats.
func (g *Game) HeartbeatIntervalMs() int { return g.cfg.HeartbeatIntervalMs }

// OnLifecycleStateChanged blinks the status LED whenever the station becomes available.
func (g *Game) OnLifecycleStateChanged(state station.State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if state != station.StateGamePlaying {
		g.playing = false
	}
	if state == station.StateOnline {
		g.pulse(gpio.PinStatusLED)
	}
}

// OnPreGameEntered clears the tally for the attached client.
func (g *Game) OnPreGameEntered() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
}

// OnSessionStarted starts counting points from zero.
func (g *Game) OnSessionStarted() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
	g.playing = true
}

// ProcessCommand accepts both {Name: "Score", Params: "10"} and the raw "Score:10".
func (g *Game) ProcessCommand(cmd station.Command) {
	name, params := cmd.Name, cmd.Params
	if params == "" {
		if n, p, err := parse.Command(cmd.Name); err == nil {
			name, params = n, p
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	switch name {
	case CmdScore:
		points, err := parse.Int(params)
		if err != nil || points < 0 {
			g.notifier.ErrorOccurred(fmt.Sprintf("invalid score %q", params))
			return
		}
		g.addLocked(points)
	case CmdFinish:
		g.finishLocked()
	case CmdFault:
		g.notifier.ErrorOccurred(params)
	default:
		g.logger.Warn().Str(log.FieldCommand, name).Msg("unknown game command")
		g.notifier.ErrorOccurred("unknown game command " + name)
	}
}

// CurrentScore returns the running tally.
func (g *Game) CurrentScore() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.score
}

// ProcessConsoleInput handles '+' (one point) and 'f' (finish).
func (g *Game) ProcessConsoleInput(key rune) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch key {
	case '+':
		g.addLocked(1)
	case 'f', 'F':
		g.finishLocked()
	default:
		return false
	}
	return true
}

// Commands lists the game commands the ruleset understands.
func (g *Game) Commands() []string {
	return []string{CmdScore, CmdFinish, CmdFault}
}

func (g *Game) addLocked(points int) {
	if !g.playing || g.finished {
		return
	}
	g.score += points
	g.logger.Debug().Int(log.FieldScore, g.score).Msg("score changed")
	g.notifier.ScoreChanged(g.score)
	g.pulse(gpio.PinScoreLED)
	if g.target > 0 && g.score >= g.target {
		g.finishLocked()
	}
}

func (g *Game) finishLocked() {
	if !g.playing || g.finished {
		return
	}
	g.finished = true
	g.notifier.SessionFinished()
}

func (g *Game) resetLocked() {
	g.score = 0
	g.finished = false
}

func (g *Game) pulse(pin gpio.Pin) {
	if g.board == nil {
		return
	}
	if err := g.board.Pulse(pin, g.cfg.PulseDuration); err != nil {
		g.logger.Warn().Err(err).Msg("led pulse failed")
	}
}
