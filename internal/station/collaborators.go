package station

import (
	"context"
	"time"
)

// Hub is the remote server the station registers with and reports to.
// Implementations must honour context deadlines; the controller calls them while holding
// its lock.
type Hub interface {
	// Register announces the station. A refusal is reported as an error wrapping
	// ErrRegistrationRefused.
	Register(ctx context.Context, stationID, stationKey string) error
	UploadStatus(ctx context.Context, state string) error
	SendHeartbeat(ctx context.Context) error
	DeliverAccessCode(ctx context.Context, code, timeoutSec int) error
	PublishToClient(ctx context.Context, topic, payload string) error
}

// Rules is the game-specific behaviour the controller delegates to.
// All methods are called with the controller lock held and must not call back into the
// controller synchronously; use the Notifier instead.
type Rules interface {
	Initialise() error
	Deinitialise()
	AuthenticationTimeoutSec() int
	HeartbeatIntervalMs() int
	OnLifecycleStateChanged(state State)
	OnPreGameEntered()
	OnSessionStarted()
	ProcessCommand(cmd Command)
	CurrentScore() int
	ProcessConsoleInput(key rune) bool
	// Commands lists the game commands the ruleset understands.
	Commands() []string
}

// Notifier receives events raised by Rules. Calls never block.
type Notifier interface {
	ErrorOccurred(description string)
	ScoreChanged(score int)
	SessionFinished()
}

// RulesFactory builds a ruleset bound to the controller's notifier.
type RulesFactory func(n Notifier) Rules

// SessionResult is the outcome of one finished play session.
type SessionResult struct {
	StationID  string
	Ruleset    string
	Score      int
	StartedAt  time.Time
	FinishedAt time.Time
}

// ResultRecorder persists finished sessions.
type ResultRecorder interface {
	RecordSession(ctx context.Context, result SessionResult) error
}

// Alerter forwards operator-facing alerts. Implementations must not block.
type Alerter interface {
	Alert(title, body string)
}
