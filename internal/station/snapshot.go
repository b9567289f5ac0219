package station

import (
	"time"

	"game-station/internal/watchdog"
)

// WatchdogStatus describes one bounded watchdog.
type WatchdogStatus struct {
	RemainingSecs int  `json:"remaining_secs"`
	TotalSecs     int  `json:"total_secs"`
	Armed         bool `json:"armed"`
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	StationID          string         `json:"station_id"`
	State              State          `json:"state"`
	Confirmed          bool           `json:"confirmed"`
	AccessCode         int            `json:"access_code,omitempty"`
	Authentication     WatchdogStatus `json:"authentication"`
	PreGame            WatchdogStatus `json:"pre_game"`
	PostGame           WatchdogStatus `json:"post_game"`
	ResetRemainingSecs int            `json:"reset_remaining_secs"`
	ActivationAttempts int            `json:"activation_attempts"`
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AccessCode returns the code issued for the current authentication window, or 0 when the
// station is not Authenticating.
func (c *Controller) AccessCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessCode
}

// Snapshot returns state, access code and watchdog timings read under one lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		StationID:          c.cfg.StationID,
		State:              c.state,
		Confirmed:          c.confirmed,
		AccessCode:         c.accessCode,
		Authentication:     statusOf(c.authDog),
		PreGame:            statusOf(c.preGameDog),
		PostGame:           statusOf(c.postGameDog),
		ResetRemainingSecs: seconds(c.resetDog.Remaining()),
		ActivationAttempts: c.activationAttempts,
	}
}

// Commands lists the game commands understood by the ruleset.
func (c *Controller) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rules.Commands()
}

// StationID returns the hub identity of the station.
func (c *Controller) StationID() string { return c.cfg.StationID }

// HeartbeatInterval returns the heartbeat period requested by the ruleset.
func (c *Controller) HeartbeatInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.rules.HeartbeatIntervalMs()) * time.Millisecond
}

func statusOf(t *watchdog.Timer) WatchdogStatus {
	return WatchdogStatus{
		RemainingSecs: seconds(t.Remaining()),
		TotalSecs:     seconds(t.Interval()),
		Armed:         t.Armed(),
	}
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
