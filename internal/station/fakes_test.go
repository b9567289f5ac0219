package station

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"game-station/internal/watchdog/watchdogtest"
)

var errHubDown = errors.New("hub unreachable")

type published struct {
	Topic   string
	Payload string
}

type deliveredCode struct {
	Code       int
	TimeoutSec int
}

// fakeHub records every call and fails on demand.
type fakeHub struct {
	mu sync.Mutex

	registerErr  error
	uploadErr    func(state string) error
	deliverErr   error
	heartbeatErr error

	registrations int
	uploads       []string
	heartbeats    int
	codes         []deliveredCode
	messages      []published
}

func (h *fakeHub) Register(ctx context.Context, stationID, stationKey string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registrations++
	return h.registerErr
}

func (h *fakeHub) UploadStatus(ctx context.Context, state string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.uploadErr != nil {
		if err := h.uploadErr(state); err != nil {
			return err
		}
	}
	h.uploads = append(h.uploads, state)
	return nil
}

func (h *fakeHub) SendHeartbeat(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heartbeats++
	return h.heartbeatErr
}

func (h *fakeHub) DeliverAccessCode(ctx context.Context, code, timeoutSec int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.deliverErr != nil {
		return h.deliverErr
	}
	h.codes = append(h.codes, deliveredCode{Code: code, TimeoutSec: timeoutSec})
	return nil
}

func (h *fakeHub) PublishToClient(ctx context.Context, topic, payload string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, published{Topic: topic, Payload: payload})
	return nil
}

func (h *fakeHub) set(fn func(h *fakeHub)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h)
}

func (h *fakeHub) uploadCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.uploads)
}

func (h *fakeHub) topics() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.messages))
	for i, m := range h.messages {
		out[i] = m.Topic
	}
	return out
}

func (h *fakeHub) lastMessage() published {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) == 0 {
		return published{}
	}
	return h.messages[len(h.messages)-1]
}

// fakeRules records lifecycle callbacks and lets tests raise notifications.
type fakeRules struct {
	mu       sync.Mutex
	notifier Notifier

	authTimeoutSec int
	score          int

	initialised   bool
	deinitialised bool
	preGame       int
	started       int
	stateChanges  []State
	commands      []Command
	keys          []rune
}

func (r *fakeRules) Initialise() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialised = true
	return nil
}

func (r *fakeRules) Deinitialise() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deinitialised = true
}

func (r *fakeRules) AuthenticationTimeoutSec() int { return r.authTimeoutSec }
func (r *fakeRules) HeartbeatIntervalMs() int      { return 5000 }

func (r *fakeRules) OnLifecycleStateChanged(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateChanges = append(r.stateChanges, state)
}

func (r *fakeRules) OnPreGameEntered() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preGame++
}

func (r *fakeRules) OnSessionStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *fakeRules) ProcessCommand(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

func (r *fakeRules) CurrentScore() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.score
}

func (r *fakeRules) ProcessConsoleInput(key rune) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return key == 'q'
}

func (r *fakeRules) Commands() []string { return []string{"Score"} }

type fakeRecorder struct {
	mu      sync.Mutex
	results []SessionResult
}

func (f *fakeRecorder) RecordSession(ctx context.Context, result SessionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeAlerter) Alert(title, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, title+": "+body)
}

func (f *fakeAlerter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

type harness struct {
	ctl      *Controller
	hub      *fakeHub
	rules    *fakeRules
	clock    *watchdogtest.Clock
	recorder *fakeRecorder
	alerter  *fakeAlerter
}

func testConfig() Config {
	return Config{
		StationID:  "station-1",
		StationKey: "secret",
		Ruleset:    "fake",
		ActivationRetry: RetryPolicy{
			BaseDelay:  5 * time.Second,
			MaxDelay:   time.Minute,
			MaxRetries: 2,
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		hub:      &fakeHub{},
		rules:    &fakeRules{authTimeoutSec: 60},
		clock:    watchdogtest.NewClock(),
		recorder: &fakeRecorder{},
		alerter:  &fakeAlerter{},
	}
	factory := func(n Notifier) Rules {
		h.rules.notifier = n
		return h.rules
	}
	ctl, err := New(testConfig(), h.hub, factory,
		WithClock(h.clock),
		WithLogger(zerolog.Nop()),
		WithResultRecorder(h.recorder),
		WithAlerter(h.alerter),
	)
	require.NoError(t, err)
	h.ctl = ctl
	t.Cleanup(ctl.Cleanup)
	return h
}

// advance moves the fake clock and processes whatever the watchdogs queued.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.ctl.processPending()
}

func (h *harness) online(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctl.Activate())
	require.Equal(t, StateActivated, h.ctl.State())
	h.advance(DefaultSettleDelay)
	require.Equal(t, StateOnline, h.ctl.State())
}

func (h *harness) authenticating(t *testing.T) {
	t.Helper()
	h.online(t)
	require.NoError(t, h.ctl.SubmitCommand(context.Background(), Command{Name: CmdGenerateAccessCode}))
	require.Equal(t, StateAuthenticating, h.ctl.State())
}

func (h *harness) preGame(t *testing.T) {
	t.Helper()
	h.authenticating(t)
	require.NoError(t, h.ctl.SubmitCommand(context.Background(), Command{Name: CmdAttachClient}))
	require.Equal(t, StatePreGame, h.ctl.State())
}

func (h *harness) playing(t *testing.T) {
	t.Helper()
	h.preGame(t)
	require.NoError(t, h.ctl.SubmitCommand(context.Background(), Command{Name: CmdBeginGame}))
	require.Equal(t, StateGamePlaying, h.ctl.State())
}

func (h *harness) postGame(t *testing.T) {
	t.Helper()
	h.playing(t)
	h.rules.notifier.SessionFinished()
	h.ctl.processPending()
	require.Equal(t, StatePostGame, h.ctl.State())
}
