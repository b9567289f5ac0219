package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-station/internal/model"
	"game-station/internal/mw"
	"game-station/internal/station"
	"game-station/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStation struct {
	mu        sync.Mutex
	submitErr error
	beatErr   error
	submitted []station.Command
	keys      []rune
	state     station.State
	commands  int
}

func (f *fakeStation) SubmitCommand(ctx context.Context, cmd station.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, cmd)
	return f.submitErr
}

func (f *fakeStation) SendHeartbeat(ctx context.Context) error { return f.beatErr }

func (f *fakeStation) ProcessConsoleInput(key rune) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return key == '+'
}

func (f *fakeStation) Snapshot() station.Snapshot {
	return station.Snapshot{StationID: "station-1", State: f.state, Confirmed: true}
}

func (f *fakeStation) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands++
	return []string{"Score", "Finish"}
}

type fakeStore struct {
	sessions []model.SessionResult
	subs     map[string]model.PushSubscription
	limits   []int
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: make(map[string]model.PushSubscription)}
}

func (f *fakeStore) RecordSession(ctx context.Context, result station.SessionResult) error {
	f.sessions = append([]model.SessionResult{{StationID: result.StationID, Score: result.Score}}, f.sessions...)
	return nil
}

func (f *fakeStore) RecentSessions(ctx context.Context, limit int) ([]model.SessionResult, error) {
	f.limits = append(f.limits, limit)
	if limit < len(f.sessions) {
		return f.sessions[:limit], nil
	}
	return f.sessions, nil
}

func (f *fakeStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription) error {
	f.subs[sub.Endpoint] = sub
	return nil
}

func (f *fakeStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	sub, ok := f.subs[endpoint]
	if !ok {
		return sub, store.ErrNotFound
	}
	return sub, nil
}

func (f *fakeStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	delete(f.subs, endpoint)
	return nil
}

func (f *fakeStore) Subscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	return nil, nil
}

func setupRouter(st *fakeStation, s store.Store) *gin.Engine {
	h := NewHandler(st, s, &webpush.Options{VAPIDPublicKey: "pub-key"})
	return NewRouter(h, RouterConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTL: time.Minute})
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func TestPostCommand(t *testing.T) {
	st := &fakeStation{state: station.StateAuthenticating}
	r := setupRouter(st, newFakeStore())

	w := doJSON(r, http.MethodPost, "/api/commands", `{"command":"GenerateAccessCode"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"state":"Authenticating"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/commands", `{"line":"Score:10"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	assert.Equal(t, []station.Command{
		{Name: "GenerateAccessCode"},
		{Name: "Score", Params: "10"},
	}, st.submitted)
}

func TestPostCommandErrors(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		err      error
		expected int
	}{
		{name: "Malformed body", body: `{`, expected: http.StatusBadRequest},
		{name: "Missing command", body: `{}`, expected: http.StatusBadRequest},
		{name: "Bad line", body: `{"line":":x"}`, expected: http.StatusBadRequest},
		{name: "Rejected", body: `{"command":"BeginGame"}`, err: fmt.Errorf("%w: BeginGame", station.ErrCommandRejected), expected: http.StatusConflict},
		{name: "Hub refused status", body: `{"command":"AttachClient"}`, err: station.ErrStatusNotConfirmed, expected: http.StatusBadGateway},
		{name: "Code not delivered", body: `{"command":"GenerateAccessCode"}`, err: station.ErrAccessCodeDelivery, expected: http.StatusBadGateway},
		{name: "Stopped", body: `{"command":"BeginGame"}`, err: station.ErrStopped, expected: http.StatusServiceUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouter(&fakeStation{submitErr: tc.err}, newFakeStore())
			w := doJSON(r, http.MethodPost, "/api/commands", tc.body)
			assert.Equal(t, tc.expected, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestPostHeartbeat(t *testing.T) {
	r := setupRouter(&fakeStation{}, newFakeStore())
	assert.Equal(t, http.StatusNoContent, doJSON(r, http.MethodPost, "/api/heartbeat", "").Code)

	r = setupRouter(&fakeStation{beatErr: station.ErrNotOnline}, newFakeStore())
	assert.Equal(t, http.StatusConflict, doJSON(r, http.MethodPost, "/api/heartbeat", "").Code)

	r = setupRouter(&fakeStation{beatErr: errors.New("hub down")}, newFakeStore())
	assert.Equal(t, http.StatusBadGateway, doJSON(r, http.MethodPost, "/api/heartbeat", "").Code)
}

func TestPostConsole(t *testing.T) {
	st := &fakeStation{}
	r := setupRouter(st, newFakeStore())

	w := doJSON(r, http.MethodPost, "/api/console", `{"key":"+"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"handled":true}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/console", `{"key":"ab"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []rune{'+'}, st.keys)
}

func TestGetStatus(t *testing.T) {
	r := setupRouter(&fakeStation{state: station.StateOnline}, newFakeStore())

	w := doJSON(r, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "Online", snap["state"])
	assert.Equal(t, "station-1", snap["station_id"])
}

func TestGetCommandsIsCached(t *testing.T) {
	st := &fakeStation{}
	r := setupRouter(st, newFakeStore())

	w := doJSON(r, http.MethodGet, "/api/commands", "")
	assert.JSONEq(t, `{"lifecycle":["GenerateAccessCode","AttachClient","BeginGame"],"game":["Score","Finish"]}`, w.Body.String())
	doJSON(r, http.MethodGet, "/api/commands", "")

	assert.Equal(t, 1, st.commands)
}

func TestGetSessions(t *testing.T) {
	s := newFakeStore()
	s.sessions = []model.SessionResult{{StationID: "station-1", Score: 9}, {StationID: "station-1", Score: 4}}
	r := setupRouter(&fakeStation{}, s)

	w := doJSON(r, http.MethodGet, "/api/sessions?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"score":9`)
	assert.NotContains(t, w.Body.String(), `"score":4`)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/api/sessions?limit=zero", "").Code)

	doJSON(r, http.MethodGet, "/api/sessions?limit=999", "")
	assert.Equal(t, []int{1, maxSessionsLimit}, s.limits)
}

func TestInvalidatingRecorderDropsCachedSessions(t *testing.T) {
	s := newFakeStore()
	responses := cache.New(time.Minute, time.Minute)
	h := NewHandler(&fakeStation{}, s, nil)
	r := NewRouter(h, RouterConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, ResponseCache: responses})

	assert.Equal(t, "MISS", doJSON(r, http.MethodGet, "/api/sessions", "").Header().Get(mw.CacheHeader))
	assert.Equal(t, "HIT", doJSON(r, http.MethodGet, "/api/sessions", "").Header().Get(mw.CacheHeader))

	rec := InvalidatingRecorder(s, responses)
	require.NoError(t, rec.RecordSession(context.Background(), station.SessionResult{StationID: "station-1", Score: 3}))

	w := doJSON(r, http.MethodGet, "/api/sessions", "")
	assert.Equal(t, "MISS", w.Header().Get(mw.CacheHeader))
	assert.Contains(t, w.Body.String(), `"score":3`)
}

func TestInvalidatingRecorderKeepsCacheOnError(t *testing.T) {
	responses := cache.New(time.Minute, time.Minute)
	responses.Set("/api/sessions", "cached", time.Minute)

	rec := InvalidatingRecorder(failingRecorder{}, responses)
	require.Error(t, rec.RecordSession(context.Background(), station.SessionResult{}))

	_, found := responses.Get("/api/sessions")
	assert.True(t, found)
}

type failingRecorder struct{}

func (failingRecorder) RecordSession(ctx context.Context, result station.SessionResult) error {
	return errors.New("disk full")
}

func TestGetSessionsWithoutStore(t *testing.T) {
	r := setupRouter(&fakeStation{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(r, http.MethodGet, "/api/sessions", "").Code)
}

func TestSubscriptions(t *testing.T) {
	s := newFakeStore()
	r := setupRouter(&fakeStation{}, s)
	endpoint := "https://push.example/a?b=c"

	w := doJSON(r, http.MethodPut, "/api/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	w = doJSON(r, http.MethodPut, "/api/subscriptions",
		`{"endpoint":"`+endpoint+`","p256dh":"k","auth":"a","label":"ops"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"label":"ops"`))

	w = doJSON(r, http.MethodDelete, "/api/subscriptions", `{"endpoint":"`+endpoint+`"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVAPIDAndMetrics(t *testing.T) {
	r := setupRouter(&fakeStation{}, newFakeStore())

	w := doJSON(r, http.MethodGet, "/api/vapid_public_key", "")
	assert.JSONEq(t, `{"public_key":"pub-key"}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
