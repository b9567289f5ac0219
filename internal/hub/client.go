// Package hub talks to the central hub that registers stations, hands out access codes
// and relays messages to attached clients.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"game-station/internal/log"
	"game-station/internal/station"
)

// KeyHeader carries the station key on every request.
const KeyHeader = "X-Station-Key"

// ErrUnexpectedStatus wraps non-2xx hub responses.
var ErrUnexpectedStatus = errors.New("unexpected hub response")

// Options configures a Client.
type Options struct {
	BaseURL    string
	StationID  string
	StationKey string
	HTTPProxy  string
	Timeout    time.Duration
	RatePerSec float64 // 0 disables outbound limiting
	Burst      int
}

// Client implements station.Hub over JSON/HTTP.
type Client struct {
	base    *url.URL
	id      string
	key     string
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

var _ station.Hub = (*Client)(nil)

// NewClient builds a hub client. An invalid proxy is logged and ignored.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid hub url %q", opts.BaseURL)
	}
	logger := log.WithComponent("hub")

	var transport http.RoundTripper = http.DefaultTransport
	if opts.HTTPProxy != "" {
		proxyURL, err := url.Parse(opts.HTTPProxy)
		if err != nil {
			logger.Warn().Err(err).Str("proxy", opts.HTTPProxy).Msg("invalid proxy URL, hub client will not use a proxy")
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}

	return &Client{
		base:    base,
		id:      opts.StationID,
		key:     opts.StationKey,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		limiter: limiter,
		logger:  logger,
	}, nil
}

type registerRequest struct {
	StationID string `json:"station_id"`
}

type statusRequest struct {
	State string `json:"state"`
}

type accessCodeRequest struct {
	Code       int `json:"code"`
	TimeoutSec int `json:"timeout_sec"`
}

type messageRequest struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// Register announces the station. A 403 or 409 means the hub refuses this station,
// typically because another instance with the same identity is active.
func (c *Client) Register(ctx context.Context, stationID, stationKey string) error {
	status, err := c.do(ctx, http.MethodPost, c.stationPath(stationID, "register"), stationKey, registerRequest{StationID: stationID})
	if err != nil {
		if status == http.StatusForbidden || status == http.StatusConflict {
			return fmt.Errorf("%w: %v", station.ErrRegistrationRefused, err)
		}
		return err
	}
	return nil
}

// UploadStatus reports the lifecycle state.
func (c *Client) UploadStatus(ctx context.Context, state string) error {
	_, err := c.do(ctx, http.MethodPut, c.stationPath(c.id, "status"), c.key, statusRequest{State: state})
	return err
}

// SendHeartbeat tells the hub the station is alive.
func (c *Client) SendHeartbeat(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, c.stationPath(c.id, "heartbeat"), c.key, nil)
	return err
}

// DeliverAccessCode hands a freshly issued access code and its lifetime to the hub.
func (c *Client) DeliverAccessCode(ctx context.Context, code, timeoutSec int) error {
	_, err := c.do(ctx, http.MethodPost, c.stationPath(c.id, "access-code"), c.key,
		accessCodeRequest{Code: code, TimeoutSec: timeoutSec})
	return err
}

// PublishToClient relays a message to the attached client.
func (c *Client) PublishToClient(ctx context.Context, topic, payload string) error {
	_, err := c.do(ctx, http.MethodPost, c.stationPath(c.id, "messages"), c.key,
		messageRequest{Topic: topic, Payload: payload})
	return err
}

func (c *Client) stationPath(id, action string) string {
	return c.base.JoinPath("stations", id, action).String()
}

// do sends body as JSON and returns the response status, or 0 if no response arrived.
func (c *Client) do(ctx context.Context, method, endpoint, key string, body any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("hub rate limit: %w", err)
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(KeyHeader, key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debug().
			Str(log.FieldEndpoint, endpoint).
			Int(log.FieldStatus, resp.StatusCode).
			Msg("hub call failed")
		return resp.StatusCode, fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, method, endpoint,
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
