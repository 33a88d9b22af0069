package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sessiond/pkg/fingerprint"
	"sessiond/services/registry"
)

// Client talks to the registry HTTP API on behalf of one login instance.
// Reads fail open: a registry hiccup during login must never lock a
// legitimate user out, so read errors degrade to "no conflict" instead of
// blocking. Writes are not retried; callers proceed optimistically and the
// next heartbeat tick corrects the view.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	device  *fingerprint.DeviceFingerprint
	log     zerolog.Logger
}

// NewClient builds a registry client bound to this login instance's token
// and device identity.
func NewClient(baseURL, token string, device *fingerprint.DeviceFingerprint, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		token:   token,
		device:  device,
		log:     log,
	}
}

// Token returns the session token this client acts for.
func (c *Client) Token() string { return c.token }

// CheckExistingSession returns the live session another device holds for
// userID, or nil when there is none. Any transport or server error also
// yields nil: availability over strict single-session enforcement.
func (c *Client) CheckExistingSession(ctx context.Context, userID uuid.UUID) *registry.Session {
	body := map[string]any{
		"user_id":       userID,
		"session_token": c.token,
	}
	var out struct {
		Conflict *registry.Session `json:"conflict"`
	}
	if err := c.post(ctx, "/v1/sessions/conflict", body, &out); err != nil {
		c.log.Warn().Err(err).Msg("conflict check failed, treating as no conflict")
		return nil
	}
	return out.Conflict
}

// RegisterSession makes this login instance the user's sole active session.
func (c *Client) RegisterSession(ctx context.Context, userID uuid.UUID) error {
	signals := map[string]any{
		"timezone": c.device.Signals.Timezone,
		"language": c.device.Signals.Language,
		"platform": c.device.Signals.Platform,
		"cores":    c.device.Signals.HardwareConcurrency,
	}
	body := registry.RegisterInput{
		UserID:            userID,
		SessionToken:      c.token,
		DeviceFingerprint: c.device.Hash,
		DeviceName:        c.device.DeviceName,
		OperatingSystem:   c.device.OperatingSystem,
		BrowserName:       c.device.BrowserName,
		UserAgentRaw:      c.device.UserAgentRaw,
		Signals:           signals,
	}
	return c.post(ctx, "/v1/sessions/register", body, nil)
}

// ForceDeactivateSession kicks a specific session by its registry id.
func (c *Client) ForceDeactivateSession(ctx context.Context, sessionID uuid.UUID) error {
	return c.post(ctx, fmt.Sprintf("/v1/sessions/%s/kick", sessionID), nil, nil)
}

// DeactivateCurrentSession flips this instance's own record inactive; called
// on sign-out.
func (c *Client) DeactivateCurrentSession(ctx context.Context) error {
	return c.post(ctx, "/v1/sessions/deactivate", map[string]any{"session_token": c.token}, nil)
}

// Heartbeat refreshes this session's liveness timestamp. It reports false
// when the registry no longer considers the session active.
func (c *Client) Heartbeat(ctx context.Context) (bool, error) {
	var out struct {
		Updated bool `json:"updated"`
	}
	if err := c.post(ctx, "/v1/sessions/heartbeat", map[string]any{"session_token": c.token}, &out); err != nil {
		return false, err
	}
	return out.Updated, nil
}

// CheckDeviceRegistration looks up whether this device has registered an
// account before.
func (c *Client) CheckDeviceRegistration(ctx context.Context) (*registry.DeviceRegistration, error) {
	var out struct {
		Registration *registry.DeviceRegistration `json:"registration"`
	}
	if err := c.post(ctx, "/v1/devices/check", map[string]any{"fingerprint": c.device.Hash}, &out); err != nil {
		return nil, err
	}
	return out.Registration, nil
}

// RegisterDevice records this device's fingerprint against userID.
func (c *Client) RegisterDevice(ctx context.Context, userID uuid.UUID) error {
	body := map[string]any{
		"fingerprint": c.device.Hash,
		"user_id":     userID,
	}
	return c.post(ctx, "/v1/devices/register", body, nil)
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("post %s unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if dest == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
