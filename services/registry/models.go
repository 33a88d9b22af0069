package registry

import (
	"time"

	"github.com/google/uuid"
)

// Session is the API view of one login instance's record. At most one
// session per user is meant to carry IsActive=true; the registry enforces
// this with an explicit displace-then-activate write, not a DB constraint.
type Session struct {
	ID                uuid.UUID      `json:"id"`
	UserID            uuid.UUID      `json:"user_id"`
	SessionToken      string         `json:"session_token"`
	DeviceFingerprint string         `json:"device_fingerprint"`
	DeviceName        string         `json:"device_name"`
	OperatingSystem   string         `json:"operating_system"`
	BrowserName       string         `json:"browser_name"`
	UserAgentRaw      string         `json:"user_agent_raw"`
	Signals           map[string]any `json:"signals"`
	IsActive          bool           `json:"is_active"`
	LastActiveAt      time.Time      `json:"last_active_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// DeviceRegistration maps a device fingerprint to the user that first
// registered from it. Used for one-shot anti-abuse checks, not liveness.
type DeviceRegistration struct {
	ID          uuid.UUID `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	UserID      uuid.UUID `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// RegisterInput carries everything needed to upsert the calling session's
// record with fresh device metadata.
type RegisterInput struct {
	UserID            uuid.UUID      `json:"user_id"`
	SessionToken      string         `json:"session_token"`
	DeviceFingerprint string         `json:"device_fingerprint"`
	DeviceName        string         `json:"device_name"`
	OperatingSystem   string         `json:"operating_system"`
	BrowserName       string         `json:"browser_name"`
	UserAgentRaw      string         `json:"user_agent_raw"`
	Signals           map[string]any `json:"signals"`
}
