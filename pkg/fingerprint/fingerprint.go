package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	// CanvasUnavailable is recorded when the prober cannot produce render data.
	CanvasUnavailable = "no-canvas"
	// WebGLUnavailable is recorded when the prober cannot report a renderer string.
	WebGLUnavailable = "no-webgl"

	canvasTailLength = 50
	signalDelimiter  = "|"
)

// Signals are the raw environment readings a fingerprint is derived from.
// Missing numeric signals stay zero; missing strings stay empty. Both still
// contribute to the hash so the derivation never aborts.
type Signals struct {
	ScreenWidth         int
	ScreenHeight        int
	ColorDepth          int
	Timezone            string
	Language            string
	Platform            string
	HardwareConcurrency int
	DeviceMemory        int
	MaxTouchPoints      int
	UserAgent           string
}

// DeviceFingerprint identifies one browser/device combination. The hash is
// stable across restarts of the same environment; the classification fields
// are for display and audit only.
type DeviceFingerprint struct {
	Hash            string
	DeviceName      string
	OperatingSystem string
	BrowserName     string
	UserAgentRaw    string
	Signals         Signals
}

// Prober supplies environment readings. Every method may fail; the deriver
// substitutes sentinels instead of propagating errors.
type Prober interface {
	Collect(ctx context.Context) (Signals, error)
	CanvasData(ctx context.Context) (string, error)
	WebGLRenderer(ctx context.Context) (string, error)
}

// Deriver computes a fingerprint once per instance and serves the cached
// value afterwards. Hold one per process at the composition root; the
// fingerprint is treated as constant for the process lifetime even though a
// few signals could theoretically change underneath it.
type Deriver struct {
	prober Prober

	once   sync.Once
	cached *DeviceFingerprint
}

// NewDeriver returns a Deriver backed by the given prober, defaulting to the
// local host prober.
func NewDeriver(prober Prober) *Deriver {
	if prober == nil {
		prober = &HostProber{}
	}
	return &Deriver{prober: prober}
}

// Derive returns the device fingerprint, computing it on first call. It
// never fails: unavailable sub-signals degrade to sentinels.
func (d *Deriver) Derive(ctx context.Context) *DeviceFingerprint {
	d.once.Do(func() {
		d.cached = d.compute(ctx)
	})
	return d.cached
}

func (d *Deriver) compute(ctx context.Context) *DeviceFingerprint {
	signals, err := d.prober.Collect(ctx)
	if err != nil {
		signals = Signals{}
	}

	canvas, err := d.prober.CanvasData(ctx)
	if err != nil || canvas == "" {
		canvas = CanvasUnavailable
	} else if len(canvas) > canvasTailLength {
		canvas = canvas[len(canvas)-canvasTailLength:]
	}

	webgl, err := d.prober.WebGLRenderer(ctx)
	if err != nil || webgl == "" {
		webgl = WebGLUnavailable
	}

	parts := []string{
		fmt.Sprintf("%dx%dx%d", signals.ScreenWidth, signals.ScreenHeight, signals.ColorDepth),
		signals.Timezone,
		signals.Language,
		signals.Platform,
		fmt.Sprintf("%d", signals.HardwareConcurrency),
		fmt.Sprintf("%d", signals.DeviceMemory),
		fmt.Sprintf("%d", signals.MaxTouchPoints),
		canvas,
		webgl,
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, signalDelimiter)))

	osName, browser := ClassifyUserAgent(signals.UserAgent)

	return &DeviceFingerprint{
		Hash:            hex.EncodeToString(sum[:]),
		DeviceName:      DeviceName(signals.UserAgent),
		OperatingSystem: osName,
		BrowserName:     browser,
		UserAgentRaw:    signals.UserAgent,
		Signals:         signals,
	}
}

// HostProber reads fingerprint signals from the local host. Canvas and WebGL
// readings are not available outside a rendering context, so both report
// errors and end up as sentinels in the hash.
type HostProber struct{}

// Collect gathers host-level signals. It never fails; fields it cannot
// determine are left at their zero values.
func (HostProber) Collect(_ context.Context) (Signals, error) {
	hostname, _ := os.Hostname()

	return Signals{
		Timezone:            localTimezone(),
		Language:            localLanguage(),
		Platform:            runtime.GOOS + "/" + runtime.GOARCH,
		HardwareConcurrency: runtime.NumCPU(),
		UserAgent:           fmt.Sprintf("sessiond-agent (%s; %s; %s)", runtime.GOOS, runtime.GOARCH, hostname),
	}, nil
}

// CanvasData is unavailable on a plain host.
func (HostProber) CanvasData(_ context.Context) (string, error) {
	return "", fmt.Errorf("canvas rendering not available")
}

// WebGLRenderer is unavailable on a plain host.
func (HostProber) WebGLRenderer(_ context.Context) (string, error) {
	return "", fmt.Errorf("webgl renderer not available")
}

func localTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	name, _ := time.Now().Zone()
	return name
}

func localLanguage() string {
	for _, key := range []string{"LC_ALL", "LANG"} {
		if v := os.Getenv(key); v != "" {
			if i := strings.IndexByte(v, '.'); i > 0 {
				return v[:i]
			}
			return v
		}
	}
	return ""
}
