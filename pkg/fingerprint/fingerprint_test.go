package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

type stubProber struct {
	signals   Signals
	signalErr error
	canvas    string
	canvasErr error
	webgl     string
	webglErr  error
}

func (s *stubProber) Collect(context.Context) (Signals, error) {
	return s.signals, s.signalErr
}

func (s *stubProber) CanvasData(context.Context) (string, error) {
	return s.canvas, s.canvasErr
}

func (s *stubProber) WebGLRenderer(context.Context) (string, error) {
	return s.webgl, s.webglErr
}

func fixedSignals() Signals {
	return Signals{
		ScreenWidth:         1920,
		ScreenHeight:        1080,
		ColorDepth:          24,
		Timezone:            "Europe/Berlin",
		Language:            "de-DE",
		Platform:            "linux/amd64",
		HardwareConcurrency: 8,
		DeviceMemory:        16,
		MaxTouchPoints:      0,
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	}
}

func TestDeriveDeterministic(t *testing.T) {
	prober := &stubProber{
		signals: fixedSignals(),
		canvas:  "data:image/png;base64,AAAABBBBCCCCDDDD",
		webgl:   "ANGLE (NVIDIA GeForce RTX 3060)",
	}

	first := NewDeriver(prober).Derive(context.Background())
	second := NewDeriver(prober).Derive(context.Background())

	if first.Hash == "" {
		t.Fatal("Derive() produced empty hash")
	}
	if first.Hash != second.Hash {
		t.Fatalf("Derive() not deterministic: %s vs %s", first.Hash, second.Hash)
	}
}

func TestDeriveMemoized(t *testing.T) {
	deriver := NewDeriver(&stubProber{signals: fixedSignals()})

	first := deriver.Derive(context.Background())
	second := deriver.Derive(context.Background())

	if first != second {
		t.Fatal("Derive() recomputed instead of returning the cached value")
	}
}

func TestDeriveFallbackSentinels(t *testing.T) {
	prober := &stubProber{
		signals:   fixedSignals(),
		canvasErr: errors.New("canvas exploded"),
		webglErr:  errors.New("webgl exploded"),
	}

	fp := NewDeriver(prober).Derive(context.Background())
	if fp == nil || fp.Hash == "" {
		t.Fatal("Derive() failed instead of degrading to sentinels")
	}

	// Reconstruct the canonical join with both sentinels to prove they
	// entered the digest.
	s := fixedSignals()
	joined := strings.Join([]string{
		"1920x1080x24", s.Timezone, s.Language, s.Platform,
		"8", "16", "0", CanvasUnavailable, WebGLUnavailable,
	}, "|")
	sum := sha256.Sum256([]byte(joined))

	if fp.Hash != hex.EncodeToString(sum[:]) {
		t.Fatalf("hash does not include sentinel signals: got %s", fp.Hash)
	}
}

func TestDeriveCanvasTail(t *testing.T) {
	tail := strings.Repeat("z", 50)

	a := NewDeriver(&stubProber{signals: fixedSignals(), canvas: "prefix-one-" + tail}).Derive(context.Background())
	b := NewDeriver(&stubProber{signals: fixedSignals(), canvas: "another-prefix-" + tail}).Derive(context.Background())

	if a.Hash != b.Hash {
		t.Fatal("canvas signal should only depend on the trailing 50 characters")
	}
}

func TestDeriveSignalCollectFailure(t *testing.T) {
	prober := &stubProber{signalErr: errors.New("no environment")}

	fp := NewDeriver(prober).Derive(context.Background())
	if fp == nil || fp.Hash == "" {
		t.Fatal("Derive() must not fail when signal collection fails")
	}
	if fp.OperatingSystem != Unknown || fp.BrowserName != Unknown {
		t.Fatalf("empty user agent should classify as %q, got %q/%q",
			Unknown, fp.OperatingSystem, fp.BrowserName)
	}
}

func TestHostProberNeverFails(t *testing.T) {
	fp := NewDeriver(&HostProber{}).Derive(context.Background())
	if fp == nil || fp.Hash == "" {
		t.Fatal("host-backed derivation failed")
	}
	if fp.Signals.HardwareConcurrency <= 0 {
		t.Fatal("expected at least one logical core")
	}
}
