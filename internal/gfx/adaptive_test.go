package gfx

import (
	"testing"
	"time"
)

func newTestAdaptive(t *testing.T, initial int) *AdaptiveBitrate {
	t.Helper()
	enc := newTestEncoder(t, false)
	ab, err := NewAdaptiveBitrate(AdaptiveConfig{
		Encoder:        enc,
		InitialBitrate: initial,
		MinBitrate:     200,
		MaxBitrate:     4000,
	})
	if err != nil {
		t.Fatalf("NewAdaptiveBitrate: %v", err)
	}
	return ab
}

func TestAdaptiveBitrateDegradesUnderSustainedLoss(t *testing.T) {
	ab := newTestAdaptive(t, 2000)
	for i := 0; i < 3; i++ {
		ab.Update(50*time.Millisecond, 0.10)
	}
	if got := ab.TargetBitrate(); got >= 2000 {
		t.Fatalf("expected bitrate to degrade below 2000 under sustained 10%% loss, got %d", got)
	}
}

func TestAdaptiveBitrateUpgradesAfterStablePeriod(t *testing.T) {
	ab := newTestAdaptive(t, 1000)
	for i := 0; i < 4; i++ {
		ab.Update(10*time.Millisecond, 0.0)
	}
	if got := ab.TargetBitrate(); got <= 1000 {
		t.Fatalf("expected bitrate to ramp up after a stable loss-free period, got %d", got)
	}
}

func TestAdaptiveBitrateNeverExceedsMaxOrDropsBelowMin(t *testing.T) {
	ab := newTestAdaptive(t, 3900)
	for i := 0; i < 50; i++ {
		ab.Update(5*time.Millisecond, 0.0)
	}
	if got := ab.TargetBitrate(); got > 4000 {
		t.Fatalf("expected bitrate never to exceed the configured max of 4000, got %d", got)
	}

	ab2 := newTestAdaptive(t, 300)
	for i := 0; i < 50; i++ {
		ab2.Update(500*time.Millisecond, 0.5)
	}
	if got := ab2.TargetBitrate(); got < 200 {
		t.Fatalf("expected bitrate never to drop below the configured min of 200, got %d", got)
	}
}

func TestAdaptiveBitrateSetMaxBitrateClampsCurrentTarget(t *testing.T) {
	ab := newTestAdaptive(t, 3900)
	ab.SetMaxBitrate(1000)
	if got := ab.TargetBitrate(); got != 1000 {
		t.Fatalf("expected lowering the ceiling below the current target to clamp it, got %d", got)
	}
}

func TestAdaptiveBitrateRejectsInvertedBounds(t *testing.T) {
	enc := newTestEncoder(t, false)
	_, err := NewAdaptiveBitrate(AdaptiveConfig{Encoder: enc, MinBitrate: 5000, MaxBitrate: 1000})
	if err == nil {
		t.Fatal("expected min > max to be rejected")
	}
}
