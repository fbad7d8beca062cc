package gfx

import (
	"context"
	"testing"
)

func TestDispatcherDropsUnchangedFrame(t *testing.T) {
	enc := newTestEncoder(t, false)
	metrics := NewStreamMetrics()
	d := NewDispatcher(DispatcherConfig{TargetFPS: 1000, BurstFrames: 1000}, enc, metrics)

	raw := solidFrame(32, 32, 5, 5, 5)
	frame1, err := d.Submit(context.Background(), raw, nil)
	if err != nil {
		t.Fatalf("Submit (1st): %v", err)
	}
	if frame1 == nil {
		t.Fatal("expected the first frame to be encoded, not dropped")
	}

	frame2, err := d.Submit(context.Background(), raw, nil)
	if err != nil {
		t.Fatalf("Submit (2nd): %v", err)
	}
	if frame2 != nil {
		t.Fatal("expected the second identical frame to be dropped as unchanged")
	}
	if metrics.Snapshot().FramesDropped != 1 {
		t.Fatalf("expected exactly one drop recorded, got %d", metrics.Snapshot().FramesDropped)
	}
}

func TestDispatcherEncodesChangedFrame(t *testing.T) {
	enc := newTestEncoder(t, false)
	d := NewDispatcher(DispatcherConfig{TargetFPS: 1000, BurstFrames: 1000}, enc, nil)

	raw1 := solidFrame(32, 32, 1, 1, 1)
	raw2 := solidFrame(32, 32, 200, 200, 200)

	if _, err := d.Submit(context.Background(), raw1, nil); err != nil {
		t.Fatalf("Submit (1st): %v", err)
	}
	frame2, err := d.Submit(context.Background(), raw2, nil)
	if err != nil {
		t.Fatalf("Submit (2nd): %v", err)
	}
	if frame2 == nil {
		t.Fatal("expected a changed frame to be encoded, not dropped")
	}
}

func TestDispatcherEncodesUnchangedFrameWithDamage(t *testing.T) {
	enc := newTestEncoder(t, false)
	metrics := NewStreamMetrics()
	d := NewDispatcher(DispatcherConfig{TargetFPS: 1000, BurstFrames: 1000}, enc, metrics)

	raw := solidFrame(32, 32, 5, 5, 5)
	if _, err := d.Submit(context.Background(), raw, nil); err != nil {
		t.Fatalf("Submit (1st): %v", err)
	}

	damage := []Rect{{X: 0, Y: 0, W: 4, H: 4}}
	frame, err := d.Submit(context.Background(), raw, damage)
	if err != nil {
		t.Fatalf("Submit (2nd): %v", err)
	}
	if frame == nil {
		t.Fatal("expected a frame with explicit damage to be encoded even if its sampled fingerprint is unchanged")
	}
}

func TestDispatcherRateLimitsBurst(t *testing.T) {
	enc := newTestEncoder(t, false)
	metrics := NewStreamMetrics()
	d := NewDispatcher(DispatcherConfig{TargetFPS: 1, BurstFrames: 1}, enc, metrics)

	dropped := 0
	for i := 0; i < 5; i++ {
		raw := solidFrame(32, 32, byte(i), byte(i), byte(i))
		frame, err := d.Submit(context.Background(), raw, nil)
		if err != nil {
			t.Fatalf("Submit #%d: %v", i, err)
		}
		if frame == nil {
			dropped++
		}
	}
	if dropped == 0 {
		t.Fatal("expected a tight burst against a 1fps limiter to drop at least one frame")
	}
}
