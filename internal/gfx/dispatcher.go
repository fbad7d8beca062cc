package gfx

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
)

var dispatchLog = logging.L("gfx.dispatcher")

// DispatcherConfig tunes the rate-limited frame dispatcher (spec.md §4.4).
type DispatcherConfig struct {
	// TargetFPS bounds the encode rate; it is the rate.Limiter's steady
	// state, not a hard per-frame deadline.
	TargetFPS int
	// BurstFrames allows short bursts above TargetFPS (e.g. after a period
	// of suppressed empty frames) before the limiter starts blocking.
	BurstFrames int
}

// Dispatcher sits between the frame source/encoder and the graphics queue:
// it enforces the target frame rate with a token bucket and suppresses
// frames whose content hasn't changed, so a static screen doesn't spend
// encoder time or bandwidth repeating identical output (spec.md §4.1, §4.4).
type Dispatcher struct {
	limiter *rate.Limiter
	encoder *Avc444Encoder
	metrics *StreamMetrics

	haveLastFP bool
	lastFP     FrameFingerprint
}

// NewDispatcher builds a dispatcher driving encoder at the given rate.
func NewDispatcher(cfg DispatcherConfig, encoder *Avc444Encoder, metrics *StreamMetrics) *Dispatcher {
	fps := cfg.TargetFPS
	if fps <= 0 {
		fps = 30
	}
	burst := cfg.BurstFrames
	if burst <= 0 {
		burst = 1
	}
	return &Dispatcher{
		limiter: rate.NewLimiter(rate.Limit(fps), burst),
		encoder: encoder,
		metrics: metrics,
	}
}

// Submit applies rate limiting and empty-frame suppression to raw, encoding
// and returning an Avc444Frame only when both checks pass. A nil frame with
// a nil error means the frame was intentionally dropped (rate bucket empty
// or unchanged content), not a failure.
func (d *Dispatcher) Submit(ctx context.Context, raw RawFrame, damage []Rect) (*Avc444Frame, error) {
	if !d.limiter.Allow() {
		if d.metrics != nil {
			d.metrics.RecordDrop()
		}
		dispatchLog.Debug("frame dropped, rate bucket empty", "ptsUs", raw.PtsUs)
		return nil, nil
	}

	// Empty-frame suppression only applies when the source supplied no
	// damage of its own: an explicit damage set means the source already
	// knows something changed, so the sampled fingerprint (which can miss
	// small dirty regions) must not override it (spec.md §4.4).
	fp := FingerprintRaw(raw)
	if len(damage) == 0 && d.haveLastFP && fp == d.lastFP {
		if d.metrics != nil {
			d.metrics.RecordDrop()
		}
		dispatchLog.Debug("frame dropped, fingerprint unchanged", "ptsUs", raw.PtsUs)
		return nil, nil
	}
	d.lastFP = fp
	d.haveLastFP = true

	start := time.Now()
	frame, err := d.encoder.EncodeFrame(raw, damage)
	if err != nil {
		return nil, err
	}
	if d.metrics != nil {
		d.metrics.RecordEncode(time.Since(start), frame)
	}
	return &frame, nil
}

// Wait blocks until the limiter has a token available or ctx is done,
// for callers that prefer to pace submission rather than drop frames.
func (d *Dispatcher) Wait(ctx context.Context) error {
	return d.limiter.Wait(ctx)
}

// SetRate reconfigures the limiter's target FPS, used when the viewer
// negotiates a new frame rate mid-session.
func (d *Dispatcher) SetRate(fps int) {
	if fps <= 0 {
		return
	}
	d.limiter.SetLimit(rate.Limit(fps))
}
