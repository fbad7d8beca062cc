package gfx

import (
	"fmt"
	"sync"
	"time"
)

// AdaptiveConfig configures an AdaptiveBitrate controller bound to one
// Avc444Encoder (spec.md §4.4, supplemented feature).
type AdaptiveConfig struct {
	Encoder        *Avc444Encoder
	InitialBitrate int
	MinBitrate     int
	MaxBitrate     int
	Cooldown       time.Duration
}

// AdaptiveBitrate runs AIMD (additive increase, multiplicative decrease)
// over EWMA-smoothed RTCP RTT/loss samples, mirroring the teacher's
// adaptive.go but narrowed to bitrate only: AVC444's frame-mode/aux policy
// is orthogonal to this loop and is governed by Avc444Config instead of a
// quality preset ladder.
type AdaptiveBitrate struct {
	mu            sync.Mutex
	encoder       *Avc444Encoder
	minBitrate    int
	maxBitrate    int
	cooldown      time.Duration
	lastAdjust    time.Time
	targetBitrate int

	smoothedLoss float64
	smoothedRTT  time.Duration
	samplesCount int
	stableCount  int
}

func NewAdaptiveBitrate(cfg AdaptiveConfig) (*AdaptiveBitrate, error) {
	if cfg.Encoder == nil {
		return nil, fmt.Errorf("gfx: adaptive bitrate requires an encoder")
	}
	if cfg.MinBitrate <= 0 || cfg.MaxBitrate <= 0 || cfg.MinBitrate > cfg.MaxBitrate {
		return nil, fmt.Errorf("gfx: invalid bitrate bounds")
	}
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = 500 * time.Millisecond
	}
	initial := cfg.InitialBitrate
	if initial <= 0 {
		initial = cfg.MinBitrate
	}
	initial = clampInt(initial, cfg.MinBitrate, cfg.MaxBitrate)

	return &AdaptiveBitrate{
		encoder:       cfg.Encoder,
		minBitrate:    cfg.MinBitrate,
		maxBitrate:    cfg.MaxBitrate,
		cooldown:      cooldown,
		targetBitrate: initial,
	}, nil
}

// SetMaxBitrate updates the ceiling the controller ramps up to, clamping
// the current target down immediately if it now exceeds the new ceiling.
func (a *AdaptiveBitrate) SetMaxBitrate(max int) {
	if a == nil || max <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maxBitrate = max
	if a.targetBitrate > max {
		a.targetBitrate = max
		if a.encoder != nil {
			_ = a.encoder.SetBitrate(max)
		}
	}
}

// Update feeds one RTCP-derived RTT/loss sample and adjusts bitrate.
func (a *AdaptiveBitrate) Update(rtt time.Duration, packetLoss float64) {
	if a == nil {
		return
	}
	packetLoss = float64(clampInt(int(packetLoss*1000), 0, 1000)) / 1000

	a.mu.Lock()

	now := time.Now()
	if !a.lastAdjust.IsZero() && now.Sub(a.lastAdjust) < a.cooldown {
		a.updateEWMA(rtt, packetLoss)
		a.mu.Unlock()
		return
	}
	a.updateEWMA(rtt, packetLoss)

	if a.samplesCount < 3 {
		a.mu.Unlock()
		return
	}

	loss := a.smoothedLoss
	smoothRTT := a.smoothedRTT

	degrade := loss >= 0.05 || (smoothRTT >= 300*time.Millisecond && loss >= 0.02)
	upgrade := loss <= 0.01

	if degrade {
		a.stableCount = 0
	} else if upgrade {
		a.stableCount++
	} else if a.stableCount > 0 {
		a.stableCount--
	}

	const stableRequired = 2
	newBitrate := a.targetBitrate

	if degrade {
		newBitrate = int(float64(newBitrate) * 0.70)
		newBitrate = clampInt(newBitrate, a.minBitrate, a.maxBitrate)
	} else if a.stableCount >= stableRequired && a.targetBitrate < a.maxBitrate {
		step := a.maxBitrate / 20
		if step < 50 {
			step = 50
		}
		newBitrate = clampInt(newBitrate+step, a.minBitrate, a.maxBitrate)
		a.stableCount = 0
	}

	if newBitrate == a.targetBitrate {
		a.mu.Unlock()
		return
	}

	a.targetBitrate = newBitrate
	a.lastAdjust = now
	encoder := a.encoder
	a.mu.Unlock()

	if encoder != nil {
		_ = encoder.SetBitrate(newBitrate)
	}
}

const ewmaAlpha = 0.3

func (a *AdaptiveBitrate) updateEWMA(rtt time.Duration, loss float64) {
	a.samplesCount++
	if a.samplesCount == 1 {
		a.smoothedLoss = loss
		a.smoothedRTT = rtt
		return
	}
	a.smoothedLoss = ewmaAlpha*loss + (1-ewmaAlpha)*a.smoothedLoss
	a.smoothedRTT = time.Duration(ewmaAlpha*float64(rtt) + (1-ewmaAlpha)*float64(a.smoothedRTT))
}

// TargetBitrate returns the controller's current bitrate target in kbps.
func (a *AdaptiveBitrate) TargetBitrate() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.targetBitrate
}
