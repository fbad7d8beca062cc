package gfx

import (
	"sync"
	"time"
)

// StreamMetrics tracks real-time performance counters for one encoder
// session, adapted from the teacher's stream_metrics.go to the AVC444
// dual-stream shape (main/aux byte counts instead of a single frame size).
type StreamMetrics struct {
	mu sync.RWMutex

	FramesCaptured uint64
	FramesEncoded  uint64
	FramesDropped  uint64
	AuxOmitted     uint64
	Keyframes      uint64

	LastConvertTime time.Duration
	LastEncodeTime  time.Duration
	LastMainBytes   int
	LastAuxBytes    int

	TotalBytesSent uint64
	CurrentBitrate int
	startTime      time.Time
}

func NewStreamMetrics() *StreamMetrics {
	return &StreamMetrics{startTime: time.Now()}
}

func (m *StreamMetrics) RecordCapture() {
	m.mu.Lock()
	m.FramesCaptured++
	m.mu.Unlock()
}

func (m *StreamMetrics) RecordDrop() {
	m.mu.Lock()
	m.FramesDropped++
	m.mu.Unlock()
}

func (m *StreamMetrics) RecordConvert(d time.Duration) {
	m.mu.Lock()
	m.LastConvertTime = d
	m.mu.Unlock()
}

// RecordEncode records one encoded Avc444Frame's cost and shape.
func (m *StreamMetrics) RecordEncode(d time.Duration, frame Avc444Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FramesEncoded++
	m.LastEncodeTime = d
	m.LastMainBytes = len(frame.Main.NALUs)
	total := uint64(m.LastMainBytes)
	if frame.Aux != nil {
		m.LastAuxBytes = len(frame.Aux.NALUs)
		total += uint64(m.LastAuxBytes)
	} else {
		m.LastAuxBytes = 0
		m.AuxOmitted++
	}
	if frame.Main.Kind == UnitKeyframeIDR {
		m.Keyframes++
	}
	m.TotalBytesSent += total
}

func (m *StreamMetrics) SetBitrate(kbps int) {
	m.mu.Lock()
	m.CurrentBitrate = kbps
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy for logging or a control-channel
// stats reply.
type MetricsSnapshot struct {
	FramesCaptured uint64
	FramesEncoded  uint64
	FramesDropped  uint64
	AuxOmitted     uint64
	Keyframes      uint64
	ConvertMs      float64
	EncodeMs       float64
	LastMainBytes  int
	LastAuxBytes   int
	BandwidthKBps  float64
	CurrentBitrate int
	Uptime         time.Duration
}

func (m *StreamMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uptime := time.Since(m.startTime)
	bw := 0.0
	if uptime.Seconds() > 0 {
		bw = float64(m.TotalBytesSent) / uptime.Seconds() / 1024.0
	}

	return MetricsSnapshot{
		FramesCaptured: m.FramesCaptured,
		FramesEncoded:  m.FramesEncoded,
		FramesDropped:  m.FramesDropped,
		AuxOmitted:     m.AuxOmitted,
		Keyframes:      m.Keyframes,
		ConvertMs:      float64(m.LastConvertTime.Microseconds()) / 1000.0,
		EncodeMs:       float64(m.LastEncodeTime.Microseconds()) / 1000.0,
		LastMainBytes:  m.LastMainBytes,
		LastAuxBytes:   m.LastAuxBytes,
		BandwidthKBps:  bw,
		CurrentBitrate: m.CurrentBitrate,
		Uptime:         uptime,
	}
}
