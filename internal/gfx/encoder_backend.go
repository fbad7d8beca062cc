package gfx

import (
	"fmt"
	"sync"
)

// FrameMode selects the AVC444 frame-type policy (spec.md §4.3).
type FrameMode string

const (
	ModeAllIntra      FrameMode = "all_intra"
	ModeMainPredicted FrameMode = "main_predicted"
)

func (m FrameMode) valid() bool {
	switch m {
	case ModeAllIntra, ModeMainPredicted:
		return true
	default:
		return false
	}
}

// h264Backend is the narrow surface the AVC444 encoder needs from an
// underlying H.264 implementation: encode one YUV420 view, optionally force
// the next output to be an IDR, and report the NAL units produced. Modeled
// on the teacher's encoderBackend interface (remote/desktop/encoder.go),
// narrowed to what a single-encoder AVC444 dual-view scheme actually needs.
type h264Backend interface {
	// EncodeView encodes one 4:2:0 logical view (either the main Y+UV view
	// or the aux chroma-as-luma view) and returns length-prefixed AVC NAL
	// units. forceKeyframe requests (not guarantees unless the backend
	// reports it did) an IDR for this call.
	EncodeView(yuv YuvFrame, forceKeyframe bool) (nalus []byte, isIDR bool, err error)
	SetBitrate(bitrateKbps int) error
	SetFramerate(fps int) error
	Close() error
	Name() string
}

// backendFactory constructs a backend bound to one encoder session. Mirrors
// the teacher's registerHardwareFactory/backendFactory pattern so a future
// hardware path (VideoToolbox, MFT, NVENC) can register alongside the
// default software path without touching AVC444 orchestration logic.
type backendFactory func(width, height, bitrateKbps, fps int) (h264Backend, error)

var (
	backendFactoriesMu sync.Mutex
	backendFactories   = []backendFactory{newOpenH264Backend, newSoftwareBackend}
)

// registerBackendFactory adds a candidate backend, tried in registration
// order before falling back to the always-available software passthrough.
func registerBackendFactory(f backendFactory) {
	backendFactoriesMu.Lock()
	defer backendFactoriesMu.Unlock()
	last := len(backendFactories) - 1
	fallback := backendFactories[last]
	backendFactories = append(backendFactories[:last:last], f, fallback)
}

func newH264Backend(width, height, bitrateKbps, fps int) (h264Backend, error) {
	backendFactoriesMu.Lock()
	factories := append([]backendFactory(nil), backendFactories...)
	backendFactoriesMu.Unlock()

	var lastErr error
	for _, factory := range factories {
		backend, err := factory(width, height, bitrateKbps, fps)
		if err == nil && backend != nil {
			return backend, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("gfx: no h264 backend available")
	}
	return nil, fmt.Errorf("%w: %v", ErrEncoderInit, lastErr)
}
