package gfx

import (
	"sync"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
)

var sourceLog = logging.L("gfx.source")

// FrameSource is the external collaborator that yields a live sequence of
// captured frames (spec.md §6 "Inbound"). Implementations live outside this
// core (a Wayland screen-capture backend); this core only consumes them.
type FrameSource interface {
	// Next blocks until a frame is available or the source is closed.
	// Returns ErrSourceLost terminally once the source cannot recover.
	Next() (RawFrame, error)
	Close() error
}

// sourceBufferDepth is the adapter's own backpressure buffer: a source that
// outpaces the pipeline has its oldest unconsumed frame dropped rather than
// being blocked (spec.md §4.1).
const sourceBufferDepth = 2

// Adapter wraps a raw FrameSource: it validates each frame's stride and
// pixel format, keeps pts strictly increasing, and applies a bounded
// drop-oldest buffer so a fast producer never blocks on a slow pipeline.
type Adapter struct {
	src FrameSource

	mu       sync.Mutex
	buf      []RawFrame
	lastPts  uint64
	havePts  bool
	dropped  uint64
	fatalErr error
}

// NewAdapter wraps src with stride/format validation and a drop-oldest
// buffer of depth sourceBufferDepth.
func NewAdapter(src FrameSource) *Adapter {
	return &Adapter{src: src, buf: make([]RawFrame, 0, sourceBufferDepth)}
}

// Push is called by the producer side (a goroutine pumping src.Next()) to
// hand a freshly captured frame to the adapter's buffer.
func (a *Adapter) Push(f RawFrame) error {
	if err := validateFrame(f); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.havePts && f.PtsUs <= a.lastPts {
		// Source produced a non-monotonic timestamp; this core requires
		// strictly increasing pts, so bump it forward rather than reject
		// the frame outright (the capture backend owns real time, we only
		// guarantee downstream ordering).
		f.PtsUs = a.lastPts + 1
	}
	a.lastPts = f.PtsUs
	a.havePts = true

	if len(a.buf) >= sourceBufferDepth {
		a.buf = a.buf[1:]
		a.dropped++
		sourceLog.Debug("frame source buffer full, dropped oldest", "totalDropped", a.dropped)
	}
	a.buf = append(a.buf, f)
	return nil
}

// PushFatal records a terminal source failure observed by the producer side.
func (a *Adapter) PushFatal(err error) {
	a.mu.Lock()
	a.fatalErr = err
	a.mu.Unlock()
}

// Next returns the oldest buffered frame, or false if none is ready yet.
func (a *Adapter) Next() (RawFrame, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fatalErr != nil {
		return RawFrame{}, false, a.fatalErr
	}
	if len(a.buf) == 0 {
		return RawFrame{}, false, nil
	}
	f := a.buf[0]
	a.buf = a.buf[1:]
	return f, true, nil
}

// Dropped returns the number of frames discarded by the backpressure buffer.
func (a *Adapter) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close releases the underlying source.
func (a *Adapter) Close() error {
	if a.src == nil {
		return nil
	}
	return a.src.Close()
}

func validateFrame(f RawFrame) error {
	if f.Width <= 0 || f.Height <= 0 {
		return ErrInvalidStride
	}
	minStride := f.Width * 4
	if f.StrideBytes < minStride {
		return ErrInvalidStride
	}
	if len(f.Pixels) < f.StrideBytes*f.Height {
		return ErrInvalidStride
	}
	switch f.Format {
	case PixelFormatBGRA, PixelFormatBGRX, PixelFormatXRGB:
	default:
		return ErrUnsupportedPixelFormat
	}
	return nil
}
