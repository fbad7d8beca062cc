package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/breeze-rmm/rdpgfx/internal/clipboard"
	"github.com/breeze-rmm/rdpgfx/internal/config"
	"github.com/breeze-rmm/rdpgfx/internal/gfx"
	"github.com/breeze-rmm/rdpgfx/internal/mux"
)

// fakeFrameSource yields a handful of solid frames, then blocks until
// closed, mirroring a capture backend that idles between screen changes.
type fakeFrameSource struct {
	mu     sync.Mutex
	closed bool
	frames chan gfx.RawFrame
}

func newFakeFrameSource() *fakeFrameSource {
	return &fakeFrameSource{frames: make(chan gfx.RawFrame, 4)}
}

func (f *fakeFrameSource) push(w, h int, r, g, b byte) {
	pixels := make([]byte, w*h*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i] = b
		pixels[i+1] = g
		pixels[i+2] = r
		pixels[i+3] = 0xff
	}
	f.frames <- gfx.RawFrame{Width: w, Height: h, StrideBytes: w * 4, Format: gfx.PixelFormatBGRX, Pixels: pixels}
}

func (f *fakeFrameSource) Next() (gfx.RawFrame, error) {
	frame, ok := <-f.frames
	if !ok {
		return gfx.RawFrame{}, gfx.ErrSourceLost
	}
	return frame, nil
}

func (f *fakeFrameSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.frames)
	}
	return nil
}

// fakeInputSource blocks on a channel until Close is called.
type fakeInputSource struct {
	done chan struct{}
}

func newFakeInputSource() *fakeInputSource {
	return &fakeInputSource{done: make(chan struct{})}
}

func (f *fakeInputSource) Next() (mux.InputEvent, error) {
	<-f.done
	return mux.InputEvent{}, io.EOF
}

func (f *fakeInputSource) Close() error {
	select {
	case <-f.done:
	default:
		close(f.done)
	}
	return nil
}

// fakeTransport records everything sent to it.
type fakeTransport struct {
	mu        sync.Mutex
	graphics  [][]byte
	inputAcks []uint64
	control   [][]byte
	clipboard [][]byte
}

func (t *fakeTransport) SendGraphics(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.graphics = append(t.graphics, frame)
	return nil
}

func (t *fakeTransport) SendInputAck(seqNo uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputAcks = append(t.inputAcks, seqNo)
	return nil
}

func (t *fakeTransport) SendControl(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.control = append(t.control, msg)
	return nil
}

func (t *fakeTransport) SendClipboardPDU(pdu []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clipboard = append(t.clipboard, pdu)
	return nil
}

func (t *fakeTransport) graphicsCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.graphics)
}

// fakeOSClipboard is a minimal in-memory OS clipboard collaborator.
type fakeOSClipboard struct {
	mu      sync.Mutex
	content map[clipboard.Format]clipboard.Content
}

func newFakeOSClipboard() *fakeOSClipboard {
	return &fakeOSClipboard{content: make(map[clipboard.Format]clipboard.Content)}
}

func (c *fakeOSClipboard) GetContent(f clipboard.Format) (clipboard.Content, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.content[f]
	if !ok {
		return clipboard.Content{}, errors.New("fake: no content for format")
	}
	return v, nil
}

func (c *fakeOSClipboard) SetContent(v clipboard.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content[v.Format] = v
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.TargetFPS = 30
	return cfg
}

func newTestEngine(t *testing.T, fs *fakeFrameSource, is *fakeInputSource, tr *fakeTransport) *Engine {
	t.Helper()
	e, err := New(Params{
		Config:      testConfig(),
		Width:       32,
		Height:      32,
		FrameSource: fs,
		InputSource: is,
		Transport:   tr,
		Clipboard:   ClipboardCollaborators{OS: newFakeOSClipboard()},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Params{}); err == nil {
		t.Fatalf("expected error with no config")
	}
	if _, err := New(Params{Config: testConfig()}); err == nil {
		t.Fatalf("expected error with no frame/input source or transport")
	}
}

func TestEngineStartStopLifecycle(t *testing.T) {
	fs := newFakeFrameSource()
	is := newFakeInputSource()
	tr := &fakeTransport{}
	e := newTestEngine(t, fs, is, tr)

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(ctx); err == nil {
		t.Fatalf("expected error starting an already-started engine")
	}

	fs.push(32, 32, 10, 20, 30)

	deadline := time.Now().Add(2 * time.Second)
	for tr.graphicsCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if tr.graphicsCount() == 0 {
		t.Fatalf("expected at least one graphics frame to reach the transport")
	}

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatalf("Stop did not return within the quiescence deadline")
	}
}

func TestEngineMetricsSnapshot(t *testing.T) {
	fs := newFakeFrameSource()
	is := newFakeInputSource()
	tr := &fakeTransport{}
	e := newTestEngine(t, fs, is, tr)

	snap := e.Metrics()
	if snap.FramesCaptured != 0 {
		t.Fatalf("expected zero captured frames before Start, got %d", snap.FramesCaptured)
	}
}

func TestEngineClipboardStateStartsIdle(t *testing.T) {
	fs := newFakeFrameSource()
	is := newFakeInputSource()
	tr := &fakeTransport{}
	e := newTestEngine(t, fs, is, tr)

	if e.ClipboardState() != clipboard.Idle {
		t.Fatalf("expected a fresh engine's clipboard owner state to be Idle, got %v", e.ClipboardState())
	}
}
