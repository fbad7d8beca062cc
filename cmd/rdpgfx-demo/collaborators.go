package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/breeze-rmm/rdpgfx/internal/clipboard"
	"github.com/breeze-rmm/rdpgfx/internal/gfx"
	"github.com/breeze-rmm/rdpgfx/internal/mux"
)

// syntheticFrameSource produces a moving vertical gradient at the
// configured fps, standing in for a real Wayland screen-capture backend.
type syntheticFrameSource struct {
	width, height int
	interval      time.Duration
	pts           uint64
	phase         int
	closed        chan struct{}
}

func newSyntheticFrameSource(width, height, fps int) *syntheticFrameSource {
	if fps <= 0 {
		fps = 30
	}
	return &syntheticFrameSource{
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
		closed:   make(chan struct{}),
	}
}

func (s *syntheticFrameSource) Next() (gfx.RawFrame, error) {
	select {
	case <-s.closed:
		return gfx.RawFrame{}, gfx.ErrSourceLost
	case <-time.After(s.interval):
	}

	s.phase = (s.phase + 4) % 256
	stride := s.width * 4
	pixels := make([]byte, stride*s.height)
	for y := 0; y < s.height; y++ {
		shade := byte((y*255/maxInt(s.height, 1) + s.phase) % 256)
		for x := 0; x < s.width; x++ {
			off := y*stride + x*4
			pixels[off] = shade
			pixels[off+1] = shade / 2
			pixels[off+2] = 255 - shade
			pixels[off+3] = 0xff
		}
	}

	s.pts += uint64(s.interval / time.Microsecond)
	return gfx.RawFrame{
		PtsUs:       s.pts,
		Width:       s.width,
		Height:      s.height,
		StrideBytes: stride,
		Format:      gfx.PixelFormatBGRX,
		Pixels:      pixels,
	}, nil
}

func (s *syntheticFrameSource) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// idleInputSource never produces an event, a stand-in for a viewer that
// sends no input during the demo run.
type idleInputSource struct {
	closed chan struct{}
}

func newIdleInputSource() *idleInputSource {
	return &idleInputSource{closed: make(chan struct{})}
}

func (s *idleInputSource) Next() (mux.InputEvent, error) {
	<-s.closed
	return mux.InputEvent{}, io.EOF
}

func (s *idleInputSource) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

// stdoutTransport logs outbound traffic at debug level instead of writing
// to a real network socket, so the demo can run with no peer attached:
// every control reply and clipboard PDU, every 30th graphics frame, and no
// input acks.
type stdoutTransport struct {
	frameCount int
}

func newStdoutTransport() *stdoutTransport {
	return &stdoutTransport{}
}

func (t *stdoutTransport) SendGraphics(frame []byte) error {
	t.frameCount++
	if t.frameCount%30 == 0 {
		log.Debug("encoded frame batch", "count", t.frameCount, "lastFrameBytes", len(frame))
	}
	return nil
}

func (t *stdoutTransport) SendInputAck(seqNo uint64) error {
	return nil
}

func (t *stdoutTransport) SendControl(msg []byte) error {
	log.Debug("control reply", "payload", string(msg))
	return nil
}

func (t *stdoutTransport) SendClipboardPDU(pdu []byte) error {
	log.Debug("clipboard PDU", "payload", string(pdu))
	return nil
}

// memoryClipboard is an in-process OS clipboard collaborator; a real build
// would bind to Wayland's wl_data_device / X11 selections instead.
type memoryClipboard struct {
	content map[clipboard.Format]clipboard.Content
}

func newMemoryClipboard() *memoryClipboard {
	return &memoryClipboard{content: make(map[clipboard.Format]clipboard.Content)}
}

func (c *memoryClipboard) GetContent(f clipboard.Format) (clipboard.Content, error) {
	v, ok := c.content[f]
	if !ok {
		return clipboard.Content{}, fmt.Errorf("demo: no local content for format %d", f)
	}
	return v, nil
}

func (c *memoryClipboard) SetContent(v clipboard.Content) error {
	c.content[v.Format] = v
	b, _ := json.Marshal(struct {
		Format clipboard.Format `json:"format"`
		Text   string           `json:"text,omitempty"`
	}{Format: v.Format, Text: v.Text})
	log.Debug("local clipboard updated", "content", string(b))
	return nil
}
