package mux

import (
	"sync"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
)

var muxLog = logging.L("mux")

// Config sizes the four queues (spec.md §6).
type Config struct {
	InputDepth     int
	ControlDepth   int
	ClipboardDepth int
	GraphicsDepth  int
}

// Multiplexer holds the four bounded, independently-policied queues and
// drains them in strict priority order: all pending input first, then a
// capped slice of control, then clipboard, then at most one graphics item,
// so interactive input is never starved by a busy graphics stream
// (spec.md §4.5, §8 "starvation bound").
type Multiplexer struct {
	mu sync.Mutex

	input     []InputEvent
	inputCap  int
	inputSeq  uint64
	dropInput uint64

	control     []ControlMessage
	controlCap  int
	dropControl uint64

	clipboard     []ClipboardMessage
	clipboardCap  int
	dropClipboard uint64

	graphics     []GraphicsItem
	graphicsCap  int
	dropGraphics uint64
}

func New(cfg Config) *Multiplexer {
	return &Multiplexer{
		inputCap:     clampCap(cfg.InputDepth, 256),
		controlCap:   clampCap(cfg.ControlDepth, 64),
		clipboardCap: clampCap(cfg.ClipboardDepth, 16),
		graphicsCap:  clampCap(cfg.GraphicsDepth, 4),
	}
}

func clampCap(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

// PushInput enqueues an input event. Overflow policy: drop-oldest. PushInput
// never blocks: once the queue is full, the oldest queued event is
// discarded to make room, preserving the most recent user intent.
func (m *Multiplexer) PushInput(e InputEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.SeqNo = m.inputSeq
	m.inputSeq++

	if len(m.input) >= m.inputCap {
		m.input = m.input[1:]
		m.dropInput++
		muxLog.Warn("input queue full, dropped oldest", "totalDropped", m.dropInput)
	}
	m.input = append(m.input, e)
}

// PushControl enqueues a control message. Overflow policy: drop-newest-
// duplicate — if the tail of the queue already holds the same message
// type, the new one replaces it rather than growing the queue with a
// stale intermediate value (e.g. a slider that fired five "set_bitrate"
// events in one tick only needs the last one kept, not all five).
func (m *Multiplexer) PushControl(c ControlMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.control); n > 0 && m.control[n-1].Type == c.Type {
		m.control[n-1] = c
		return
	}
	if len(m.control) >= m.controlCap {
		m.control = m.control[1:]
		m.dropControl++
		muxLog.Warn("control queue full, dropped oldest", "totalDropped", m.dropControl)
	}
	m.control = append(m.control, c)
}

// PushClipboard enqueues a clipboard message. Overflow policy: coalesce/
// replace-head for messages of the same Kind (only the latest format
// advertisement or request matters; a superseded one carries no useful
// information once a newer one of the same kind exists) and drop-oldest
// on overflow, with one exception: an in-progress file-chunk message
// (request or response) is never coalesced against another of the same
// Kind (each carries a distinct stream/offset) and is never the one
// evicted on overflow (spec.md §4.5 "never drop an in-progress file
// chunk").
func (m *Multiplexer) PushClipboard(c ClipboardMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !c.isFileChunkKind() {
		for i, existing := range m.clipboard {
			if existing.Kind == c.Kind {
				m.clipboard[i] = c
				return
			}
		}
	}

	if len(m.clipboard) >= m.clipboardCap {
		if i, ok := m.oldestDroppableClipboardIndex(); ok {
			m.clipboard = append(m.clipboard[:i], m.clipboard[i+1:]...)
			m.dropClipboard++
			muxLog.Warn("clipboard queue full, dropped oldest", "totalDropped", m.dropClipboard)
		} else {
			muxLog.Warn("clipboard queue full of in-progress file chunks, growing past capacity", "depth", len(m.clipboard)+1)
		}
	}
	m.clipboard = append(m.clipboard, c)
}

// oldestDroppableClipboardIndex finds the oldest queued clipboard message
// that is safe to evict, skipping in-progress file-chunk messages.
func (m *Multiplexer) oldestDroppableClipboardIndex() (int, bool) {
	for i, existing := range m.clipboard {
		if !existing.isFileChunkKind() {
			return i, true
		}
	}
	return 0, false
}

// PushGraphics enqueues an encoded frame. Overflow policy: replace-head —
// when full, the oldest queued frame is discarded unconditionally so the
// client always converges on the most recently captured picture rather
// than an aging backlog (spec.md §4.5).
func (m *Multiplexer) PushGraphics(g GraphicsItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.graphics) >= m.graphicsCap {
		m.graphics = m.graphics[1:]
		m.dropGraphics++
		muxLog.Warn("graphics queue full, dropped oldest frame", "totalDropped", m.dropGraphics)
	}
	m.graphics = append(m.graphics, g)
}

// Batch is one tick's drained work, in priority order.
type Batch struct {
	Input     []InputEvent
	Control   []ControlMessage
	Clipboard []ClipboardMessage
	Graphics  *GraphicsItem
}

// DrainBatchLimits caps how much of each lower-priority queue one tick
// pulls, so a backlog in control/clipboard/graphics can never make input
// latency depend on queue depth (spec.md §4.5, §8 "starvation bound").
type DrainBatchLimits struct {
	MaxControl   int
	MaxClipboard int
}

// DrainBatch drains all pending input, then up to MaxControl control
// messages, then up to MaxClipboard clipboard messages, then at most one
// graphics item, per spec.md §4.5's per-tick draining order.
func (m *Multiplexer) DrainBatch(limits DrainBatchLimits) Batch {
	maxControl := limits.MaxControl
	if maxControl <= 0 {
		maxControl = 4
	}
	maxClipboard := limits.MaxClipboard
	if maxClipboard <= 0 {
		maxClipboard = 2
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var batch Batch

	batch.Input = CoalesceInput(m.input)
	m.input = nil

	n := min(maxControl, len(m.control))
	batch.Control = m.control[:n]
	m.control = m.control[n:]

	n = min(maxClipboard, len(m.clipboard))
	batch.Clipboard = m.clipboard[:n]
	m.clipboard = m.clipboard[n:]

	if len(m.graphics) > 0 {
		item := m.graphics[0]
		m.graphics = m.graphics[1:]
		batch.Graphics = &item
	}

	return batch
}

// DroppedCounts reports cumulative drop counters for diagnostics.
type DroppedCounts struct {
	Input, Control, Clipboard, Graphics uint64
}

func (m *Multiplexer) DroppedCounts() DroppedCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return DroppedCounts{
		Input:     m.dropInput,
		Control:   m.dropControl,
		Clipboard: m.dropClipboard,
		Graphics:  m.dropGraphics,
	}
}
