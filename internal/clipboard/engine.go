package clipboard

import (
	"fmt"
	"sync"
	"time"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
)

var engineLog = logging.L("clipboard.engine")

// transferTimeout bounds how long a Transferring state may persist before
// the engine gives up and reverts to the previous stable state (spec.md
// §4.6 "Timeout: 5 s per transfer").
const transferTimeout = 5 * time.Second

// OSClipboard is the external collaborator backed by the platform clipboard
// (outside this core's scope — see spec.md Non-goals). Engine only reacts
// to ownership-change notifications and pulls/pushes content through this
// interface.
type OSClipboard interface {
	GetContent(f Format) (Content, error)
	SetContent(c Content) error
}

// Engine ties the owner-state Machine, the negotiated remote format list,
// and the loop-prevention guard into the delayed-rendering protocol:
// advertising a format list costs nothing, and the actual payload is only
// materialized when a paste pulls it (spec.md §5).
type Engine struct {
	cfg   EngineConfig
	os    OSClipboard
	guard *LoopGuard

	machine *Machine

	mu               sync.Mutex
	remoteFormats    []FormatEntry
	transferDeadline time.Time
	now              func() time.Time
}

// EngineConfig bounds content size (spec.md §6 clipboard_max_bytes).
type EngineConfig struct {
	MaxContentBytes int64
}

func NewEngine(cfg EngineConfig, os OSClipboard) *Engine {
	return &Engine{
		cfg:     cfg,
		os:      os,
		guard:   NewLoopGuard(),
		machine: NewMachine(),
		now:     time.Now,
	}
}

func (e *Engine) State() OwnerState { return e.machine.State() }

// OnLocalOwnershipChanged is called when the OS clipboard's owner changes
// and content with the given formats is locally available.
func (e *Engine) OnLocalOwnershipChanged(formats []FormatEntry) ([]FormatEntry, error) {
	if len(formats) == 0 {
		if _, err := e.machine.Fire(EventLocalOwnershipCleared); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if _, err := e.machine.Fire(EventLocalOwnershipChanged); err != nil {
		return nil, err
	}
	return formats, nil
}

// OnRemoteFormatList records a viewer's format-list advertisement. No
// payload is requested yet (delayed rendering); Paste triggers the pull.
func (e *Engine) OnRemoteFormatList(formats []FormatEntry) error {
	if _, err := e.machine.Fire(EventRemoteFormatList); err != nil {
		return err
	}
	e.mu.Lock()
	e.remoteFormats = formats
	e.mu.Unlock()
	return nil
}

// RemoteFormats returns the last advertised remote format list.
func (e *Engine) RemoteFormats() []FormatEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]FormatEntry(nil), e.remoteFormats...)
}

// RequestPaste transitions to Transferring and returns the format id the
// caller should request data for (the first one both sides recognize).
func (e *Engine) RequestPaste() (Format, error) {
	e.mu.Lock()
	formats := e.remoteFormats
	e.mu.Unlock()
	if len(formats) == 0 {
		return 0, fmt.Errorf("clipboard: no remote formats advertised")
	}

	if _, err := e.machine.Fire(EventPasteRequested); err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.transferDeadline = e.now().Add(transferTimeout)
	e.mu.Unlock()
	return formats[0].ID, nil
}

// CheckTransferTimeout fails an in-flight paste that has exceeded its
// 5-second deadline, returning to RemoteOwned so the peer can retry
// (spec.md §4.6 "Timeout: 5 s per transfer"). It is a no-op when the
// engine isn't Transferring or the deadline hasn't passed. Callers invoke
// it periodically (e.g. from the session's control tick).
func (e *Engine) CheckTransferTimeout() bool {
	if e.machine.State() != Transferring {
		return false
	}
	e.mu.Lock()
	deadline := e.transferDeadline
	e.mu.Unlock()
	if deadline.IsZero() || e.now().Before(deadline) {
		return false
	}
	e.FailPaste()
	engineLog.Warn("clipboard transfer timed out, reverting to previous state")
	return true
}

// CompletePaste applies received content to the OS clipboard and returns
// to RemoteOwned. Content the loop guard already holds (an echo of what
// this core just sent) is logged and still applied; its fingerprint is
// recorded either way.
func (e *Engine) CompletePaste(c Content) error {
	defer func() { _, _ = e.machine.Fire(EventTransferComplete) }()

	if e.cfg.MaxContentBytes > 0 && int64(len(c.Bytes)+len(c.Text)) > e.cfg.MaxContentBytes {
		return ErrContentTooLarge
	}
	if e.guard.Seen(c) {
		engineLog.Debug("paste content recognized as recent echo, applying once more is safe")
	}
	e.guard.Record(c)

	if e.os == nil {
		return nil
	}
	return e.os.SetContent(c)
}

// FailPaste aborts an in-flight paste, returning to RemoteOwned.
func (e *Engine) FailPaste() {
	_, _ = e.machine.Fire(EventTransferFailed)
}

// PrepareLocalSend reads local content for outbound advertisement,
// recording its fingerprint in the loop guard so the resulting OS
// ownership-change notification (which setting a viewer's paste into the
// OS clipboard triggers on some platforms) is recognized as our own echo
// rather than re-advertised to the viewer.
func (e *Engine) PrepareLocalSend(f Format) (Content, error) {
	if e.os == nil {
		return Content{}, fmt.Errorf("clipboard: no OS clipboard configured")
	}
	c, err := e.os.GetContent(f)
	if err != nil {
		return Content{}, err
	}
	if e.cfg.MaxContentBytes > 0 && int64(len(c.Bytes)+len(c.Text)) > e.cfg.MaxContentBytes {
		return Content{}, ErrContentTooLarge
	}
	e.guard.Record(c)
	return c, nil
}

// IsEcho reports whether content matches something this core recently
// sent or received, so the caller can suppress a redundant round trip
// (spec.md §5 "loop prevention").
func (e *Engine) IsEcho(c Content) bool {
	return e.guard.Seen(c)
}
