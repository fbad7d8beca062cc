package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/breeze-rmm/rdpgfx/internal/gfx"
	"github.com/breeze-rmm/rdpgfx/internal/logging"
	"github.com/breeze-rmm/rdpgfx/internal/mux"
)

var pipelineLog = logging.L("session.pipeline")

// clickFlush mirrors the teacher's atomic.Bool gate (Session.clickFlush in
// remote/desktop/session.go): set by handleControl on a request_keyframe
// message and by the RTCP loop on PLI/FIR, cleared by the pipeline before
// its next encode so the viewer's click result appears on a clean IDR
// instead of a queued predicted frame (spec.md §13 "click-to-flush").
type clickFlushGate struct {
	flag atomic.Bool
}

func (g *clickFlushGate) Set()          { g.flag.Store(true) }
func (g *clickFlushGate) TestAndClear() bool {
	return g.flag.CompareAndSwap(true, false)
}

// framePumpLoop is the only goroutine allowed to call the blocking
// FrameSource.Next; it must never share a goroutine with encoding, or a
// slow capture backend would stall the token-bucket dispatcher's timing
// (spec.md §5 "Frame pipeline executor").
func (e *Engine) framePumpLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		raw, err := e.pumpNext(ctx)
		if err != nil {
			if errors.Is(err, gfx.ErrSourceLost) {
				pipelineLog.Error("frame source lost", "error", err)
			}
			e.adapter.PushFatal(err)
			e.signalFrame()
			return
		}
		if err := e.adapter.Push(raw); err != nil {
			pipelineLog.Warn("dropping invalid frame from source", "error", err)
			continue
		}
		e.metrics.RecordCapture()
		e.signalFrame()
	}
}

// pumpNext wraps the underlying FrameSource's blocking Next so the pump
// loop still observes context cancellation promptly even though FrameSource
// itself takes no context (spec.md §6 "FrameSource ... produces at any
// rate").
func (e *Engine) pumpNext(ctx context.Context) (gfx.RawFrame, error) {
	type result struct {
		frame gfx.RawFrame
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := e.frameSrc.Next()
		ch <- result{f, err}
	}()
	select {
	case <-ctx.Done():
		return gfx.RawFrame{}, ctx.Err()
	case r := <-ch:
		return r.frame, r.err
	}
}

func (e *Engine) signalFrame() {
	select {
	case e.frameWake <- struct{}{}:
	default:
	}
}

// framePipelineLoop is the frame pipeline executor: it owns the encoder
// exclusively and runs convert→encode→dispatch synchronously per frame,
// off the transport thread (spec.md §5). Encoded output is handed to the
// multiplexer's graphics queue; the transport executor drains and frames
// it onto the wire.
func (e *Engine) framePipelineLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.frameWake:
			e.drainFrames(ctx)
		}
	}
}

func (e *Engine) drainFrames(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		raw, ok, err := e.adapter.Next()
		if err != nil {
			pipelineLog.Error("frame source fatal error", "error", err)
			e.cancel()
			return
		}
		if !ok {
			return
		}

		if e.clickFlush.TestAndClear() {
			e.encoder.ForceKeyframeNextFrame()
		}

		start := time.Now()
		frame, err := e.dispatcher.Submit(ctx, raw, raw.Damage)
		if err != nil {
			sev := Classify(err)
			pipelineLog.Warn("frame encode failed", "error", err, "severity", sev.String())
			if sev == SeverityFatal {
				e.cancel()
				return
			}
			if errors.Is(err, gfx.ErrEncoderRecoverable) {
				e.encoder.ForceKeyframeNextFrame()
			}
			e.metrics.RecordDrop()
			continue
		}
		if frame == nil {
			continue // rate-limited or unchanged content; intentionally dropped
		}
		e.metrics.RecordConvert(time.Since(start))

		e.mux.PushGraphics(mux.GraphicsItem{Frame: *frame})
	}
}
