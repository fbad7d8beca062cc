package session

import (
	"context"
	"time"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
	"github.com/breeze-rmm/rdpgfx/internal/mux"
)

var transportLog = logging.L("session.transport")

// transportTick is the multiplexer drain cadence. It is independent of
// target_fps: the graphics queue only ever yields a frame when the
// pipeline pushed one, so draining faster than encoding just keeps input/
// control latency low (spec.md §4.5 "starvation bound").
const transportTick = 4 * time.Millisecond

// drainLimits caps how much of the lower-priority queues one tick
// forwards, matching mux.DrainBatch's own per-tick bound.
var drainLimits = mux.DrainBatchLimits{MaxControl: 4, MaxClipboard: 2}

// inputPumpLoop and transportLoop together form the transport executor
// (spec.md §5 "async, single-threaded cooperative"): it never performs
// encoding or file I/O inline, only queue draining and collaborator sends.
func (e *Engine) transportLoop(ctx context.Context) {
	defer e.wg.Done()

	go e.inputPumpLoop(ctx)

	ticker := time.NewTicker(transportTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.drainAndSend()
		}
	}
}

// inputPumpLoop is a second pump, analogous to framePumpLoop: InputSource's
// Next is the only blocking call, kept off the ticker-driven drain loop.
func (e *Engine) inputPumpLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		ev, err := e.inputSrc.Next()
		if err != nil {
			transportLog.Warn("input source error", "error", err)
			return
		}
		e.mux.PushInput(ev)
	}
}

func (e *Engine) drainAndSend() {
	batch := e.mux.DrainBatch(drainLimits)

	for _, ev := range batch.Input {
		if err := e.transport.SendInputAck(ev.SeqNo); err != nil {
			transportLog.Debug("input ack send failed", "error", err)
		}
	}

	for _, c := range batch.Control {
		e.handleControl(c)
	}

	for _, cm := range batch.Clipboard {
		e.handleClipboardMessage(cm)
	}

	if batch.Graphics != nil {
		wire, err := batch.Graphics.Frame.Marshal()
		if err != nil {
			transportLog.Error("failed to marshal graphics frame", "error", err)
			return
		}
		if err := e.transport.SendGraphics(wire); err != nil {
			transportLog.Warn("graphics send failed", "error", err)
		}
	}
}
