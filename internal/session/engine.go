package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/breeze-rmm/rdpgfx/internal/clipboard"
	"github.com/breeze-rmm/rdpgfx/internal/clock"
	"github.com/breeze-rmm/rdpgfx/internal/config"
	"github.com/breeze-rmm/rdpgfx/internal/gfx"
	"github.com/breeze-rmm/rdpgfx/internal/logging"
	"github.com/breeze-rmm/rdpgfx/internal/mux"
	"github.com/breeze-rmm/rdpgfx/internal/workerpool"
)

var engineLog = logging.L("session.engine")

// quiescenceDeadline bounds how long Stop waits for the three executors to
// reach quiescence before giving up (spec.md §5 "Session shutdown ...
// each executor must reach quiescence within 2 s, else is terminated").
const quiescenceDeadline = 2 * time.Second

// clipboardTickInterval drives the periodic maintenance sweep (transfer
// timeout + stale file-contents stream eviction) that has no natural
// trigger of its own (spec.md §4.6 "Timeout" and "30-s inactivity").
const clipboardTickInterval = 500 * time.Millisecond

// Params bundles everything New needs to wire one running session:
// the negotiated display geometry, the external collaborators (frame/input
// sources, clipboard OS binding, outbound transport), and the validated
// configuration surface.
type Params struct {
	Config *config.Config

	Width, Height int

	FrameSource gfx.FrameSource
	InputSource InputSource
	Clipboard   ClipboardCollaborators
	Transport   Transport

	// RTCPReader and StatsProvider are optional: a session running over a
	// transport other than WebRTC (e.g. a raw TCP/TLS channel) leaves both
	// nil and simply never runs the two loops in rtcp.go.
	RTCPReader    RTCPReader
	StatsProvider StatsProvider
}

// Engine is the wired-up "Session Glue" (spec.md §2, 12% share): it owns
// the three executors' lifecycle, the shared SessionClock, and the error
// taxonomy's Classify entrypoint, without itself implementing any pipeline
// logic (that lives in pipeline.go/transport.go/control.go/clipboard_glue.go).
type Engine struct {
	cfg   *config.Config
	clk   *clock.SessionClock
	width int

	transport Transport
	inputSrc  InputSource
	frameSrc  gfx.FrameSource

	clickFlush clickFlushGate

	adapter    *gfx.Adapter
	encoder    *gfx.Avc444Encoder
	dispatcher *gfx.Dispatcher
	adaptive   *gfx.AdaptiveBitrate
	metrics    *gfx.StreamMetrics

	mux *mux.Multiplexer

	clipEngine     *clipboard.Engine
	transferEngine *clipboard.TransferEngine
	fileServer     *clipboard.FileContentsServer
	dedup          *clipboard.SelectionDedup
	pool           *workerpool.Pool

	frameWake chan struct{}

	nextStreamID    atomic.Uint32
	streamMu        sync.Mutex
	streamTransfers map[uint32]string

	rtcpReader    RTCPReader
	statsProvider StatsProvider

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New wires every collaborator package into one Engine, but starts nothing;
// call Start to launch the three executors.
func New(p Params) (*Engine, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("session: config is required")
	}
	if p.FrameSource == nil || p.InputSource == nil || p.Transport == nil {
		return nil, fmt.Errorf("session: frame source, input source, and transport are required")
	}
	cfg := p.Config

	metrics := gfx.NewStreamMetrics()

	frameMode := gfx.ModeMainPredicted
	if cfg.FrameMode == string(gfx.ModeAllIntra) {
		frameMode = gfx.ModeAllIntra
	}

	encoder, err := gfx.NewAvc444Encoder(gfx.Avc444Config{
		Width:               p.Width,
		Height:              p.Height,
		BitrateKbps:         cfg.BitrateKbps,
		FPS:                 cfg.TargetFPS,
		Mode:                frameMode,
		EnableAuxOmission:   cfg.EnableAuxOmission,
		AuxIntervalMax:      cfg.AuxIntervalMax,
		KeyframeIntervalMax: cfg.KeyframeIntervalMax,
		Range:               gfx.RangeLimited,
	})
	if err != nil {
		return nil, fmt.Errorf("session: encoder init: %w", err)
	}

	dispatcher := gfx.NewDispatcher(gfx.DispatcherConfig{
		TargetFPS:   cfg.TargetFPS,
		BurstFrames: 1,
	}, encoder, metrics)

	adaptive, err := gfx.NewAdaptiveBitrate(gfx.AdaptiveConfig{
		Encoder:        encoder,
		InitialBitrate: cfg.BitrateKbps,
		MinBitrate:     cfg.MinBitrateKbps,
		MaxBitrate:     cfg.MaxBitrateKbps,
	})
	if err != nil {
		// Adaptive control is supplemental (spec.md §13); a session still
		// runs at the fixed configured bitrate without it.
		engineLog.Warn("adaptive bitrate controller disabled", "error", err)
	}

	m := mux.New(mux.Config{
		InputDepth:     cfg.InputQueueDepth,
		ControlDepth:   cfg.ControlQueueDepth,
		ClipboardDepth: cfg.ClipboardQueueDepth,
		GraphicsDepth:  cfg.GraphicsQueueDepth,
	})

	pool := workerpool.New(cfg.ClipboardIOWorkers, 64)

	clipEngine := clipboard.NewEngine(clipboard.EngineConfig{
		MaxContentBytes: cfg.ClipboardMaxBytes,
	}, p.Clipboard.OS)

	transferEngine := clipboard.NewTransferEngine(clipboard.TransferConfig{
		ChunkBytes: cfg.FileChunkBytes,
		IOWorkers:  cfg.ClipboardIOWorkers,
	}, pool)

	var fileServer *clipboard.FileContentsServer
	if p.Clipboard.FileSource != nil {
		fileServer = clipboard.NewFileContentsServer(p.Clipboard.FileSource, pool)
	}

	e := &Engine{
		cfg:             cfg,
		clk:             clock.New(),
		width:           p.Width,
		transport:       p.Transport,
		inputSrc:        p.InputSource,
		frameSrc:        p.FrameSource,
		adapter:         gfx.NewAdapter(p.FrameSource),
		encoder:         encoder,
		dispatcher:      dispatcher,
		adaptive:        adaptive,
		metrics:         metrics,
		mux:             m,
		clipEngine:      clipEngine,
		transferEngine:  transferEngine,
		fileServer:      fileServer,
		dedup:           clipboard.NewSelectionDedup(),
		pool:            pool,
		frameWake:       make(chan struct{}, 1),
		streamTransfers: make(map[uint32]string),
		rtcpReader:      p.RTCPReader,
		statsProvider:   p.StatsProvider,
	}
	return e, nil
}

// Start launches the frame pipeline, transport, and clipboard maintenance
// executors. The capture pump (translating FrameSource.Next into adapter
// pushes) runs as a fourth goroutine feeding the frame pipeline, since the
// source itself is blocking and must not share a goroutine with encoding.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("session: already started")
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	runCtx := e.ctx
	e.mu.Unlock()

	e.wg.Add(4)
	go e.framePumpLoop(runCtx)
	go e.framePipelineLoop(runCtx)
	go e.transportLoop(runCtx)
	go e.clipboardMaintenanceLoop(runCtx)

	// The RTCP keyframe-force and stats-poll loops only run over a WebRTC
	// transport (spec.md §11); neither is part of the fixed executor count
	// above since a non-WebRTC session never constructs them.
	if e.rtcpReader != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.RunRTCPKeyframeLoop(runCtx, e.rtcpReader)
		}()
	}
	if e.statsProvider != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.RunStatsPollLoop(runCtx, e.statsProvider)
		}()
	}

	engineLog.Info("session engine started", "width", e.width, "targetFps", e.cfg.TargetFPS)
	return nil
}

// Stop cancels the session and waits up to quiescenceDeadline for every
// executor to exit, releasing the encoder and adapter regardless of
// whether quiescence was reached in time (spec.md §5 "Cancellation &
// timeouts").
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(quiescenceDeadline):
		engineLog.Warn("executors did not reach quiescence within deadline, forcing teardown")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), quiescenceDeadline)
	defer drainCancel()
	e.pool.StopAccepting()
	e.pool.Drain(drainCtx)

	_ = e.adapter.Close()
	_ = e.inputSrc.Close()
	_ = e.encoder.Close()

	snap := e.metrics.Snapshot()
	engineLog.Info("session engine stopped",
		"framesCaptured", snap.FramesCaptured,
		"framesEncoded", snap.FramesEncoded,
		"framesDropped", snap.FramesDropped,
		"uptime", snap.Uptime.Round(time.Second),
	)
}

// Metrics returns a point-in-time snapshot of the stream metrics.
func (e *Engine) Metrics() gfx.MetricsSnapshot {
	return e.metrics.Snapshot()
}

// ClipboardState returns the clipboard engine's current owner state, for
// diagnostics and tests.
func (e *Engine) ClipboardState() clipboard.OwnerState {
	return e.clipEngine.State()
}
