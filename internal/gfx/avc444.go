package gfx

import (
	"fmt"
	"sync"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
)

var avcLog = logging.L("gfx.avc444")

// Avc444Config tunes one encoder session (spec.md §6 configuration surface).
type Avc444Config struct {
	Width               int
	Height              int
	BitrateKbps         int
	FPS                 int
	Mode                FrameMode
	EnableAuxOmission   bool
	AuxIntervalMax      int // force a fresh aux view at least this often even if unchanged
	KeyframeIntervalMax int
	Range               ColorRange
}

func (c Avc444Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: non-positive dimensions", ErrEncoderInit)
	}
	if c.BitrateKbps <= 0 || c.FPS <= 0 {
		return fmt.Errorf("%w: non-positive bitrate or fps", ErrEncoderInit)
	}
	if !c.Mode.valid() {
		return fmt.Errorf("%w: invalid frame mode %q", ErrEncoderInit, c.Mode)
	}
	if c.AuxIntervalMax <= 0 {
		return fmt.Errorf("%w: aux interval must be positive", ErrEncoderInit)
	}
	if c.KeyframeIntervalMax <= 0 {
		return fmt.Errorf("%w: keyframe interval must be positive", ErrEncoderInit)
	}
	return nil
}

// Avc444Encoder drives one h264Backend to produce MS-RDPEGFX AVC444 logical
// dual-stream output: a main 4:2:0 view always present, and an auxiliary
// residual-chroma view that the aux-omission optimizer may skip when its
// content hasn't changed (spec.md §3, §4.2).
//
// Exactly one backend instance backs both views, so the encoder's DPB/state
// is shared; re-introducing a previously omitted aux stream forces an IDR on
// that view alone rather than risking a reference mismatch (spec.md §4.2
// "forced keyframe re-anchor").
type Avc444Encoder struct {
	cfg     Avc444Config
	backend h264Backend

	mu                  sync.Mutex
	frameCount          uint64
	framesSinceKeyframe int
	framesSinceAux      int
	haveAuxFingerprint  bool
	lastAuxFingerprint  FrameFingerprint
	auxWasOmittedLast   bool
	firstFrame          bool
}

// NewAvc444Encoder builds an encoder backed by the best available h264Backend.
func NewAvc444Encoder(cfg Avc444Config) (*Avc444Encoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	backend, err := newH264Backend(cfg.Width, cfg.Height, cfg.BitrateKbps, cfg.FPS)
	if err != nil {
		return nil, err
	}
	return &Avc444Encoder{cfg: cfg, backend: backend, firstFrame: true}, nil
}

// SetBitrate adjusts the live target bitrate (spec.md §4.4 adaptive bitrate).
func (e *Avc444Encoder) SetBitrate(bitrateKbps int) error {
	return e.backend.SetBitrate(bitrateKbps)
}

// Close releases the underlying backend.
func (e *Avc444Encoder) Close() error {
	return e.backend.Close()
}

// ForceKeyframeNextFrame resets the keyframe interval counter so the next
// EncodeFrame call produces an IDR on the main view (spec.md §4.3 "refresh").
func (e *Avc444Encoder) ForceKeyframeNextFrame() {
	e.mu.Lock()
	e.framesSinceKeyframe = e.cfg.KeyframeIntervalMax
	e.mu.Unlock()
}

// EncodeFrame converts raw to YUV, decides the aux-omission and keyframe
// policy for this frame, and returns a wire-ready Avc444Frame.
func (e *Avc444Encoder) EncodeFrame(raw RawFrame, damage []Rect) (Avc444Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mainYUV, err := ToYUV(raw, LayoutI420, e.cfg.Range)
	if err != nil {
		return Avc444Frame{}, err
	}
	i444, err := ToYUV(raw, LayoutI444, e.cfg.Range)
	if err != nil {
		return Avc444Frame{}, err
	}
	auxYUV := buildAuxView(i444)

	forceKeyframe := e.firstFrame || e.cfg.Mode == ModeAllIntra || e.framesSinceKeyframe >= e.cfg.KeyframeIntervalMax
	omitAux, auxFingerprint := e.decideAuxOmission(auxYUV, forceKeyframe)
	// The first frame is always lc=0 regardless of the omission setting, so
	// a newly attached viewer always has both logical streams to anchor on.
	if e.firstFrame {
		omitAux = false
	}
	// Coming back from an omitted aux stream means the backend's aux-view
	// reference state is stale; force an IDR on this frame so the viewer
	// never decodes aux predicted off a picture it was never sent.
	auxReanchor := e.auxWasOmittedLast && !omitAux

	mainNALUs, mainIsIDR, err := e.backend.EncodeView(mainYUV, forceKeyframe)
	if err != nil {
		return Avc444Frame{}, err
	}

	frame := Avc444Frame{
		PtsUs:   raw.PtsUs,
		Regions: CoalesceRegions(damage, raw.Width, raw.Height),
	}
	frame.Main = EncodedUnit{
		Kind:    kindFor(mainIsIDR),
		NALUs:   mainNALUs,
		Refresh: forceKeyframe,
	}

	if omitAux {
		frame.LC = LCLumaOnly
		frame.Aux = nil
		e.framesSinceAux++
	} else {
		auxForceIDR := forceKeyframe || auxReanchor
		auxNALUs, auxIsIDR, err := e.backend.EncodeView(auxYUV, auxForceIDR)
		if err != nil {
			return Avc444Frame{}, err
		}
		aux := EncodedUnit{
			Kind:    kindFor(auxIsIDR),
			NALUs:   auxNALUs,
			Refresh: auxForceIDR,
		}
		frame.LC = LCBoth
		frame.Aux = &aux
		e.framesSinceAux = 0
		e.lastAuxFingerprint = auxFingerprint
		e.haveAuxFingerprint = true
	}

	if err := frame.Validate(); err != nil {
		return Avc444Frame{}, err
	}

	e.auxWasOmittedLast = omitAux
	e.firstFrame = false
	e.frameCount++
	if forceKeyframe {
		e.framesSinceKeyframe = 0
	} else {
		e.framesSinceKeyframe++
	}

	if omitAux {
		avcLog.Debug("aux stream omitted", "framesSinceAux", e.framesSinceAux, "ptsUs", raw.PtsUs)
	}
	return frame, nil
}

// decideAuxOmission reports whether the aux stream can be skipped this
// frame: omission requires it enabled, a prior fingerprint to compare
// against, an unchanged fingerprint, not having hit AuxIntervalMax frames
// since the aux view was last actually sent, and main not being a keyframe
// this frame: a main IDR is always a resync anchor, so aux rides along
// with it regardless of the other conditions (spec.md §4.2, trigger 1).
func (e *Avc444Encoder) decideAuxOmission(auxYUV YuvFrame, forceKeyframe bool) (bool, FrameFingerprint) {
	fp := Fingerprint(auxYUV, PlaneAll)
	if !e.cfg.EnableAuxOmission {
		return false, fp
	}
	if forceKeyframe {
		return false, fp
	}
	if !e.haveAuxFingerprint {
		return false, fp
	}
	if e.framesSinceAux+1 >= e.cfg.AuxIntervalMax {
		return false, fp
	}
	if fp != e.lastAuxFingerprint {
		return false, fp
	}
	return true, fp
}

func kindFor(isIDR bool) UnitKind {
	if isIDR {
		return UnitKeyframeIDR
	}
	return UnitPredictedP
}

// buildAuxView repacks a full-resolution I444 conversion into a second
// 4:2:0 logical picture the backend can encode as if it were luma: the
// view's "luma" plane carries the U (Cb) residual at full resolution, and
// its "chroma" planes carry a 2x2-downsampled V (Cr) plane plus a neutral
// fill, which is sufficient for a single shared encoder instance to treat it
// as an ordinary 4:2:0 input picture.
func buildAuxView(i444 YuvFrame) YuvFrame {
	cw, ch := i444.PaddedWidth/2, i444.PaddedHeight/2
	out := YuvFrame{
		Layout:       LayoutI420,
		Width:        i444.Width,
		Height:       i444.Height,
		PaddedWidth:  i444.PaddedWidth,
		PaddedHeight: i444.PaddedHeight,
		PtsUs:        i444.PtsUs,
		Y:            i444.U,
		U:            make([]byte, cw*ch),
		V:            make([]byte, cw*ch),
	}
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			out.U[y*cw+x] = i444.V[(y*2)*i444.PaddedWidth+x*2]
			out.V[y*cw+x] = 128
		}
	}
	return out
}
