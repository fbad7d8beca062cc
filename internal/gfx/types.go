// Package gfx implements the display pipeline: frame acquisition, BGRA→YUV
// conversion, the AVC444 dual-stream H.264 encoder, and the rate-limited
// frame dispatcher that feeds the priority multiplexer's graphics queue.
package gfx

import "fmt"

// PixelFormat tags the byte layout of a captured frame's pixel data.
type PixelFormat int

const (
	PixelFormatBGRA PixelFormat = iota
	PixelFormatBGRX
	PixelFormatXRGB
)

// Rect is an axis-aligned damage/region rectangle in frame pixel space.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) empty() bool { return r.W <= 0 || r.H <= 0 }

// clampTo clips r to lie within a width×height frame.
func (r Rect) clampTo(width, height int) Rect {
	x0, y0 := r.X, r.Y
	x1, y1 := r.X+r.W, r.Y+r.H
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > width {
		x1 = width
	}
	if y1 > height {
		y1 = height
	}
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func (r Rect) overlapsOrAdjacent(o Rect) bool {
	const pad = 1 // adjacency tolerance in pixels
	return r.X-pad < o.X+o.W && o.X-pad < r.X+r.W && r.Y-pad < o.Y+o.H && o.Y-pad < r.Y+r.H
}

func (r Rect) union(o Rect) Rect {
	x0 := min(r.X, o.X)
	y0 := min(r.Y, o.Y)
	x1 := max(r.X+r.W, o.X+o.W)
	y1 := max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// RawFrame is a single captured framebuffer, immutable once produced.
type RawFrame struct {
	PtsUs       uint64
	Width       int
	Height      int
	StrideBytes int
	Format      PixelFormat
	Pixels      []byte
	Damage      []Rect // nil means "assume full-frame dirty"
}

// YuvLayout selects the chroma subsampling of a converted frame.
type YuvLayout int

const (
	LayoutI420 YuvLayout = iota
	LayoutI444
)

// YuvFrame holds planar YUV data padded to a multiple of 16 in each
// dimension. Strides are implied by Layout: I420 chroma planes are
// PaddedWidth/2 wide and PaddedHeight/2 tall; I444 chroma planes match luma.
type YuvFrame struct {
	Layout       YuvLayout
	Width        int // original, unpadded width
	Height       int // original, unpadded height
	PaddedWidth  int
	PaddedHeight int
	Y            []byte
	U            []byte
	V            []byte
	PtsUs        uint64
}

// FrameFingerprint is a cheap, deterministic 64-bit content signature. Equal
// fingerprints imply "treat as unchanged"; it is not a cryptographic digest.
type FrameFingerprint uint64

// UnitKind distinguishes the tagged EncodedUnit variants.
type UnitKind int

const (
	UnitKeyframeIDR UnitKind = iota
	UnitPredictedP
	UnitSkipped
)

// EncodedUnit is the tagged output of one logical H.264 stream (main or aux).
type EncodedUnit struct {
	Kind    UnitKind
	NALUs   []byte // AVC length-prefixed NAL units; empty for UnitSkipped
	Refresh bool   // set when the encoder forced this unit to an IDR, whatever the trigger
}

// LC mirrors the MS-RDPEGFX AVC444 header byte: which logical streams are
// present in this frame.
type LC uint8

const (
	LCBoth       LC = 0 // main + aux
	LCLumaOnly   LC = 1 // aux omitted
	LCChromaOnly LC = 2 // not produced by this core
)

// Avc444Frame is the encoder's public output: a framed, wire-ready unit.
type Avc444Frame struct {
	PtsUs   uint64
	Main    EncodedUnit
	Aux     *EncodedUnit // nil iff LC == LCLumaOnly
	LC      LC
	Regions []Rect
}

// Validate checks the LC/aux invariant (spec.md §3, §8 property 2).
func (f Avc444Frame) Validate() error {
	switch f.LC {
	case LCBoth:
		if f.Aux == nil {
			return fmt.Errorf("gfx: lc=0 requires aux present")
		}
	case LCLumaOnly:
		if f.Aux != nil {
			return fmt.Errorf("gfx: lc=1 requires aux absent")
		}
	case LCChromaOnly:
		return fmt.Errorf("gfx: lc=2 is not produced by this core")
	default:
		return fmt.Errorf("gfx: invalid lc %d", f.LC)
	}
	return nil
}
