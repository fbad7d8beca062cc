package gfx

import (
	"encoding/binary"
	"fmt"
)

// Wire format commitments (spec.md §6, bit-exact, little-endian):
//
//	u32 pts_ms | u16 region_count | region_count × {u16 x, u16 y, u16 w, u16 h}
//	| u8 lc | u8 reserved=0 | u32 main_len | main_bytes
//	| (if lc==0: u32 aux_len | aux_bytes)
//
// NAL units inside main/aux are AVC length-prefixed (4-byte big-endian
// length + body); Annex-B start codes never appear on the wire.

const maxWireRegions = 0xFFFF

// Marshal packs f into the MS-RDPEGFX-compliant AVC444 frame header plus
// payload described above. Regions beyond maxWireRegions or maxRegions
// never occur (CoalesceRegions enforces the N=16 cap), but Marshal still
// guards against a caller-constructed Avc444Frame that violates it.
func (f Avc444Frame) Marshal() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if len(f.Regions) > maxWireRegions {
		return nil, fmt.Errorf("gfx: %d regions exceeds wire limit %d", len(f.Regions), maxWireRegions)
	}

	size := 4 + 2 + len(f.Regions)*8 + 1 + 1 + 4 + len(f.Main.NALUs)
	if f.LC == LCBoth {
		size += 4 + len(f.Aux.NALUs)
	}
	out := make([]byte, size)
	off := 0

	ptsMs := uint32(f.PtsUs / 1000)
	binary.LittleEndian.PutUint32(out[off:], ptsMs)
	off += 4

	binary.LittleEndian.PutUint16(out[off:], uint16(len(f.Regions)))
	off += 2

	for _, r := range f.Regions {
		binary.LittleEndian.PutUint16(out[off:], uint16(clampInt(r.X, 0, 0xFFFF)))
		off += 2
		binary.LittleEndian.PutUint16(out[off:], uint16(clampInt(r.Y, 0, 0xFFFF)))
		off += 2
		binary.LittleEndian.PutUint16(out[off:], uint16(clampInt(r.W, 0, 0xFFFF)))
		off += 2
		binary.LittleEndian.PutUint16(out[off:], uint16(clampInt(r.H, 0, 0xFFFF)))
		off += 2
	}

	out[off] = byte(f.LC)
	off++
	out[off] = 0 // reserved
	off++

	binary.LittleEndian.PutUint32(out[off:], uint32(len(f.Main.NALUs)))
	off += 4
	off += copy(out[off:], f.Main.NALUs)

	if f.LC == LCBoth {
		binary.LittleEndian.PutUint32(out[off:], uint32(len(f.Aux.NALUs)))
		off += 4
		off += copy(out[off:], f.Aux.NALUs)
	}

	return out, nil
}

// Unmarshal decodes a wire-framed AVC444 frame produced by Marshal. It does
// not attempt to recover PtsUs beyond the millisecond resolution the wire
// format carries (PtsUs is set to ptsMs*1000).
func Unmarshal(data []byte) (Avc444Frame, error) {
	var f Avc444Frame
	r := wireReader{data: data}

	ptsMs, err := r.u32()
	if err != nil {
		return f, err
	}
	regionCount, err := r.u16()
	if err != nil {
		return f, err
	}
	regions := make([]Rect, 0, regionCount)
	for i := 0; i < int(regionCount); i++ {
		x, err := r.u16()
		if err != nil {
			return f, err
		}
		y, err := r.u16()
		if err != nil {
			return f, err
		}
		w, err := r.u16()
		if err != nil {
			return f, err
		}
		h, err := r.u16()
		if err != nil {
			return f, err
		}
		regions = append(regions, Rect{X: int(x), Y: int(y), W: int(w), H: int(h)})
	}

	lc, err := r.u8()
	if err != nil {
		return f, err
	}
	if _, err := r.u8(); err != nil { // reserved
		return f, err
	}

	mainLen, err := r.u32()
	if err != nil {
		return f, err
	}
	mainBytes, err := r.bytes(int(mainLen))
	if err != nil {
		return f, err
	}

	f = Avc444Frame{
		PtsUs:   uint64(ptsMs) * 1000,
		Regions: regions,
		LC:      LC(lc),
		Main:    EncodedUnit{Kind: kindFromNALUs(mainBytes), NALUs: mainBytes},
	}

	if f.LC == LCBoth {
		auxLen, err := r.u32()
		if err != nil {
			return f, err
		}
		auxBytes, err := r.bytes(int(auxLen))
		if err != nil {
			return f, err
		}
		aux := EncodedUnit{Kind: kindFromNALUs(auxBytes), NALUs: auxBytes}
		f.Aux = &aux
	}

	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

// kindFromNALUs inspects the first AVC length-prefixed NAL unit's type
// nibble to recover whether the unit was a keyframe. Used by Unmarshal,
// which only has wire bytes to go on, not the encoder's own IsKeyFrame
// report.
func kindFromNALUs(avcc []byte) UnitKind {
	if len(avcc) < 5 {
		return UnitSkipped
	}
	nalType := avcc[4] & 0x1f
	if nalType == 5 || nalType == 7 || nalType == 8 {
		return UnitKeyframeIDR
	}
	return UnitPredictedP
}

type wireReader struct {
	data []byte
	off  int
}

func (r *wireReader) need(n int) error {
	if r.off+n > len(r.data) {
		return fmt.Errorf("gfx: wire frame truncated, need %d bytes at offset %d of %d", n, r.off, len(r.data))
	}
	return nil
}

func (r *wireReader) u8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *wireReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *wireReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *wireReader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out, nil
}

// annexBToAVCC converts a buffer of Annex-B NAL units (00 00 00 01 / 00 00
// 01 start codes) into AVC length-prefixed form (4-byte BE length + body).
// Backends built on encoders that natively emit Annex-B (the common case
// for software H.264 bitstream output) must run their output through this
// before returning it from h264Backend.EncodeView, since spec.md §4.3
// forbids Annex-B on the wire.
func annexBToAVCC(data []byte) []byte {
	units := splitAnnexB(data)
	if units == nil {
		// No start codes found; assume the input is already length-prefixed
		// or is a single bare NAL unit body with no framing at all.
		return data
	}
	out := make([]byte, 0, len(data)+4*len(units))
	for _, u := range units {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(u)))
		out = append(out, lenBuf[:]...)
		out = append(out, u...)
	}
	return out
}
