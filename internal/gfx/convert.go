package gfx

// Format Converter (spec.md §4.2): BGRA→YUV444/YUV420 with edge-duplicate
// padding to a multiple of 16, and a cheap deterministic fingerprint.
//
// Coefficients are BT.601 limited range, matching the fixed-point integer
// arithmetic the teacher's bgraToNV12 uses for its BGRA→NV12 conversion
// (remote/desktop/colorconv.go), generalized here to also emit the I444
// (4:4:4, no chroma subsampling) plane layout AVC444's auxiliary stream
// needs.

// ColorRange selects the YUV output range.
type ColorRange int

const (
	RangeLimited ColorRange = iota
	RangeFull
)

func padTo16(n int) int {
	if n%16 == 0 {
		return n
	}
	return n + (16 - n%16)
}

// ToYUV converts raw to a YuvFrame in the requested layout, padding the
// output to a multiple of 16 in both dimensions by duplicating the nearest
// edge pixel (never zero-filling, which would introduce a visible seam at
// the encoder's block boundary).
func ToYUV(raw RawFrame, layout YuvLayout, cr ColorRange) (YuvFrame, error) {
	if err := validateFrame(raw); err != nil {
		return YuvFrame{}, err
	}

	pw := padTo16(raw.Width)
	ph := padTo16(raw.Height)

	out := YuvFrame{
		Layout:       layout,
		Width:        raw.Width,
		Height:       raw.Height,
		PaddedWidth:  pw,
		PaddedHeight: ph,
		PtsUs:        raw.PtsUs,
	}
	out.Y = make([]byte, pw*ph)

	switch layout {
	case LayoutI420:
		cw, ch := pw/2, ph/2
		out.U = make([]byte, cw*ch)
		out.V = make([]byte, cw*ch)
		convertPlanesI420(raw, out, cr)
	case LayoutI444:
		out.U = make([]byte, pw*ph)
		out.V = make([]byte, pw*ph)
		convertPlanesI444(raw, out, cr)
	}
	return out, nil
}

// pixelAt returns B, G, R at (x, y), clamping to the source frame's bounds
// so padded rows/columns sample the nearest real edge pixel.
func pixelAt(raw RawFrame, x, y int) (b, g, r int) {
	if x >= raw.Width {
		x = raw.Width - 1
	}
	if y >= raw.Height {
		y = raw.Height - 1
	}
	off := y*raw.StrideBytes + x*4
	switch raw.Format {
	case PixelFormatXRGB:
		return int(raw.Pixels[off+3]), int(raw.Pixels[off+2]), int(raw.Pixels[off+1])
	default: // BGRA, BGRX
		return int(raw.Pixels[off+0]), int(raw.Pixels[off+1]), int(raw.Pixels[off+2])
	}
}

func rangeOffsets(cr ColorRange) (yMin, yMax, cMin, cMax, yAdd, cAdd int) {
	if cr == RangeFull {
		return 0, 255, 0, 255, 0, 128
	}
	return 16, 235, 16, 240, 16, 128
}

func yFromRGB(r, g, b, yAdd, yMin, yMax int) byte {
	v := ((66*r + 129*g + 25*b + 128) >> 8) + yAdd
	return byte(clampInt(v, yMin, yMax))
}

func uFromRGB(r, g, b, cAdd, cMin, cMax int) byte {
	v := ((-38*r - 74*g + 112*b + 128) >> 8) + cAdd
	return byte(clampInt(v, cMin, cMax))
}

func vFromRGB(r, g, b, cAdd, cMin, cMax int) byte {
	v := ((112*r - 94*g - 18*b + 128) >> 8) + cAdd
	return byte(clampInt(v, cMin, cMax))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// convertPlanesI420 produces a 4:2:0 view: one UV sample per 2×2 luma block.
func convertPlanesI420(raw RawFrame, out YuvFrame, cr ColorRange) {
	yMin, yMax, cMin, cMax, yAdd, cAdd := rangeOffsets(cr)
	cw := out.PaddedWidth / 2

	for y := 0; y < out.PaddedHeight; y++ {
		for x := 0; x < out.PaddedWidth; x++ {
			b, g, r := pixelAt(raw, x, y)
			out.Y[y*out.PaddedWidth+x] = yFromRGB(r, g, b, yAdd, yMin, yMax)
			if y%2 == 0 && x%2 == 0 {
				ci := (y/2)*cw + x/2
				out.U[ci] = uFromRGB(r, g, b, cAdd, cMin, cMax)
				out.V[ci] = vFromRGB(r, g, b, cAdd, cMin, cMax)
			}
		}
	}
}

// convertPlanesI444 produces full-resolution chroma: every luma sample gets
// its own UV pair, which is what the AVC444 auxiliary stream packs as if it
// were a second luma plane.
func convertPlanesI444(raw RawFrame, out YuvFrame, cr ColorRange) {
	yMin, yMax, cMin, cMax, yAdd, cAdd := rangeOffsets(cr)

	for y := 0; y < out.PaddedHeight; y++ {
		for x := 0; x < out.PaddedWidth; x++ {
			b, g, r := pixelAt(raw, x, y)
			idx := y*out.PaddedWidth + x
			out.Y[idx] = yFromRGB(r, g, b, yAdd, yMin, yMax)
			out.U[idx] = uFromRGB(r, g, b, cAdd, cMin, cMax)
			out.V[idx] = vFromRGB(r, g, b, cAdd, cMin, cMax)
		}
	}
}

// Plane selects which plane(s) Fingerprint samples.
type Plane int

const (
	PlaneY Plane = iota
	PlaneUV
	PlaneAll
)

// Fingerprint computes a deterministic, non-cryptographic 64-bit signature
// by sampling one pixel per 16-pixel horizontal stride and one row per 16
// rows (spec.md §4.2). Identical input always yields an identical result.
func Fingerprint(frame YuvFrame, plane Plane) FrameFingerprint {
	var h uint64 = 1469598103934665603 // FNV-1a 64-bit offset basis

	mix := func(b byte) {
		h ^= uint64(b)
		h *= 1099511628211 // FNV-1a 64-bit prime
	}

	sample := func(data []byte, width, height int) {
		if len(data) == 0 {
			return
		}
		for y := 0; y < height; y += 16 {
			row := y * width
			for x := 0; x < width; x += 16 {
				mix(data[row+x])
			}
		}
	}

	if plane == PlaneY || plane == PlaneAll {
		sample(frame.Y, frame.PaddedWidth, frame.PaddedHeight)
	}
	if plane == PlaneUV || plane == PlaneAll {
		cw, ch := chromaDims(frame)
		sample(frame.U, cw, ch)
		sample(frame.V, cw, ch)
	}
	return FrameFingerprint(h)
}

// FingerprintRaw computes the same FNV-1a sampled signature as Fingerprint
// but directly over a RawFrame's pixel bytes, so the dispatcher can detect
// an unchanged frame before paying for YUV conversion or encoding.
func FingerprintRaw(raw RawFrame) FrameFingerprint {
	var h uint64 = 1469598103934665603
	for y := 0; y < raw.Height; y += 16 {
		row := y * raw.StrideBytes
		for x := 0; x < raw.Width; x += 16 {
			off := row + x*4
			h ^= uint64(raw.Pixels[off])
			h *= 1099511628211
			h ^= uint64(raw.Pixels[off+1])
			h *= 1099511628211
			h ^= uint64(raw.Pixels[off+2])
			h *= 1099511628211
		}
	}
	return FrameFingerprint(h)
}

func chromaDims(frame YuvFrame) (w, h int) {
	if frame.Layout == LayoutI444 {
		return frame.PaddedWidth, frame.PaddedHeight
	}
	return frame.PaddedWidth / 2, frame.PaddedHeight / 2
}
