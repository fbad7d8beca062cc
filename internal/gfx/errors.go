package gfx

import "errors"

// Fatal-to-session errors (spec.md §7).
var (
	ErrUnsupportedPixelFormat = errors.New("gfx: unsupported pixel format")
	ErrInvalidStride          = errors.New("gfx: invalid stride")
	ErrEncoderInit            = errors.New("gfx: encoder initialization failed")
	ErrEncoderFatal           = errors.New("gfx: encoder fatal error")
	ErrSourceLost             = errors.New("gfx: frame source lost")
)

// Per-frame recoverable errors. Dispatcher.Submit returns encoder errors to
// its caller; the session's frame pipeline swallows and counts them.
var (
	ErrEncoderRecoverable   = errors.New("gfx: encoder recoverable error")
	ErrRateBucketEmpty      = errors.New("gfx: rate bucket empty, frame dropped")
	ErrFingerprintUnchanged = errors.New("gfx: fingerprint unchanged, frame dropped")
	ErrDamageOverflow       = errors.New("gfx: damage coalesce overflow, falling back to full frame")
)
