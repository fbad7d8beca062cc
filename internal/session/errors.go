package session

import (
	"errors"

	"github.com/breeze-rmm/rdpgfx/internal/clipboard"
	"github.com/breeze-rmm/rdpgfx/internal/gfx"
)

// Severity buckets an error the way the session classifies and propagates
// it (spec.md §7 "Error Handling Design"): only Fatal ever reaches the
// cancellation token.
type Severity int

const (
	// SeverityRecoverable errors are swallowed and counted in metrics; they
	// never propagate past the frame pipeline executor.
	SeverityRecoverable Severity = iota
	// SeverityClipboardTransient errors reach the peer as a negative PDU
	// response and never terminate the session.
	SeverityClipboardTransient
	// SeverityFileTransfer errors clean up the FileTransfer object and
	// respond with failure, without terminating the session.
	SeverityFileTransfer
	// SeverityFatal errors propagate through the Cancel token and
	// terminate all three executors.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityRecoverable:
		return "recoverable"
	case SeverityClipboardTransient:
		return "clipboard_transient"
	case SeverityFileTransfer:
		return "file_transfer"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify assigns err to one of spec.md §7's four error-kind buckets by
// matching against the gfx/clipboard packages' sentinel errors. Unrecognized
// errors are treated as Fatal, matching the spec's "propagation policy"
// default of terminating rather than silently continuing on an error this
// core doesn't understand.
func Classify(err error) Severity {
	if err == nil {
		return SeverityRecoverable
	}

	switch {
	case errors.Is(err, gfx.ErrRateBucketEmpty),
		errors.Is(err, gfx.ErrFingerprintUnchanged),
		errors.Is(err, gfx.ErrDamageOverflow),
		errors.Is(err, gfx.ErrEncoderRecoverable):
		return SeverityRecoverable

	case errors.Is(err, clipboard.ErrUnknownFormat),
		errors.Is(err, clipboard.ErrConversionFailed),
		errors.Is(err, clipboard.ErrTransferTimeout),
		errors.Is(err, clipboard.ErrSizeLimitExceeded),
		errors.Is(err, clipboard.ErrInvalidTransition):
		return SeverityClipboardTransient

	case errors.Is(err, clipboard.ErrUnknownTransfer),
		errors.Is(err, clipboard.ErrTransferClosed),
		errors.Is(err, clipboard.ErrUnsafePath):
		return SeverityFileTransfer

	case errors.Is(err, gfx.ErrUnsupportedPixelFormat),
		errors.Is(err, gfx.ErrInvalidStride),
		errors.Is(err, gfx.ErrEncoderInit),
		errors.Is(err, gfx.ErrEncoderFatal),
		errors.Is(err, gfx.ErrSourceLost):
		return SeverityFatal

	default:
		return SeverityFatal
	}
}

// IsFatal reports whether err should trigger session shutdown.
func IsFatal(err error) bool {
	return err != nil && Classify(err) == SeverityFatal
}
