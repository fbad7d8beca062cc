package clipboard

import "errors"

var (
	ErrInvalidTransition = errors.New("clipboard: invalid state transition")
	ErrContentTooLarge   = errors.New("clipboard: content exceeds configured maximum")
	ErrUnknownFormat     = errors.New("clipboard: unknown or unnegotiated format")
	ErrUnknownTransfer   = errors.New("clipboard: unknown transfer id")
	ErrTransferClosed    = errors.New("clipboard: transfer already closed")
	ErrUnsafePath        = errors.New("clipboard: file path failed sanitization")
	ErrConversionFailed  = errors.New("clipboard: format conversion failed")
	ErrTransferTimeout   = errors.New("clipboard: transfer timed out")
	ErrSizeLimitExceeded = errors.New("clipboard: size limit exceeded")
)
