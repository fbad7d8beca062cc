// Package clipboard implements the MS-RDPECLIP-style clipboard channel: a
// delayed-rendering state machine, loop prevention via content fingerprint,
// and chunked file transfer with path sanitization. Format ids and the
// state machine shape are grounded on the teacher's remote/clipboard and
// remote/filedrop packages, generalized from their WebRTC-specific wire
// encoding to this core's transport-agnostic Format/Content model.
package clipboard

// Format is a clipboard format identifier. Standard ids mirror the
// MS-RDPECLIP CLIPRDR_FORMAT registry; values above formatRegisteredBase
// are locally registered names (e.g. "HTML Format").
type Format uint32

const (
	FormatUnicodeText Format = 13 // CF_UNICODETEXT
	FormatText        Format = 1  // CF_TEXT
	FormatDIB         Format = 8  // CF_DIB
	FormatHDROP       Format = 15 // CF_HDROP (file list)

	// formatRegisteredBase is where this core assigns ids to named formats
	// it registers itself (HTML Format, FileGroupDescriptorW), mirroring
	// how MS-RDPECLIP negotiates registered format ids per session instead
	// of hardcoding them.
	formatRegisteredBase Format = 0xC000
	FormatHTML           Format = formatRegisteredBase + 1
	FormatFileGroupDescriptorW Format = formatRegisteredBase + 2
)

// RegisteredFormatName returns the MS-RDPECLIP registered format name for
// locally-assigned ids, or "" for standard ids that need no name exchange.
func RegisteredFormatName(f Format) string {
	switch f {
	case FormatHTML:
		return "HTML Format"
	case FormatFileGroupDescriptorW:
		return "FileGroupDescriptorW"
	default:
		return ""
	}
}

// FormatEntry is one entry of a format-list advertisement (spec.md §5
// "format advertisement").
type FormatEntry struct {
	ID   Format
	Name string // only set for registered formats
}

// Content is the clipboard payload for one format, decoded to a
// transport-agnostic shape. Exactly one of Text/Bytes/Files is meaningful,
// selected by Format.
type Content struct {
	Format Format
	Text   string   // FormatUnicodeText, FormatText, FormatHTML
	Bytes  []byte   // FormatDIB, raw bitmap payload
	Files  []string // FormatHDROP/FormatFileGroupDescriptorW: absolute paths staged locally
}
