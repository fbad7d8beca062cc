package clipboard

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf16"
)

// normalizeToCRLF rewrites any lone "\n" or "\r" line ending to "\r\n",
// leaving existing "\r\n" pairs untouched (spec.md §4.6 "CRLF line
// endings").
func normalizeToCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// normalizeToLF collapses "\r\n" back to "\n", the canonical in-core
// representation content is compared/hashed against.
func normalizeToLF(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// unicodeTextBOM is the UTF-16LE byte order mark CF_UNICODETEXT payloads
// carry (spec.md §4.6 "UTF-16LE with BOM").
var unicodeTextBOM = [2]byte{0xFF, 0xFE}

// EncodeUnicodeText packs s as CF_UNICODETEXT: a UTF-16LE BOM, CRLF-
// normalized line endings, and a terminating NUL.
func EncodeUnicodeText(s string) []byte {
	s = normalizeToCRLF(s)
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 0, (len(units)+1)*2+2)
	buf = append(buf, unicodeTextBOM[0], unicodeTextBOM[1])
	for _, u := range units {
		buf = append(buf, byte(u), byte(u>>8))
	}
	return append(buf, 0, 0)
}

// DecodeUnicodeText reverses EncodeUnicodeText: strips a leading BOM if
// present, stops at the NUL terminator (tolerating a missing one), and
// collapses CRLF back to LF.
func DecodeUnicodeText(data []byte) (string, error) {
	if len(data)%2 != 0 {
		return "", fmt.Errorf("clipboard: CF_UNICODETEXT payload has odd length %d", len(data))
	}
	if len(data) >= 2 && data[0] == unicodeTextBOM[0] && data[1] == unicodeTextBOM[1] {
		data = data[2:]
	}
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		u := uint16(data[i]) | uint16(data[i+1])<<8
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return normalizeToLF(string(utf16.Decode(units))), nil
}

// EncodeText packs s as CF_TEXT: ASCII/Latin-1 with a terminating NUL.
// Non-Latin-1 runes are replaced with '?', matching how a real Windows
// clipboard degrades Unicode content offered only as CF_TEXT.
func EncodeText(s string) []byte {
	buf := make([]byte, 0, len(s)+1)
	for _, r := range s {
		if r > 0xFF {
			r = '?'
		}
		buf = append(buf, byte(r))
	}
	return append(buf, 0)
}

func DecodeText(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}

// bitmapFileHeaderSize is the 14-byte BITMAPFILEHEADER a CF_DIB payload
// omits (CF_DIB starts at BITMAPINFOHEADER); callers reconstituting a
// standalone .bmp file need to prepend one.
const bitmapFileHeaderSize = 14

// WrapDIBAsBMP prepends a minimal BITMAPFILEHEADER to a CF_DIB payload so
// it can be written out as a standalone .bmp file.
func WrapDIBAsBMP(dib []byte) []byte {
	if len(dib) < 4 {
		return dib
	}
	fileSize := uint32(bitmapFileHeaderSize + len(dib))
	// BITMAPINFOHEADER.biBitCount is at offset 14, biClrUsed at offset 32;
	// the pixel data offset is header + palette, which for the common
	// uncompressed case is just the header size unless a palette is
	// present. This core only needs a best-effort reconstruction for local
	// display, not a fully general BMP writer.
	headerSize := le32(dib[0:4])
	pixelOffset := bitmapFileHeaderSize + headerSize

	out := make([]byte, 0, bitmapFileHeaderSize+len(dib))
	out = append(out, 'B', 'M')
	out = append(out, putLE32(fileSize)...)
	out = append(out, 0, 0, 0, 0) // reserved
	out = append(out, putLE32(pixelOffset)...)
	out = append(out, dib...)
	return out
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
