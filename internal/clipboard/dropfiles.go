package clipboard

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf16"
)

// FileEntry is one file named in a CF_HDROP / FileGroupDescriptorW
// advertisement (spec.md §3 ClipboardContent.FileList).
type FileEntry struct {
	Name    string
	Size    uint64
	MtimeUs int64 // unix seconds
	Attrs   uint32
}

// dropfilesHeaderSize is sizeof(DROPFILES): pFiles(4) + pt(8) + fNC(4) +
// fWide(4).
const dropfilesHeaderSize = 20

// EncodeHDROP packs names as a CF_HDROP payload: a DROPFILES header
// pointing past itself, followed by a double-NUL-terminated list of
// NUL-terminated UTF-16LE file names (spec.md §4.6 "text/uri-list ⇄
// CF_HDROP").
func EncodeHDROP(names []string) []byte {
	out := make([]byte, dropfilesHeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], dropfilesHeaderSize) // pFiles
	// pt (8 bytes), fNC (4 bytes) left zero.
	binary.LittleEndian.PutUint32(out[16:20], 1) // fWide = TRUE

	for _, name := range names {
		for _, u := range utf16.Encode([]rune(name)) {
			out = append(out, byte(u), byte(u>>8))
		}
		out = append(out, 0, 0) // per-name NUL terminator
	}
	out = append(out, 0, 0) // list terminator (NUL empty string)
	return out
}

// DecodeHDROP reverses EncodeHDROP, returning the list of file names.
func DecodeHDROP(data []byte) ([]string, error) {
	if len(data) < dropfilesHeaderSize {
		return nil, fmt.Errorf("%w: CF_HDROP payload shorter than DROPFILES header", ErrConversionFailed)
	}
	pFiles := binary.LittleEndian.Uint32(data[0:4])
	fWide := binary.LittleEndian.Uint32(data[16:20]) != 0
	if int(pFiles) > len(data) {
		return nil, fmt.Errorf("%w: CF_HDROP pFiles offset out of range", ErrConversionFailed)
	}
	list := data[pFiles:]

	var names []string
	if fWide {
		units := bytesToUTF16(list)
		start := 0
		for i, u := range units {
			if u == 0 {
				if i == start {
					break // double-NUL: end of list
				}
				names = append(names, string(utf16.Decode(units[start:i])))
				start = i + 1
			}
		}
	} else {
		start := 0
		for i, b := range list {
			if b == 0 {
				if i == start {
					break
				}
				names = append(names, string(list[start:i]))
				start = i + 1
			}
		}
	}
	return names, nil
}

func bytesToUTF16(b []byte) []uint16 {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])|uint16(b[i+1])<<8)
	}
	return units
}

// fileDescriptorWSize is sizeof(FILEDESCRIPTORW): dwFlags(4) + clsid(16) +
// sizel(8) + pointl(8) + dwFileAttributes(4) + 3×FILETIME(8 each) +
// nFileSizeHigh(4) + nFileSizeLow(4) + cFileName[260](520).
const fileDescriptorWSize = 4 + 16 + 8 + 8 + 4 + 8 + 8 + 8 + 4 + 4 + 520

const maxFileNameWChars = 260

// fdAttributes and fdFileSize mirror FD_ATTRIBUTES / FD_FILESIZE in
// FILEDESCRIPTORW.dwFlags, the two fields this core actually populates.
const (
	fdAttributes uint32 = 0x00000004
	fdFileSize   uint32 = 0x00000040
)

// EncodeFileGroupDescriptorW packs entries as a FileGroupDescriptorW blob:
// a UINT count followed by one fixed-size FILEDESCRIPTORW record per entry
// (spec.md §4.6). Creation/access/write FILETIME fields are left zero; only
// name, size, and attributes are meaningful to this core's file-chunk
// streaming.
func EncodeFileGroupDescriptorW(entries []FileEntry) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(len(entries)))

	for _, e := range entries {
		rec := make([]byte, fileDescriptorWSize)
		flags := fdAttributes | fdFileSize
		binary.LittleEndian.PutUint32(rec[0:4], flags)
		binary.LittleEndian.PutUint32(rec[36:40], e.Attrs) // dwFileAttributes
		binary.LittleEndian.PutUint32(rec[64:68], uint32(e.Size>>32))
		binary.LittleEndian.PutUint32(rec[68:72], uint32(e.Size))

		nameOff := 72
		units := utf16.Encode([]rune(e.Name))
		if len(units) > maxFileNameWChars-1 {
			units = units[:maxFileNameWChars-1]
		}
		for i, u := range units {
			binary.LittleEndian.PutUint16(rec[nameOff+i*2:], u)
		}
		out = append(out, rec...)
	}
	return out
}

// DecodeFileGroupDescriptorW reverses EncodeFileGroupDescriptorW.
func DecodeFileGroupDescriptorW(data []byte) ([]FileEntry, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: FileGroupDescriptorW payload too short", ErrConversionFailed)
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	want := 4 + int(count)*fileDescriptorWSize
	if len(data) < want {
		return nil, fmt.Errorf("%w: FileGroupDescriptorW declares %d entries but payload is short", ErrConversionFailed, count)
	}

	entries := make([]FileEntry, 0, count)
	off := 4
	for i := 0; i < int(count); i++ {
		rec := data[off : off+fileDescriptorWSize]
		attrs := binary.LittleEndian.Uint32(rec[36:40])
		sizeHigh := binary.LittleEndian.Uint32(rec[64:68])
		sizeLow := binary.LittleEndian.Uint32(rec[68:72])
		size := uint64(sizeHigh)<<32 | uint64(sizeLow)

		nameUnits := bytesToUTF16(rec[72:])
		if nul := indexUint16(nameUnits, 0); nul >= 0 {
			nameUnits = nameUnits[:nul]
		}
		entries = append(entries, FileEntry{
			Name:  string(utf16.Decode(nameUnits)),
			Size:  size,
			Attrs: attrs,
		})
		off += fileDescriptorWSize
	}
	return entries, nil
}

func indexUint16(units []uint16, v uint16) int {
	for i, u := range units {
		if u == v {
			return i
		}
	}
	return -1
}

// SerializeFileList produces the deterministic name|size|mtime tuple
// serialization spec.md §4.6 requires for file-list content hashing: one
// line per entry, sorted by nothing (callers hash in advertisement order,
// since that order is itself part of what a round-trip must reproduce).
func SerializeFileList(entries []FileEntry) []byte {
	var out []byte
	for _, e := range entries {
		out = append(out, []byte(fmt.Sprintf("%s|%d|%d\n", e.Name, e.Size, e.MtimeUs))...)
	}
	return out
}

// fileEntryFromInfo is a small helper for adapting a local file's stat
// result into a FileEntry, used by the outbound FileContentsRequest path.
func fileEntryFromInfo(name string, size int64, mtime time.Time, attrs uint32) FileEntry {
	return FileEntry{Name: name, Size: uint64(size), MtimeUs: mtime.Unix(), Attrs: attrs}
}
