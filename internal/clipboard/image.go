package clipboard

import (
	"bytes"
	"fmt"
	"image/png"

	"golang.org/x/image/bmp"
)

// PNGToDIB converts PNG-encoded bytes to a CF_DIB payload (BITMAPINFOHEADER
// + bottom-up BGR rows). bmp.Encode already produces that row order for a
// device-independent bitmap; CF_DIB is a standalone BMP file with its
// 14-byte BITMAPFILEHEADER stripped off (spec.md §4.6 "image/png ⇄ CF_DIB").
func PNGToDIB(pngBytes []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: png decode: %v", ErrConversionFailed, err)
	}

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: bmp encode: %v", ErrConversionFailed, err)
	}
	bmpBytes := buf.Bytes()
	if len(bmpBytes) < bitmapFileHeaderSize {
		return nil, fmt.Errorf("%w: encoded bitmap shorter than its file header", ErrConversionFailed)
	}
	return bmpBytes[bitmapFileHeaderSize:], nil
}

// DIBToPNG reverses PNGToDIB: it prepends the BITMAPFILEHEADER a CF_DIB
// payload omits so bmp.Decode can parse it, then re-encodes as PNG. Alpha
// is preserved when the source DIB carries a 32bpp alpha channel; bmp.Decode
// handles that via its own BITMAPINFOHEADER inspection.
func DIBToPNG(dib []byte) ([]byte, error) {
	bmpBytes := WrapDIBAsBMP(dib)

	img, err := bmp.Decode(bytes.NewReader(bmpBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: bmp decode: %v", ErrConversionFailed, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: png encode: %v", ErrConversionFailed, err)
	}
	return buf.Bytes(), nil
}

// decodedImageDims is a small helper exercised by tests to confirm a PNG
// round trip preserved pixel dimensions without decoding twice in the
// test itself.
func decodedImageDims(pngBytes []byte) (w, h int, err error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(pngBytes))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
