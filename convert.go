package webcamcapture

import (
	"fmt"
)

// Converter converts native pixel groups into RGBA8888.
//
// A group is the smallest unit of the source encoding: one pixel for RGB32
// and RGB24, one two-pixel macro-pixel for YUY2.
type Converter struct {
	// Encoding is the source encoding this converter reads
	Encoding Encoding
	// GroupBytes is the number of source bytes consumed per group
	GroupBytes int
	// GroupPixels is the number of RGBA pixels produced per group
	GroupPixels int

	fn func(src, dst []byte, off int)
	// tail converts the trailing partial group of a row (odd-width YUY2)
	tail func(src, dst []byte, off int)
}

// converters is the dispatch table, resolved once per negotiated format.
// NV12 is deliberately absent.
var converters = map[Encoding]Converter{
	EncodingRGB32: {Encoding: EncodingRGB32, GroupBytes: 4, GroupPixels: 1, fn: ConvertRGB32},
	EncodingRGB24: {Encoding: EncodingRGB24, GroupBytes: 3, GroupPixels: 1, fn: ConvertRGB24},
	EncodingYUY2:  {Encoding: EncodingYUY2, GroupBytes: 4, GroupPixels: 2, fn: ConvertYUY2, tail: ConvertYUY2Tail},
}

// Convertible reports whether a converter exists for the encoding
func (e Encoding) Convertible() bool {
	_, ok := converters[e]
	return ok
}

// ConverterFor returns the converter bound to an encoding.
//
// Returns ErrUnsupportedEncoding for NV12 and unrecognized encodings.
func ConverterFor(e Encoding) (Converter, error) {
	c, ok := converters[e]
	if !ok {
		return Converter{}, fmt.Errorf("webcam-capture: no converter for %s: %w", e, ErrUnsupportedEncoding)
	}
	return c, nil
}

// RowBytes returns the minimum number of source bytes in one row of width
// pixels. A trailing partial group still occupies a whole group.
func (c Converter) RowBytes(width int) int {
	return (width + c.GroupPixels - 1) / c.GroupPixels * c.GroupBytes
}

// ConvertRow converts one row of width pixels from src into dst (RGBA).
//
// Every output pixel is written. For odd-width YUY2 the last pixel comes
// from Y0 of the padded final macro-pixel.
func (c Converter) ConvertRow(src, dst []byte, width int) {
	groups := width / c.GroupPixels
	step := c.GroupPixels * 4
	for g := 0; g < groups; g++ {
		c.fn(src[g*c.GroupBytes:], dst, g*step)
	}
	if width%c.GroupPixels != 0 {
		c.tail(src[groups*c.GroupBytes:], dst, groups*step)
	}
}

// ConvertFrame converts a full native frame row by row.
//
// srcStride is the distance in bytes between source rows (>= RowBytes).
// dst must hold width*height*4 bytes.
func ConvertFrame(c Converter, src []byte, srcStride int, dst []byte, width, height int) error {
	rowBytes := c.RowBytes(width)
	if width <= 0 || height <= 0 || srcStride < rowBytes {
		return fmt.Errorf("webcam-capture: bad frame geometry %dx%d stride %d: %w", width, height, srcStride, ErrInvalidParameters)
	}
	if need := srcStride*(height-1) + rowBytes; len(src) < need {
		return fmt.Errorf("webcam-capture: short sample (%d bytes, need %d): %w", len(src), need, ErrStreamFault)
	}
	dstStride := width * 4
	if len(dst) < dstStride*height {
		return fmt.Errorf("webcam-capture: intermediate buffer too small (%d bytes, need %d): %w", len(dst), dstStride*height, ErrInvalidParameters)
	}

	for y := 0; y < height; y++ {
		c.ConvertRow(src[y*srcStride:], dst[y*dstStride:(y+1)*dstStride], width)
	}
	return nil
}

// sourceStride derives the row stride of a sample of dataLen bytes.
// Backends may pad rows (GStreamer aligns RGB24 rows to 4 bytes), so the
// stride is whatever evenly spreads the sample over height rows.
func sourceStride(dataLen, rowBytes, height int) (int, bool) {
	if height <= 0 || dataLen < rowBytes*height {
		return 0, false
	}
	return dataLen / height, true
}

// ConvertRGB32 copies one 32-bit pixel into dst at byte offset off
func ConvertRGB32(src, dst []byte, off int) {
	dst[off] = src[0]
	dst[off+1] = src[1]
	dst[off+2] = src[2]
	dst[off+3] = src[3]
}

// ConvertRGB24 copies one 24-bit pixel into dst at byte offset off with opaque alpha
func ConvertRGB24(src, dst []byte, off int) {
	dst[off] = src[0]
	dst[off+1] = src[1]
	dst[off+2] = src[2]
	dst[off+3] = 255
}

// ConvertYUY2 decodes one macro-pixel (Y0 Cb Y1 Cr) into two RGBA pixels
// written at dst[off:off+8]
func ConvertYUY2(src, dst []byte, off int) {
	y0, cb, y1, cr := int(src[0]), int(src[1]), int(src[2]), int(src[3])
	yuvToRGBA(y0, cb, cr, dst[off:off+4])
	yuvToRGBA(y1, cb, cr, dst[off+4:off+8])
}

// ConvertYUY2Tail decodes only the first pixel (Y0 Cb Cr) of a macro-pixel
// into dst[off:off+4]. Used for the last pixel of odd-width rows.
func ConvertYUY2Tail(src, dst []byte, off int) {
	yuvToRGBA(int(src[0]), int(src[1]), int(src[3]), dst[off:off+4])
}

// yuvToRGBA applies the fixed-point BT.601 studio-range transform:
//
//	|R|   |1.164  0.000  1.596|   |Y-16 |
//	|G| = |1.164 -0.391 -0.813| * |Cb-128|
//	|B|   |1.164  2.018  0.000|   |Cr-128|
func yuvToRGBA(y, cb, cr int, px []byte) {
	c := y - 16
	d := cb - 128
	e := cr - 128

	px[0] = clamp8((298*c + 409*e + 128) >> 8)
	px[1] = clamp8((298*c - 100*d - 208*e + 128) >> 8)
	px[2] = clamp8((298*c + 516*d + 128) >> 8)
	px[3] = 255
}

func clamp8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// SwapRedBlue swaps byte 0 and byte 2 of every 4-byte pixel in place,
// turning BGRA into RGBA (and back)
func SwapRedBlue(buf []byte) {
	for i := 0; i+3 < len(buf); i += 4 {
		buf[i], buf[i+2] = buf[i+2], buf[i]
	}
}
