package webcamcapture

import (
	"encoding/binary"
	"fmt"
)

// Resample scales an RGBA frame with nearest-neighbor sampling.
//
// Destination pixel (x, y) takes source pixel
// (y*srcH/dstH)*srcW + x*srcW/dstW, using integer division. Works for both
// downscaling and upscaling. No interpolation.
//
// The caller guarantees srcW, srcH, dstW, dstH > 0 and buffers of at least
// srcW*srcH*4 and dstW*dstH*4 bytes; see ResampleChecked.
func Resample(src []byte, srcW, srcH int, dst []byte, dstW, dstH int) {
	for y := 0; y < dstH; y++ {
		row := (y * srcH / dstH) * srcW
		out := dst[y*dstW*4 : (y+1)*dstW*4]
		for x := 0; x < dstW; x++ {
			i := (row + x*srcW/dstW) * 4
			// Whole-pixel copy, byte order irrelevant
			binary.LittleEndian.PutUint32(out[x*4:], binary.LittleEndian.Uint32(src[i:]))
		}
	}
}

// ResampleChecked validates dimensions and buffer sizes before calling Resample
func ResampleChecked(src []byte, srcW, srcH int, dst []byte, dstW, dstH int) error {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return fmt.Errorf("webcam-capture: resample %dx%d -> %dx%d: %w", srcW, srcH, dstW, dstH, ErrInvalidParameters)
	}
	if len(src) < srcW*srcH*4 {
		return fmt.Errorf("webcam-capture: resample source has %d bytes, need %d: %w", len(src), srcW*srcH*4, ErrInvalidParameters)
	}
	if len(dst) < dstW*dstH*4 {
		return fmt.Errorf("webcam-capture: resample destination has %d bytes, need %d: %w", len(dst), dstW*dstH*4, ErrInvalidParameters)
	}
	Resample(src, srcW, srcH, dst, dstW, dstH)
	return nil
}
