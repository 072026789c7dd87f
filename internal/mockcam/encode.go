package mockcam

import (
	"fmt"

	webcamcapture "github.com/e7canasta/orion-care-sensor/modules/webcam-capture"
)

// bars are the eight SMPTE-style color bars, RGB
var bars = [8][3]byte{
	{255, 255, 255}, // white
	{255, 255, 0},   // yellow
	{0, 255, 255},   // cyan
	{0, 255, 0},     // green
	{255, 0, 255},   // magenta
	{255, 0, 0},     // red
	{0, 0, 255},     // blue
	{0, 0, 0},       // black
}

// ColorBars renders an RGBA frame of vertical bars, rotated by shift bars
func ColorBars(width, height, shift int) []byte {
	rgba := make([]byte, width*height*4)
	if width <= 0 {
		return rgba
	}
	for x := 0; x < width; x++ {
		c := bars[(x*len(bars)/width+shift)%len(bars)]
		for y := 0; y < height; y++ {
			i := (y*width + x) * 4
			rgba[i], rgba[i+1], rgba[i+2], rgba[i+3] = c[0], c[1], c[2], 255
		}
	}
	return rgba
}

// Solid renders an RGBA frame of one color
func Solid(width, height int, r, g, b byte) []byte {
	rgba := make([]byte, width*height*4)
	for i := 0; i < len(rgba); i += 4 {
		rgba[i], rgba[i+1], rgba[i+2], rgba[i+3] = r, g, b, 255
	}
	return rgba
}

// Encode converts an RGBA frame into a native encoding, tightly packed.
// YUY2 uses BT.601 studio range with chroma averaged over each pixel pair;
// odd-width rows end in a macro-pixel that repeats the last pixel.
func Encode(rgba []byte, width, height int, enc webcamcapture.Encoding, order webcamcapture.ChannelOrder) ([]byte, error) {
	if len(rgba) < width*height*4 {
		return nil, fmt.Errorf("mockcam: rgba frame has %d bytes, need %d", len(rgba), width*height*4)
	}
	n := width * height

	switch enc {
	case webcamcapture.EncodingRGB32:
		out := make([]byte, n*4)
		copy(out, rgba[:n*4])
		if order == webcamcapture.OrderBGR {
			webcamcapture.SwapRedBlue(out)
		}
		return out, nil

	case webcamcapture.EncodingRGB24:
		out := make([]byte, n*3)
		for i := 0; i < n; i++ {
			r, g, b := rgba[i*4], rgba[i*4+1], rgba[i*4+2]
			if order == webcamcapture.OrderBGR {
				r, b = b, r
			}
			out[i*3], out[i*3+1], out[i*3+2] = r, g, b
		}
		return out, nil

	case webcamcapture.EncodingYUY2:
		stride := (width + 1) / 2 * 4
		out := make([]byte, stride*height)
		for y := 0; y < height; y++ {
			row := rgba[y*width*4 : (y+1)*width*4]
			for x := 0; x < width; x += 2 {
				p0 := row[x*4 : x*4+4]
				p1 := p0
				if x+1 < width {
					p1 = row[x*4+4 : x*4+8]
				}
				y0, u0, v0 := rgbToYUV(p0[0], p0[1], p0[2])
				y1, u1, v1 := rgbToYUV(p1[0], p1[1], p1[2])
				o := out[y*stride+x*2 : y*stride+x*2+4]
				o[0], o[1], o[2], o[3] = y0, byte((int(u0)+int(u1)+1)/2), y1, byte((int(v0)+int(v1)+1)/2)
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("mockcam: cannot encode %s: %w", enc, webcamcapture.ErrUnsupportedEncoding)
	}
}

func rgbToYUV(r, g, b byte) (y, u, v byte) {
	R, G, B := int(r), int(g), int(b)
	y = byte(((66*R+129*G+25*B+128)>>8) + 16)
	u = byte(((-38*R-74*G+112*B+128)>>8) + 128)
	v = byte(((112*R-94*G-18*B+128)>>8) + 128)
	return y, u, v
}
