package webcamcapture

import (
	"math"
)

// Negotiate selects the native format closest to the desired resolution and
// checks that it can deliver desiredFPS.
//
// Selection rules:
//  1. The first candidate whose size equals the desired size wins outright
//  2. Otherwise only candidates at least as large as the desired size are
//     considered; a candidate replaces the running best when both its width
//     and height errors are below the best error so far, and the best error
//     becomes max(widthErr, heightErr)
//  3. The chosen format must offer a frame-rate range with
//     floor(min) <= desiredFPS <= ceil(max); the first such range is used
//  4. The chosen format's encoding must have a converter
//
// Rule 2 compares each axis against a single running error, so only the larger
// axis error matters: a candidate that is far off on one axis loses to one
// that is moderately off on both, even when its total or area error is
// smaller. Ties keep the earlier candidate. Callers rely on this exact
// ordering; do not change it.
//
// The negotiated frame rate is desiredFPS expressed as fpsNum/fpsDen.
func Negotiate(desiredW, desiredH int, fpsNum, fpsDen int, candidates []NativeFormat) (NegotiatedFormat, error) {
	if desiredW <= 0 || desiredH <= 0 || fpsNum <= 0 {
		return NegotiatedFormat{}, ErrInvalidParameters
	}
	if fpsDen <= 0 {
		fpsDen = 1
	}
	desiredFPS := float64(fpsNum) / float64(fpsDen)

	chosen, ok := pickResolution(desiredW, desiredH, candidates)
	if !ok {
		return NegotiatedFormat{}, &NegotiationError{
			Stage:      StageResolution,
			Width:      desiredW,
			Height:     desiredH,
			FPS:        desiredFPS,
			Candidates: len(candidates),
		}
	}

	fpsRange, ok := pickFrameRate(desiredFPS, chosen.FPSRanges)
	if !ok {
		return NegotiatedFormat{}, &NegotiationError{
			Stage:      StageFrameRate,
			Width:      desiredW,
			Height:     desiredH,
			FPS:        desiredFPS,
			Candidates: len(candidates),
			Chosen:     chosen,
		}
	}

	if !chosen.Encoding.Convertible() {
		return NegotiatedFormat{}, &NegotiationError{
			Stage:      StageEncoding,
			Width:      desiredW,
			Height:     desiredH,
			FPS:        desiredFPS,
			Candidates: len(candidates),
			Chosen:     chosen,
		}
	}

	return NegotiatedFormat{
		Width:    chosen.Width,
		Height:   chosen.Height,
		Encoding: chosen.Encoding,
		Order:    chosen.Order,
		FPSNum:   fpsNum,
		FPSDen:   fpsDen,
		FPSRange: fpsRange,
		Raw:      chosen.Raw,
	}, nil
}

// pickResolution applies rules 1 and 2 of Negotiate
func pickResolution(desiredW, desiredH int, candidates []NativeFormat) (NativeFormat, bool) {
	var best NativeFormat
	found := false
	bestErr := uint64(math.MaxUint64)

	for _, c := range candidates {
		if c.Width == desiredW && c.Height == desiredH {
			return c, true
		}

		if c.Width >= desiredW && c.Height >= desiredH {
			widthErr := uint64(c.Width - desiredW)
			heightErr := uint64(c.Height - desiredH)

			if widthErr < bestErr && heightErr < bestErr {
				best = c
				bestErr = max(widthErr, heightErr)
				found = true
			}
		}
	}

	return best, found
}

// pickFrameRate returns the first range admitting fps
func pickFrameRate(fps float64, ranges []FPSRange) (FPSRange, bool) {
	for _, r := range ranges {
		if r.Admits(fps) {
			return r, true
		}
	}
	return FPSRange{}, false
}
