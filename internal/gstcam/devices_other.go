//go:build !linux && !darwin && !windows

package gstcam

// Enumerate reports no devices on platforms without a known camera source
func Enumerate() ([]Device, error) {
	return nil, ErrUnsupportedPlatform
}
