package gstcam

import (
	"fmt"
	"strconv"
	"strings"
)

// Fraction is a GStreamer fraction value (e.g. 30000/1001)
type Fraction struct {
	Num int
	Den int
}

// Float returns the fraction as a float, 0 for a zero denominator
func (f Fraction) Float() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// RateRange is a closed frame-rate interval. Discrete rates have Min == Max.
type RateRange struct {
	Min Fraction
	Max Fraction
}

// Format is one fixed raw video mode a source can produce
type Format struct {
	// Name is the GStreamer raw format name (YUY2, RGB, BGRx, NV12, ...)
	Name   string
	Width  int
	Height int
	Rates  []RateRange
	// Caps is the caps structure this format was parsed from
	Caps string
}

// ParseCaps extracts the fixed-size video/x-raw formats from a caps string
// as printed by gst_caps_to_string.
//
// Structures with a width or height range (unfixed caps), other media types
// (image/jpeg, video/x-h264) and memory-featured caps are skipped. A format
// list expands into one Format per name.
func ParseCaps(caps string) []Format {
	var formats []Format
	for _, structure := range splitTopLevel(caps, ';') {
		structure = strings.TrimSpace(structure)
		if structure == "" {
			continue
		}

		parts := splitTopLevel(structure, ',')
		if strings.TrimSpace(parts[0]) != "video/x-raw" {
			continue
		}

		fields := make(map[string]string, len(parts)-1)
		for _, p := range parts[1:] {
			key, value, ok := strings.Cut(p, "=")
			if !ok {
				continue
			}
			fields[strings.TrimSpace(key)] = stripType(value)
		}

		width, errW := strconv.Atoi(fields["width"])
		height, errH := strconv.Atoi(fields["height"])
		if errW != nil || errH != nil || width <= 0 || height <= 0 {
			continue
		}

		rates := parseRates(fields["framerate"])
		for _, name := range parseList(fields["format"]) {
			formats = append(formats, Format{
				Name:   name,
				Width:  width,
				Height: height,
				Rates:  rates,
				Caps:   structure,
			})
		}
	}
	return formats
}

// BuildCaps returns the capsfilter string that pins a source to format at a
// frame rate within ±1 fps of rate. The window tolerates devices that
// report 29.97 for a requested 30.
func BuildCaps(name string, width, height int, rate Fraction) string {
	caps := fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d", name, width, height)
	if rate.Num <= 0 || rate.Den <= 0 {
		return caps
	}

	const den = 1000
	fps := rate.Float()
	lo := int((fps - 1) * den)
	if lo < 0 {
		lo = 0
	}
	hi := int((fps + 1) * den)
	return caps + fmt.Sprintf(",framerate=[ %d/%d, %d/%d ]", lo, den, hi, den)
}

// stripType removes a leading "(type)" annotation and surrounding spaces
func stripType(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "(") {
		if end := strings.Index(value, ")"); end >= 0 {
			value = strings.TrimSpace(value[end+1:])
		}
	}
	return value
}

// parseList returns the members of a "{ a, b }" list, or the single value
func parseList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if !strings.HasPrefix(value, "{") {
		return []string{strings.Trim(value, `"`)}
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(value, "{"), "}")
	var out []string
	for _, item := range splitTopLevel(inner, ',') {
		item = strings.Trim(stripType(item), `"`)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseRates understands a single fraction, a "{ a, b }" list and a
// "[ min, max ]" range
func parseRates(value string) []RateRange {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "[") {
		bounds := splitTopLevel(strings.TrimSuffix(strings.TrimPrefix(value, "["), "]"), ',')
		if len(bounds) != 2 {
			return nil
		}
		lo, okLo := parseFraction(bounds[0])
		hi, okHi := parseFraction(bounds[1])
		if !okLo || !okHi {
			return nil
		}
		return []RateRange{{Min: lo, Max: hi}}
	}

	var rates []RateRange
	for _, item := range parseList(value) {
		if f, ok := parseFraction(item); ok {
			rates = append(rates, RateRange{Min: f, Max: f})
		}
	}
	return rates
}

func parseFraction(s string) (Fraction, bool) {
	num, den, ok := strings.Cut(stripType(s), "/")
	if !ok {
		return Fraction{}, false
	}
	n, errN := strconv.Atoi(strings.TrimSpace(num))
	d, errD := strconv.Atoi(strings.TrimSpace(den))
	if errN != nil || errD != nil || d <= 0 {
		return Fraction{}, false
	}
	return Fraction{Num: n, Den: d}, true
}

// splitTopLevel splits s on sep outside of {}, [], () and <> groups
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '[', '(', '<':
			depth++
		case '}', ']', ')', '>':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
