package symbol

import (
	"fmt"
	"image/color"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa, or "none" for a transparent color.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "none" || s == "" {
		return color.RGBA{}, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	// straight alpha in, premultiplied out
	r, g, b, a := uint8(v>>24), uint8(v>>16), uint8(v>>8), uint8(v)
	return premultiply(r, g, b, a), nil
}

// FormatColor is the inverse of ParseColor.
func FormatColor(c color.RGBA) string {
	if c.A == 0 {
		return "none"
	}
	r, g, b := unpremultiply(c.R, c.A), unpremultiply(c.G, c.A), unpremultiply(c.B, c.A)
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", r, g, b)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", r, g, b, c.A)
}

func premultiply(r, g, b, a uint8) color.RGBA {
	m := func(v uint8) uint8 { return uint8((uint32(v)*uint32(a) + 127) / 255) }
	return color.RGBA{R: m(r), G: m(g), B: m(b), A: a}
}

func unpremultiply(v, a uint8) uint8 {
	if a == 0 {
		return 0
	}
	x := (uint32(v)*255 + uint32(a)/2) / uint32(a)
	if x > 255 {
		x = 255
	}
	return uint8(x)
}

var rgbaType = reflect.TypeOf(color.RGBA{})

func colorHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != rgbaType || from.Kind() != reflect.String {
		return data, nil
	}
	return ParseColor(data.(string))
}

var _ mapstructure.DecodeHookFuncType = colorHook

// paint maps a transparent color to nil so the surface skips it.
func paint(c color.RGBA) color.Color {
	if c.A == 0 {
		return nil
	}
	return c
}
