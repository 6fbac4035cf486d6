// Package overlay owns the persistent render slots of a cosmetic session and
// fills them with fresh geometry each frame.
package overlay

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Category is the cosmetic effect the overlay draws
type Category int

const (
	None Category = iota
	Lipstick
	Eyeliner
	Blush
)

func (c Category) String() string {
	switch c {
	case Lipstick:
		return "lipstick"
	case Eyeliner:
		return "eyeliner"
	case Blush:
		return "blush"
	default:
		return "none"
	}
}

// ParseCategory maps a product category name to a Category
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "lipstick", "lip", "lips":
		return Lipstick, nil
	case "eyeliner", "liner":
		return Eyeliner, nil
	case "blush", "cheek":
		return Blush, nil
	default:
		return None, fmt.Errorf("unknown cosmetic category %q", s)
	}
}

// Style is the color and opacity a slot is painted with
type Style struct {
	Color   color.RGBA
	Opacity float64
}

// DefaultStyle is the stock lipstick shade
var DefaultStyle = Style{Color: color.RGBA{R: 0x80, G: 0x00, B: 0x80, A: 0xff}, Opacity: 0.35}

// Scale returns s with its opacity multiplied by f
func (s Style) Scale(f float64) Style {
	s.Opacity = clamp01(s.Opacity * f)
	return s
}

// ParseColor parses a #rrggbb color
func ParseColor(s string) (color.RGBA, error) {
	hex, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok || len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// ParseStyle builds a Style from a #rrggbb color and an opacity, clamped
// to [0,1]
func ParseStyle(hex string, opacity float64) (Style, error) {
	c, err := ParseColor(hex)
	if err != nil {
		return Style{}, err
	}
	return Style{Color: c, Opacity: clamp01(opacity)}, nil
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
