package compositor

import (
	"encoding/hex"
	"image/color"
	"strings"
)

// White is the default map background.
var White = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// ParseBGColor reads a WMS BGCOLOR value (0xRRGGBB, prefix optional). Empty
// or malformed values fall back to White.
func ParseBGColor(s string) color.RGBA {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if len(s) != 6 {
		return White
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return White
	}
	return color.RGBA{R: b[0], G: b[1], B: b[2], A: 0xff}
}

// ParseTransparent reads a WMS TRANSPARENT value; only TRUE (any case) is true.
func ParseTransparent(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}
