package machine

import "image/color"

// Framebuffer geometry: 256 rows tall, 224 columns wide, as stored by the
// arcade board (the physical cabinet rotates this 90 degrees for display,
// which is a host presenter concern, not this package's).
const (
	ScreenWidth  = 224
	ScreenHeight = 256
)

// Score-area strip: the term shared by the R and B channel rules below,
// true over the score digits in the top band.
const (
	scoreStripY1 = 16
	scoreStripX0 = 16
	scoreStripX1 = 102
)

// ColorAt returns the fixed overlay color for display coordinate (x, y),
// matching the cabinet's physical colored-cellophane strips laid over an
// otherwise monochrome CRT. Each channel is on or off per its own rule:
//
//	R on if y >= 72 or (y < 16 and 16 <= x < 102)
//	G on unless 192 <= y < 224
//	B on if 72 <= y < 192, or y >= 224, or (y < 16 and 16 <= x < 102)
//
// alpha is always on.
func ColorAt(x, y int) color.RGBA {
	score := y < scoreStripY1 && x >= scoreStripX0 && x < scoreStripX1

	r := y >= 72 || score
	g := !(y >= 192 && y < 224)
	b := (y >= 72 && y < 192) || y >= 224 || score

	return color.RGBA{R: channelByte(r), G: channelByte(g), B: channelByte(b), A: 0xFF}
}

func channelByte(on bool) byte {
	if on {
		return 0xFF
	}
	return 0
}
