package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	placeholderWidth  = 1280
	placeholderHeight = 720
)

// PlaceholderImage renders a diagnostic PNG for sessions that cannot capture
// the screen (headless agents, denied permissions). The card carries enough
// context for a reviewer to understand why no real screenshot exists.
func PlaceholderImage(subjectID, reason string, at time.Time) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 0x1e, G: 0x29, B: 0x3b, A: 0xff}), image.Point{}, draw.Src)

	lines := []string{
		"SCREEN CAPTURE UNAVAILABLE",
		"",
		fmt.Sprintf("subject: %s", subjectID),
		fmt.Sprintf("reason:  %s", reason),
		fmt.Sprintf("time:    %s", at.UTC().Format(time.RFC3339)),
	}

	face := basicfont.Face7x13
	y := placeholderHeight/2 - len(lines)*face.Height
	for _, line := range lines {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.RGBA{R: 0xe2, G: 0xe8, B: 0xf0, A: 0xff}),
			Face: face,
			Dot:  fixed.P(placeholderWidth/2-len(line)*face.Advance/2, y),
		}
		d.DrawString(line)
		y += face.Height * 2
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("capture: encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
