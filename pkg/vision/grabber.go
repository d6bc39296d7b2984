package vision

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// DisplayGrabber captures a whole display. Display 0 is the primary one.
type DisplayGrabber struct {
	Display int
}

// Grab captures the configured display.
func (g DisplayGrabber) Grab() (image.Image, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, errors.New("no active displays")
	}
	if g.Display < 0 || g.Display >= n {
		return nil, fmt.Errorf("display %d out of range (%d active)", g.Display, n)
	}

	img, err := screenshot.CaptureDisplay(g.Display)
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %d: %w", g.Display, err)
	}
	return img, nil
}
