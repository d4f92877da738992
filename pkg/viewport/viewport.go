// Package viewport maps between display space (content scaled to fit a widget)
// and original space (the pixel grid of the loaded image or video frame).
package viewport

import (
	"github.com/chewxy/math32"
	"github.com/cyclopcam/boxlabel/pkg/nn"
)

// Mapper converts points between display space and original space.
// The two axes are scaled independently, so a momentary aspect ratio mismatch
// during a resize is tolerated.
type Mapper struct {
	ContentWidth  int `json:"contentWidth"`  // Original pixel width of the loaded content
	ContentHeight int `json:"contentHeight"` // Original pixel height of the loaded content
	ScaledWidth   int `json:"scaledWidth"`   // Width of the content on screen
	ScaledHeight  int `json:"scaledHeight"`  // Height of the content on screen

	// The display area last given to Fit or SetScaled. New content is fitted into it.
	areaWidth  int
	areaHeight int
}

func NewMapper() *Mapper {
	return &Mapper{}
}

// HasContent is false until both the content and the display size are known
func (m *Mapper) HasContent() bool {
	return m.ContentWidth > 0 && m.ContentHeight > 0 && m.ScaledWidth > 0 && m.ScaledHeight > 0
}

// SetContent records the size of newly loaded content, and fits it into the last known
// display area. Until a display area is known, the scaled size is the content size.
func (m *Mapper) SetContent(width, height int) {
	m.ContentWidth = width
	m.ContentHeight = height
	if m.areaWidth > 0 && m.areaHeight > 0 {
		m.Fit(m.areaWidth, m.areaHeight)
		return
	}
	m.ScaledWidth = width
	m.ScaledHeight = height
}

// Clear forgets the content, so that mapping becomes the identity.
// The display area is kept for the next SetContent.
func (m *Mapper) Clear() {
	*m = Mapper{areaWidth: m.areaWidth, areaHeight: m.areaHeight}
}

// SetScaled sets the on-screen size of the content directly
func (m *Mapper) SetScaled(width, height int) {
	m.ScaledWidth = width
	m.ScaledHeight = height
	m.areaWidth = width
	m.areaHeight = height
}

// Fit scales the content to fit inside an area of the given size, preserving aspect ratio.
// If there is no content, the area size is recorded as is.
func (m *Mapper) Fit(areaWidth, areaHeight int) {
	if m.ContentWidth <= 0 || m.ContentHeight <= 0 || areaWidth <= 0 || areaHeight <= 0 {
		m.SetScaled(areaWidth, areaHeight)
		return
	}
	m.areaWidth = areaWidth
	m.areaHeight = areaHeight
	scale := min(float32(areaWidth)/float32(m.ContentWidth), float32(areaHeight)/float32(m.ContentHeight))
	m.ScaledWidth = max(1, int(math32.Round(float32(m.ContentWidth)*scale)))
	m.ScaledHeight = max(1, int(math32.Round(float32(m.ContentHeight)*scale)))
}

// Scale returns the factors that convert display distances into original distances
func (m *Mapper) Scale() (sx, sy float32) {
	if !m.HasContent() {
		return 1, 1
	}
	return float32(m.ContentWidth) / float32(m.ScaledWidth), float32(m.ContentHeight) / float32(m.ScaledHeight)
}

// ToOriginal converts a display point into integer original pixels.
// With no content loaded, the point is returned unchanged (rounded to integers).
func (m *Mapper) ToOriginal(p nn.PointF) nn.Point {
	sx, sy := m.Scale()
	return nn.PointF{X: p.X * sx, Y: p.Y * sy}.Round()
}

// ToDisplay converts an original point into display space
func (m *Mapper) ToDisplay(p nn.Point) nn.PointF {
	return m.ToDisplayF(p.Float())
}

// ToDisplayF converts a continuous original point (eg a rotated corner) into display space
func (m *Mapper) ToDisplayF(p nn.PointF) nn.PointF {
	sx, sy := m.Scale()
	return nn.PointF{X: p.X / sx, Y: p.Y / sy}
}
