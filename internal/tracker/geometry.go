package tracker

import "math"

// Viewport is one observed scroll sample: the window geometry plus the
// document regions tagged as sections, all in document coordinates.
type Viewport struct {
	ScrollTop      float64
	Height         float64
	DocumentHeight float64
	Sections       []Section
}

// Section is a tagged document region.
type Section struct {
	ID     string
	Title  string
	Top    float64
	Bottom float64
}

// ScrollDepth returns how far down the document the viewport bottom reaches,
// as a whole percentage clamped to 0..100.
func (v Viewport) ScrollDepth() int {
	if v.DocumentHeight <= 0 {
		return 0
	}
	depth := math.Round(100 * (v.ScrollTop + v.Height) / v.DocumentHeight)
	if depth < 0 {
		return 0
	}
	if depth > 100 {
		return 100
	}
	return int(depth)
}

// Visible reports whether the section's bounding box intersects the viewport.
func (v Viewport) Visible(s Section) bool {
	return s.Top < v.ScrollTop+v.Height && s.Bottom > v.ScrollTop
}
