// File: internal/browser/geometry.go
package browser

import "github.com/xkilldash9x/pocketd/api/schemas"

// The vision model reasons in a fixed logical grid regardless of the real
// window size. Every coordinate it emits is scaled to viewport pixels before
// an input event is dispatched.

// ScalePoint maps a logical grid coordinate to viewport pixels. Inputs
// outside the grid are clamped to its edges first, so a slightly
// hallucinated coordinate still lands on the nearest visible point.
func ScalePoint(gridX, gridY float64) (float64, float64) {
	gx := clamp(gridX, 0, schemas.GridWidth)
	gy := clamp(gridY, 0, schemas.GridHeight)

	x := gx / schemas.GridWidth * schemas.ViewportWidth
	y := gy / schemas.GridHeight * schemas.ViewportHeight

	// Keep the result strictly inside the viewport; an event at exactly
	// width or height lands outside the page.
	return clamp(x, 0, schemas.ViewportWidth-1), clamp(y, 0, schemas.ViewportHeight-1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
