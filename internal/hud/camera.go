package hud

import (
	"math"

	"github.com/Garsondee/Squad-Tactics/internal/game"
)

// Zoom limits.
const (
	ZoomMin = 0.5
	ZoomMax = 8.0
)

// Camera maps world units onto a viewport of ViewW x ViewH pixels (or
// cells). X and Y are the world position at the viewport centre.
type Camera struct {
	X, Y          float64
	Zoom          float64
	ViewW, ViewH  float64
	PixelsPerUnit float64 // at zoom 1 the whole bounds fit the viewport
}

// NewCamera centres on bounds at zoom 1.
func NewCamera(bounds game.Rect, viewW, viewH float64) Camera {
	ppu := 1.0
	if bounds.W > 0 && bounds.H > 0 {
		ppu = math.Min(viewW/bounds.W, viewH/bounds.H)
	}
	c := bounds.Center()
	return Camera{X: c.X, Y: c.Y, Zoom: 1, ViewW: viewW, ViewH: viewH, PixelsPerUnit: ppu}
}

// Scale is the number of pixels per world unit at the current zoom.
func (c Camera) Scale() float64 { return c.PixelsPerUnit * c.Zoom }

// WorldToScreen projects a world position into viewport coordinates.
func (c Camera) WorldToScreen(p game.Vec2) (float64, float64) {
	s := c.Scale()
	return (p.X-c.X)*s + c.ViewW/2, (p.Y-c.Y)*s + c.ViewH/2
}

// ScreenToWorld is the inverse of WorldToScreen.
func (c Camera) ScreenToWorld(sx, sy float64) game.Vec2 {
	s := c.Scale()
	return game.V2((sx-c.ViewW/2)/s+c.X, (sy-c.ViewH/2)/s+c.Y)
}

// Pan moves the view by a screen-space delta.
func (c *Camera) Pan(dx, dy float64) {
	s := c.Scale()
	c.X += dx / s
	c.Y += dy / s
}

// ZoomBy multiplies the zoom, clamped to [ZoomMin, ZoomMax].
func (c *Camera) ZoomBy(f float64) {
	c.Zoom = math.Max(ZoomMin, math.Min(ZoomMax, c.Zoom*f))
}

// Clamp keeps the view centre inside bounds.
func (c *Camera) Clamp(bounds game.Rect) {
	c.X = math.Max(bounds.X, math.Min(bounds.X+bounds.W, c.X))
	c.Y = math.Max(bounds.Y, math.Min(bounds.Y+bounds.H, c.Y))
}
