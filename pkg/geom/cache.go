package geom

import "sync"

// RotationCache memoizes PositionByAngle per page, per position and per angle.
// Drag-move ticks query the same character boxes many times.
type RotationCache struct {
	mu    sync.Mutex
	pages map[int]map[string]map[Angle]Polygon
}

// NewRotationCache returns an empty cache
func NewRotationCache() *RotationCache {
	return &RotationCache{pages: make(map[int]map[string]map[Angle]Polygon)}
}

// Position returns pos rotated into the display frame of angle a on page.
func (c *RotationCache) Position(page int, f Frame, pos Polygon, a Angle) Polygon {
	if !pos.Valid() {
		return pos
	}
	key := pos.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	byKey, ok := c.pages[page]
	if !ok {
		byKey = make(map[string]map[Angle]Polygon)
		c.pages[page] = byKey
	}
	byAngle, ok := byKey[key]
	if !ok {
		byAngle = make(map[Angle]Polygon, 1)
		byKey[key] = byAngle
	}
	if rotated, ok := byAngle[a]; ok {
		return rotated
	}
	rotated := f.PositionByAngle(pos, a)
	byAngle[a] = rotated
	return rotated
}

// Len returns the number of cached positions for page
func (c *RotationCache) Len(page int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages[page])
}

// Invalidate drops everything cached for one page
func (c *RotationCache) Invalidate(page int) {
	c.mu.Lock()
	delete(c.pages, page)
	c.mu.Unlock()
}

// Clear drops the whole cache; call it whenever the page list changes
func (c *RotationCache) Clear() {
	c.mu.Lock()
	c.pages = make(map[int]map[string]map[Angle]Polygon)
	c.mu.Unlock()
}
