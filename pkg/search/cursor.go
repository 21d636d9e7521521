package search

import "sync"

// Cursor remembers where the previous and the current hit of a keyword start on a page
type Cursor struct {
	Prev int `json:"prev"`
	Curr int `json:"curr"`
}

// Cursors tracks one Cursor per page and keyword so find-next continues past the last hit
type Cursors struct {
	mu sync.Mutex
	m  map[int]map[string]*Cursor
}

// Get returns the cursor of keyword on page, and whether one exists
func (c *Cursors) Get(page int, keyword string) (Cursor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.m[page][keyword]
	if !ok {
		return Cursor{}, false
	}
	return *cur, true
}

// Next finds the hit after the current one. Without a cursor the scan starts at the top of
// the page. When no further hit exists the cursor is left as it was.
func (c *Cursors) Next(m *Matcher, page int, text []rune, keyword string) (MatchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[int]map[string]*Cursor)
	}
	if c.m[page] == nil {
		c.m[page] = make(map[string]*Cursor)
	}
	cur, ok := c.m[page][keyword]
	from := 0
	if ok {
		from = cur.Curr + 1
	}
	r, found := m.Search(text, keyword, from)
	if !found {
		return MatchResult{}, false
	}
	if !ok {
		cur = &Cursor{Prev: -1}
		c.m[page][keyword] = cur
	} else {
		cur.Prev = cur.Curr
	}
	cur.Curr = r.Index
	return r, true
}

// Reset forgets every cursor of page, or of all pages when page is 0
func (c *Cursors) Reset(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page == 0 {
		c.m = nil
		return
	}
	delete(c.m, page)
}
