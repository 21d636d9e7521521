package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadOriID is returned for identifiers not shaped "<pageIndex-1>,<areaIndex>"
var ErrBadOriID = errors.New("layout: malformed ori_id")

// OriID builds the stable block key for a 1-based page and an area index
func OriID(page, area int) string {
	return strconv.Itoa(page-1) + "," + strconv.Itoa(area)
}

// ParseOriID splits an ori_id into a 1-based page and an area index
func ParseOriID(id string) (page, area int, err error) {
	p, a, ok := strings.Cut(strings.TrimSpace(id), ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadOriID, id)
	}
	pi, err1 := strconv.Atoi(strings.TrimSpace(p))
	ai, err2 := strconv.Atoi(strings.TrimSpace(a))
	if err1 != nil || err2 != nil || pi < 0 || ai < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadOriID, id)
	}
	return pi + 1, ai, nil
}

// MergeEntry describes blocks that continue one another across pages
type MergeEntry struct {
	OriID   []string  `json:"ori_id"`
	Type    BlockType `json:"type"`
	Content string    `json:"content"`
	HTML    string    `json:"html,omitempty"`
}

// MergeMap maps an ori_id to the merged unit it belongs to. It is supplied by the document
// loader and never modified by the engines.
type MergeMap map[string]MergeEntry

// LoadMergeMap decodes a merge map from JSON
func LoadMergeMap(data []byte) (MergeMap, error) {
	var m MergeMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode merge map: %w", err)
	}
	return m, nil
}

// Lookup returns the merged entry for id
func (m MergeMap) Lookup(id string) (MergeEntry, bool) {
	if m == nil {
		return MergeEntry{}, false
	}
	e, ok := m[id]
	return e, ok
}

// Group returns every ori_id sharing a merge group with id, id included.
// Without an entry the group is just id.
func (m MergeMap) Group(id string) []string {
	e, ok := m.Lookup(id)
	if !ok || len(e.OriID) == 0 {
		return []string{id}
	}
	group := append([]string(nil), e.OriID...)
	for _, g := range group {
		if g == id {
			return group
		}
	}
	return append(group, id)
}
