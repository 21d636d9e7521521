package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RefKind tags the variant held by a ContentRef
type RefKind int

const (
	RefNone   RefKind = iota // no content
	RefSingle                // one line id
	RefList                  // several line ids
	RefNested                // sub-references, each with its own content and blocks
)

// ContentRef points a block at the lines that make up its text.
// In JSON it appears as a bare id, an array of ids, or an array of {content, blocks} objects.
type ContentRef struct {
	Kind   RefKind
	ID     int
	IDs    []int
	Nested []NestedRef
}

// NestedRef is one element of a nested content reference
type NestedRef struct {
	Content ContentRef   `json:"content"`
	Blocks  []ContentRef `json:"blocks,omitempty"`
}

// Single references one line
func Single(id int) ContentRef { return ContentRef{Kind: RefSingle, ID: id} }

// List references several lines in order
func List(ids ...int) ContentRef { return ContentRef{Kind: RefList, IDs: ids} }

// Nested references sub-blocks
func Nested(refs ...NestedRef) ContentRef { return ContentRef{Kind: RefNested, Nested: refs} }

// LineIDs flattens the reference into line ids, in reading order
func (c ContentRef) LineIDs() []int {
	switch c.Kind {
	case RefNone:
		return nil
	case RefSingle:
		return []int{c.ID}
	case RefList:
		return append([]int(nil), c.IDs...)
	case RefNested:
		var ids []int
		for _, n := range c.Nested {
			ids = append(ids, n.Content.LineIDs()...)
			for _, b := range n.Blocks {
				ids = append(ids, b.LineIDs()...)
			}
		}
		return ids
	}
	panic(fmt.Sprintf("layout: unknown content ref kind %d", c.Kind))
}

// UnmarshalJSON accepts all three wire shapes
func (c *ContentRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ContentRef{}
		return nil
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if len(raw) == 0 {
			*c = List()
			return nil
		}
		if t := bytes.TrimSpace(raw[0]); len(t) > 0 && t[0] == '{' {
			var nested []NestedRef
			if err := json.Unmarshal(data, &nested); err != nil {
				return fmt.Errorf("nested content: %w", err)
			}
			*c = Nested(nested...)
			return nil
		}
		var ids []int
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("content id list: %w", err)
		}
		*c = List(ids...)
		return nil
	case '{':
		var n NestedRef
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("nested content: %w", err)
		}
		*c = Nested(n)
		return nil
	}

	var id int
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("content id: %w", err)
	}
	*c = Single(id)
	return nil
}

// MarshalJSON writes the variant back in its wire shape
func (c ContentRef) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case RefSingle:
		return json.Marshal(c.ID)
	case RefList:
		if c.IDs == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.IDs)
	case RefNested:
		return json.Marshal(c.Nested)
	}
	return []byte("null"), nil
}
