package layout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmark/pkg/geom"
)

const legacyDoc = `{
  "pages": [{
    "page_id": 1, "angle": 0, "width": 600, "height": 800, "image_url": "p1.png",
    "content": [
      {"id": 0, "type": "line", "text": "AB", "pos": [0,0,20,0,20,10,0,10],
       "char_pos": [[0,0,10,0,10,10,0,10],[10,0,20,0,20,10,10,10]]},
      {"id": 1, "type": "line", "text": "CD", "pos": [0,20,20,20,20,30,0,30]},
      {"id": 2, "type": "image", "pos": [0,40,50,40,50,90,0,90]},
      {"id": 3, "type": "line", "text": "E", "pos": [0,100,10,100,10,110,0,110], "char_pos": [[1,2]]}
    ],
    "structured": [
      {"type": "textblock", "pos": [0,0,20,0,20,30,0,30], "content": [1, 0]},
      {"type": "table", "pos": [0,100,10,100,10,110,0,110],
       "cells": [{"row": 0, "col": 0, "content": 3}]},
      {"type": "image", "pos": [0,40,50,40,50,90,0,90], "content": 2}
    ]
  }]
}`

const pdf2mdDoc = `{"result": {
  "detail": [
    {"page_id": 2, "paragraph_id": 2, "type": "paragraph", "text": "second", "position": [0,0,1,0,1,1,0,1], "content": 7},
    {"page_id": 1, "paragraph_id": 0, "type": "table", "text": "|a|", "position": [0,0,1,0,1,1,0,1],
     "content": [{"content": [1], "blocks": [[2]]}]},
    {"page_id": 0, "paragraph_id": 0, "type": "paragraph"}
  ],
  "metrics": [
    {"page_id": 1, "angle": 90, "width": 100, "height": 200},
    {"page_id": 2, "angle": -90, "width": 300, "height": 400, "image_url": "m2.png"}
  ],
  "pages": [
    {"page_id": 1, "content": [{"id": 1, "text": "xy", "pos": [0,0,2,0,2,1,0,1]}, {"id": 2, "text": "z", "pos": [0,2,1,2,1,3,0,3]}]},
    {"page_id": 2, "content": [{"id": 7, "text": "w", "pos": [0,0,1,0,1,1,0,1]}]}
  ]
}}`

func TestContentRef_JSONShapes(t *testing.T) {
	tests := []struct {
		in   string
		kind RefKind
		ids  []int
	}{
		{`5`, RefSingle, []int{5}},
		{`[3, 1, 2]`, RefList, []int{3, 1, 2}},
		{`[]`, RefList, nil},
		{`null`, RefNone, nil},
		{`[{"content": 4, "blocks": [[5, 6], 7]}, {"content": [8]}]`, RefNested, []int{4, 5, 6, 7, 8}},
		{`{"content": [9]}`, RefNested, []int{9}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var c ContentRef
			require.NoError(t, json.Unmarshal([]byte(tt.in), &c))
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.ids, c.LineIDs())
		})
	}
}

func TestContentRef_RejectsGarbage(t *testing.T) {
	var c ContentRef
	assert.Error(t, json.Unmarshal([]byte(`"one"`), &c))
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &c))
}

func TestContentRef_MarshalKeepsShape(t *testing.T) {
	out, err := json.Marshal(struct {
		A ContentRef `json:"a"`
		B ContentRef `json:"b"`
		C ContentRef `json:"c"`
	}{Single(1), List(2, 3), ContentRef{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":[2,3],"c":null}`, string(out))
}

func TestDetect(t *testing.T) {
	s, err := Detect([]byte(legacyDoc))
	require.NoError(t, err)
	assert.Equal(t, SchemaLegacy, s)

	s, err = Detect([]byte(pdf2mdDoc))
	require.NoError(t, err)
	assert.Equal(t, SchemaPdf2md, s)

	_, err = Detect([]byte(`{"foo": 1}`))
	assert.ErrorIs(t, err, ErrUnknownSchema)

	_, err = Detect([]byte(`not json`))
	assert.Error(t, err)
}

func TestParse_Legacy(t *testing.T) {
	pages, err := Parse([]byte(legacyDoc))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	p := pages[0]

	assert.Equal(t, 1, p.Index)
	assert.Equal(t, "p1.png", p.URL)
	assert.Len(t, p.Lines, 3, "image items are not text lines")
	assert.Nil(t, p.Lines[2].CharPositions, "mismatched char_pos falls back to line level")

	// paragraph lists line 1 before line 0; table cell brings line 3
	assert.Equal(t, "CDABE", p.Text())
	assert.Equal(t, []int{0, 0, 0, 0, 1}, p.AreaIndexMap)
	assert.Equal(t, []int{1, 1, 0, 0, 2}, p.LineIndexMap)
	assert.Equal(t, []int{0, 1, 0, 1, 0}, p.LineOffsets)

	assert.Equal(t, geom.Polygon{0, 20, 20, 20, 20, 30, 0, 30}, p.PositionList[0], "line-level fallback")
	assert.Equal(t, geom.Polygon{10, 0, 20, 0, 20, 10, 10, 10}, p.PositionList[3])

	assert.Equal(t, Table, p.AreaTypeMap[1])
	assert.Equal(t, Image, p.AreaTypeMap[2])
	assert.Equal(t, 1, p.AreaOfLine(2))
	assert.Equal(t, 2, p.LineIDMap[3])

	l, ok := p.LineByID(0)
	require.True(t, ok)
	assert.Equal(t, "AB", l.Text)
}

func TestParse_Pdf2md(t *testing.T) {
	pages, err := Parse([]byte(pdf2mdDoc))
	require.NoError(t, err)
	require.Len(t, pages, 2)

	p1 := pages[0]
	assert.Equal(t, 1, p1.Index)
	assert.Equal(t, geom.Angle90, p1.ImageAngle)
	assert.Equal(t, 100.0, p1.Width)
	assert.Equal(t, "xyz", p1.Text(), "nested content resolves content then blocks")
	assert.Equal(t, Table, p1.Areas[0].Type)
	assert.Equal(t, "|a|", p1.Areas[0].Text)

	p2 := pages[1]
	assert.Equal(t, geom.Angle270, p2.ImageAngle)
	assert.Equal(t, "m2.png", p2.URL)
	require.Len(t, p2.Areas, 3, "sparse structured array sized by paragraph_id")
	assert.True(t, p2.Areas[0].Empty())
	assert.True(t, p2.Areas[1].Empty())
	_, ok := p2.Area(1)
	assert.False(t, ok)
	assert.Equal(t, []int{2}, p2.AreaIndexMap)
}

func TestParse_NoPages(t *testing.T) {
	_, err := Parse([]byte(`{"pages": []}`))
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestLine_Units(t *testing.T) {
	l := Line{Text: "中文", Position: geom.Polygon{0, 0, 20, 10},
		CharPositions: []geom.Polygon{{0, 0, 10, 10}, {10, 0, 20, 10}}}
	units := l.Units()
	require.Len(t, units, 2)
	assert.Equal(t, "文", units[1].Text)
	assert.Equal(t, 1, units[1].Start)

	l.CharPositions = nil
	units = l.Units()
	require.Len(t, units, 1)
	assert.Equal(t, "中文", units[0].Text)
	assert.Equal(t, 2, units[0].End)
}

func TestOriID(t *testing.T) {
	assert.Equal(t, "0,3", OriID(1, 3))
	page, area, err := ParseOriID(" 4,2 ")
	require.NoError(t, err)
	assert.Equal(t, 5, page)
	assert.Equal(t, 2, area)

	for _, bad := range []string{"", "3", "a,b", "-1,2", "1,"} {
		_, _, err := ParseOriID(bad)
		assert.ErrorIs(t, err, ErrBadOriID, bad)
	}
}

func TestMergeMap_Group(t *testing.T) {
	m, err := LoadMergeMap([]byte(`{
	  "0,3": {"ori_id": ["0,3", "1,0"], "type": "paragraph", "content": "joined"},
	  "1,0": {"ori_id": ["0,3", "1,0"], "type": "paragraph", "content": "joined"},
	  "2,1": {"ori_id": ["3,0"], "type": "table", "content": "t"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"0,3", "1,0"}, m.Group("1,0"))
	assert.Equal(t, []string{"3,0", "2,1"}, m.Group("2,1"), "self is always part of its group")
	assert.Equal(t, []string{"9,9"}, m.Group("9,9"))

	var nilMap MergeMap
	_, ok := nilMap.Lookup("0,0")
	assert.False(t, ok)

	_, err = LoadMergeMap([]byte(`[`))
	assert.Error(t, err)
}

func TestPage_BlockText(t *testing.T) {
	pages, err := Parse([]byte(legacyDoc))
	require.NoError(t, err)
	p := pages[0]

	assert.Equal(t, "CDAB", p.BlockText(p.Areas[0]))
	assert.Equal(t, "E", p.BlockText(p.Areas[1]))
	assert.Equal(t, []int{1, 0, 2}, p.LineOrder())

	grid := Block{Type: Table, Cells: []Cell{
		{Row: 0, Col: 0, Content: Single(0)},
		{Row: 0, Col: 1, Text: "x"},
		{Row: 1, Col: 0, Content: Single(1)},
	}}
	assert.Equal(t, "AB\tx\nCD", p.BlockText(grid))

	assert.Equal(t, "fallback", p.BlockText(Block{Type: Paragraph, Content: Single(42), Text: "fallback"}))
}
