// Package hocr reads hOCR, the HTML-based OCR output of Tesseract and similar engines, and
// turns it into normalized layout pages.
//
// The object model follows the hOCR hierarchy down to characters:
//
//	Document → Page → Area → Line → Word → character boxes
//
// Character boxes come from a word's x_bboxes property or from ocrx_cinfo children. When a
// word carries neither, its line is positioned at line level only.
package hocr

import (
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
)

// Document is a parsed hOCR file
type Document struct {
	Title    string
	Language string
	System   string // ocr-system meta
	Pages    []Page
}

// Page is an element with class 'ocr_page'
type Page struct {
	ID        string
	Number    int // ppageno, 0-based
	ImageName string
	BBox      BoundingBox
	Areas     []Area
	Lines     []Line // lines outside any area
}

// Area is a block element: 'ocr_carea', 'ocr_table', 'ocr_photo' and friends
type Area struct {
	ID    string
	Class string
	BBox  BoundingBox
	Lines []Line
}

// Type maps the hOCR class of the area onto a block type
func (a Area) Type() layout.BlockType {
	switch a.Class {
	case "ocr_table", "ocr_tab":
		return layout.Table
	case "ocr_photo", "ocr_image", "ocr_float":
		return layout.Image
	case "ocr_header", "ocr_pageno":
		return layout.Header
	case "ocr_footer":
		return layout.Footer
	default:
		return layout.Paragraph
	}
}

// Line is an element with class 'ocr_line' (or one of the Tesseract line variants)
type Line struct {
	ID    string
	BBox  BoundingBox
	Words []Word
}

// Word is an element with class 'ocrx_word'
type Word struct {
	ID         string
	Text       string
	BBox       BoundingBox
	Confidence float64
	Chars      []BoundingBox // one per rune of Text, or nil
}

// BoundingBox is an hOCR bbox: top-left and bottom-right corners in image pixels
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
}

// Polygon returns the box as a clockwise polygon from the top-left corner
func (b BoundingBox) Polygon() geom.Polygon {
	return geom.Polygon{b.X1, b.Y1, b.X2, b.Y1, b.X2, b.Y2, b.X1, b.Y2}
}

// Empty reports whether the box has no area
func (b BoundingBox) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}
