package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"github.com/tidwall/gjson"

	"github.com/gardar/ocrmark/pkg/docai"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/hocr"
	"github.com/gardar/ocrmark/pkg/layout"
)

const (
	formatAuto  = "auto"
	formatJSON  = "json"
	formatHOCR  = "hocr"
	formatDocAI = "docai"
)

// loadPages reads an OCR result and normalizes it. In auto mode hOCR is recognized by its
// markup and a Document AI response by its document text; anything else must be ocrmark JSON.
func loadPages(path string) ([]*layout.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	pages, err := normalize(data, viper.GetString("format"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugw("document loaded", "path", path, "pages", len(pages))
	return pages, nil
}

func normalize(data []byte, format string) ([]*layout.Page, error) {
	switch format {
	case formatJSON:
		return layout.NewNormalizer(log).Parse(data)
	case formatHOCR:
		return hocr.Normalize(data)
	case formatDocAI:
		return docaiPages(data)
	case formatAuto, "":
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	switch {
	case hocr.Sniff(data):
		return hocr.Normalize(data)
	case isDocAI(data):
		return docaiPages(data)
	}
	return layout.NewNormalizer(log).Parse(data)
}

// isDocAI matches a ProcessResponse or a bare Document, both of which carry the full text
func isDocAI(data []byte) bool {
	if gjson.GetBytes(data, "document").IsObject() {
		return true
	}
	return gjson.GetBytes(data, "text").Type == gjson.String && gjson.GetBytes(data, "pages").IsArray()
}

func docaiPages(data []byte) ([]*layout.Page, error) {
	doc, err := docai.LoadJSON(data)
	if err != nil {
		return nil, err
	}
	pages := docai.ToPages(doc)
	if len(pages) == 0 {
		return nil, layout.ErrNoPages
	}
	return pages, nil
}

func loadMerge(path string) (layout.MergeMap, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read merge map: %w", err)
	}
	return layout.LoadMergeMap(data)
}

// parsePoint reads "x,y"
func parsePoint(s string) (geom.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geom.Point{}, fmt.Errorf("invalid point %q, want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geom.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geom.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return geom.Point{X: x, Y: y}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeOutput refuses to replace an existing file unless overwrite is set
func writeOutput(path string, data []byte, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("output file %s already exists, use --overwrite to replace it", path)
	}
	if err := os.WriteFile(path, data, 0666); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
