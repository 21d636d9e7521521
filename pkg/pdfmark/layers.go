package pdfmark

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// ErrMarksLayerExists is returned when the input PDF already carries a marks layer and
// Force is not set
var ErrMarksLayerExists = errors.New("pdfmark: marks layer already exists")

var ocgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Type\s*/OCG\s*/Name\s*\(((?:\\.|[^\\)])+)\)`),
	regexp.MustCompile(`/OCG\s*<<[^>]*?/Name\s*\(((?:\\.|[^\\)])+)\)`),
	regexp.MustCompile(`/Name\s*\(((?:\\.|[^\\)])+)\)[\s\S]{1,50}/Type\s*/OCG`),
}

var utf16 = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// Layers lists the optional-content group names found in the raw PDF bytes, in order of
// first appearance. Names in compressed object streams are not seen.
func Layers(pdfData []byte) ([]string, error) {
	if len(pdfData) == 0 {
		return nil, fmt.Errorf("empty PDF data")
	}

	var names []string
	seen := make(map[string]bool)
	for _, re := range ocgPatterns {
		for _, m := range re.FindAllSubmatch(pdfData, -1) {
			name := unescapePDFString(string(m[1]))
			if strings.HasPrefix(name, "\xfe\xff") {
				if decoded, err := utf16.NewDecoder().String(name); err == nil {
					name = decoded
				}
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// LayerCheck is the result of looking for an existing marks layer
type LayerCheck struct {
	Layers   []string // every detected layer
	Exists   bool     // a layer named like the marks layer exists
	Name     string   // the matching layer
	Warnings []string // layers that look like highlights under another name
}

// CheckLayers looks for layerName, alone or with a "(Page N)" suffix
func CheckLayers(pdfData []byte, layerName string) (LayerCheck, error) {
	var res LayerCheck
	layers, err := Layers(pdfData)
	if err != nil {
		return res, fmt.Errorf("cannot analyze layers: %w", err)
	}
	res.Layers = layers

	pageLayer := regexp.MustCompile(fmt.Sprintf(`^%s\s*\(Page\s*\d+`, regexp.QuoteMeta(layerName)))
	for _, l := range layers {
		if l == layerName || pageLayer.MatchString(l) {
			res.Exists = true
			res.Name = l
			break
		}
		lower := strings.ToLower(l)
		if strings.Contains(lower, "mark") || strings.Contains(lower, "highlight") {
			res.Warnings = append(res.Warnings, fmt.Sprintf("existing layer might contain marks: %s", l))
		}
	}
	return res, nil
}

func layerName(base string, page int) string {
	return fmt.Sprintf("%s (Page %d)", base, page)
}

func unescapePDFString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
