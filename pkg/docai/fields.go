package docai

import (
	"slices"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

// FormFields collects the key/value pairs a form parser found on every page. Keys lose a
// trailing colon; repeated keys keep each distinct value once, in document order.
func FormFields(doc *documentaipb.Document) map[string][]string {
	text := []rune(doc.GetText())
	fields := make(map[string][]string)
	for _, page := range doc.GetPages() {
		for _, f := range page.GetFormFields() {
			key := strings.TrimSuffix(strings.TrimSpace(anchorText(f.GetFieldName(), text)), ":")
			if key == "" {
				continue
			}
			value := strings.TrimSpace(anchorText(f.GetFieldValue(), text))
			if !slices.Contains(fields[key], value) {
				fields[key] = append(fields[key], value)
			}
		}
	}
	return fields
}
