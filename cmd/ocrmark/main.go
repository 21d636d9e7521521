// ocrmark is a command-line tool for locating text in OCR results and marking it.
//
// It loads a document's OCR result (ocrmark JSON, hOCR or a saved Document AI response),
// normalizes it into pages and runs the mark engines over them without a viewer: keyword
// search, drag selection by coordinates and structured block lookup. Search hits can be
// written into a PDF as a highlight layer.
//
// Usage:
//
//	ocrmark <command> [flags]
//
// Commands:
//
//	normalize   Print the normalized pages of a result as JSON
//	search      Search a keyword and optionally mark the hits in a PDF
//	select      Print the text a drag between two points selects
//	block       Print the text or HTML of a structured block
//	mark        Mark structured blocks in a PDF
//	layers      List the optional-content layers of a PDF
//	docai       Process a PDF with Google Document AI
//
// Global flags:
//
//	--config string     YAML config file
//	--log-level string  log level (debug, info, warn, error)
//	--format string     input format: auto, json, hocr, docai (default "auto")
//
// Examples:
//
// Search a keyword and mark the hits on the original PDF:
//
//	ocrmark search result.json "invoice" --pdf scan.pdf --out marked.pdf
//
// Select the text between two points of page 2:
//
//	ocrmark select result.json --page 2 --from 10,40 --to 300,120
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
