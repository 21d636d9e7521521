package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/gardar/ocrmark/pkg/search"
)

var searchOpts struct {
	json   bool
	fuzzy  bool
	active int
	width  int
	export exportFlags
}

var searchCmd = &cobra.Command{
	Use:   "search <result> <keyword>",
	Short: "Search a keyword and optionally mark the hits in a PDF",
	Long: `Search every page of an OCR result for a keyword.

Hits are listed in page order with a snippet of the surrounding text. The keyword
also matches with Chinese and English punctuation swapped, and with --fuzzy long
keywords tolerate a few edits.

With --out the hits are drawn as a highlight layer, either over an existing PDF
(--pdf) or over page images (--image-dir).

Examples:
  # List the hits
  ocrmark search result.json "total amount"

  # Mark the hits in the scanned PDF, with the third one as the active hit
  ocrmark search result.json "total amount" --pdf scan.pdf --out marked.pdf --active 3`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().BoolVar(&searchOpts.json, "json", false, "print results as JSON")
	searchCmd.Flags().BoolVar(&searchOpts.fuzzy, "fuzzy", false, "allow edits in keywords of three or more characters")
	searchCmd.Flags().IntVar(&searchOpts.active, "active", 0, "1-based hit to draw as the active one")
	searchCmd.Flags().IntVar(&searchOpts.width, "width", 60, "snippet column width")
	searchOpts.export.register(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := searchOpts.export.validate(); err != nil {
		return err
	}
	pages, err := loadPages(args[0])
	if err != nil {
		return err
	}
	if searchOpts.fuzzy {
		cfg.Search.Fuzzy = true
	}

	s := openSession(pages, nil)
	defer s.Destroy()

	results, err := s.Search(context.Background(), args[1])
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	log.Infow("search finished", "keyword", args[1], "results", len(results))

	if searchOpts.active > 0 {
		if _, ok := s.Marks.Activate(searchOpts.active - 1); !ok {
			return fmt.Errorf("--active %d: only %d results", searchOpts.active, len(results))
		}
	}

	out := cmd.OutOrStdout()
	if searchOpts.json {
		err = writeJSON(out, results)
	} else {
		err = printResults(out, results, searchOpts.width)
	}
	if err != nil {
		return err
	}

	if searchOpts.export.enabled() {
		return searchOpts.export.export(s.canvas)
	}
	return nil
}

var snippetText = strings.NewReplacer("<mark>", "[", "</mark>", "]", "&nbsp;", " ")

// printResults writes one aligned row per hit. Widths are measured in terminal cells so
// CJK snippets line up.
func printResults(w io.Writer, results []search.Result, width int) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results")
		return err
	}
	rows := [][]string{{"#", "PAGE", "LINE", "MATCH", "SNIPPET"}}
	for i, r := range results {
		snippet := html.UnescapeString(snippetText.Replace(r.Snippet))
		if width > 0 {
			snippet = runewidth.Truncate(snippet, width, "…")
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(r.Page),
			strconv.Itoa(r.Line + 1),
			r.Origin,
			snippet,
		})
	}
	return printTable(w, rows)
}

func printTable(w io.Writer, rows [][]string) error {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, row := range rows {
		var sb strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		if _, err := fmt.Fprintln(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
