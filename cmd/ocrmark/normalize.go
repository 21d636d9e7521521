package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var normalizeOpts struct {
	text bool
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <result>",
	Short: "Print the normalized pages of an OCR result as JSON",
	Long: `Normalize an OCR result into the page shape the mark engines use and print it.

Each page carries its lines and blocks plus the flattened text with one position
and one area index per character.

Examples:
  # Convert hOCR into normalized pages
  ocrmark normalize scan.hocr > pages.json

  # Print the flattened text of every page
  ocrmark normalize result.json --text`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().BoolVar(&normalizeOpts.text, "text", false, "print the flattened text of each page instead")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	pages, err := loadPages(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !normalizeOpts.text {
		return writeJSON(out, pages)
	}
	for _, p := range pages {
		if _, err := fmt.Fprintf(out, "--- page %d ---\n%s\n", p.Index, p.Text()); err != nil {
			return err
		}
	}
	return nil
}
