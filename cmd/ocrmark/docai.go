package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/spf13/cobra"

	"github.com/gardar/ocrmark/pkg/docai"
)

var docaiOpts struct {
	save     string
	fields   bool
	imageDir string
	mimeType string
	timeout  time.Duration
}

var docaiCmd = &cobra.Command{
	Use:   "docai <file>",
	Short: "Process a document with Google Document AI",
	Long: `Send a PDF or image to a Document AI OCR processor and print the normalized pages.

The processor is configured under "docai" in the config file or with
OCRMARK_DOCAI_PROJECT_ID, OCRMARK_DOCAI_LOCATION and OCRMARK_DOCAI_PROCESSOR_ID.
Credentials are read from GOOGLE_APPLICATION_CREDENTIALS.

The raw response can be saved with --save and loaded later by every other command.

Examples:
  # Process a scan and keep the response
  ocrmark docai scan.pdf --save scan.docai.json > pages.json

  # Print the form fields of a form parser result
  ocrmark docai form.pdf --fields`,
	Args: cobra.ExactArgs(1),
	RunE: runDocAI,
}

func init() {
	rootCmd.AddCommand(docaiCmd)

	docaiCmd.Flags().StringVar(&docaiOpts.save, "save", "", "write the Document AI response JSON to this file")
	docaiCmd.Flags().BoolVar(&docaiOpts.fields, "fields", false, "print form fields instead of pages")
	docaiCmd.Flags().StringVar(&docaiOpts.imageDir, "image-dir", "", "write the page images the processor returned to this directory")
	docaiCmd.Flags().StringVar(&docaiOpts.mimeType, "mime-type", "", "input MIME type (default from the file extension)")
	docaiCmd.Flags().DurationVar(&docaiOpts.timeout, "timeout", 5*time.Minute, "processing timeout")
}

func runDocAI(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	mimeType := docaiOpts.mimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(args[0]))
	}

	ctx, cancel := context.WithTimeout(context.Background(), docaiOpts.timeout)
	defer cancel()

	client, err := docai.NewClient(ctx, cfg.DocAI, log)
	if err != nil {
		return err
	}
	defer client.Close()

	doc, err := client.Process(ctx, data, mimeType)
	if err != nil {
		return err
	}

	if docaiOpts.save != "" {
		raw, err := docai.MarshalJSON(doc)
		if err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
		if err := os.WriteFile(docaiOpts.save, raw, 0644); err != nil {
			return fmt.Errorf("failed to save response: %w", err)
		}
		log.Infow("response saved", "path", docaiOpts.save)
	}
	if docaiOpts.imageDir != "" {
		if err := savePageImages(docaiOpts.imageDir, doc.GetPages()); err != nil {
			return err
		}
	}

	if docaiOpts.fields {
		return printFields(cmd, docai.FormFields(doc))
	}
	return writeJSON(cmd.OutOrStdout(), docai.ToPages(doc))
}

// savePageImages writes page-NNN.<ext> for every page that came back with an image
func savePageImages(dir string, pages []*documentaipb.Document_Page) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	saved := 0
	for i, p := range pages {
		data, mimeType, err := docai.PageImage(p)
		if errors.Is(err, docai.ErrNoImage) {
			log.Debugw("page has no image", "page", i+1)
			continue
		}
		if err != nil {
			return err
		}
		ext := ".img"
		if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
			ext = exts[0]
		}
		path := filepath.Join(dir, fmt.Sprintf("page-%03d%s", i+1, ext))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write page image: %w", err)
		}
		saved++
	}
	log.Infow("page images saved", "dir", dir, "images", saved)
	return nil
}

func printFields(cmd *cobra.Command, fields map[string][]string) error {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	rows := [][]string{{"FIELD", "VALUE"}}
	for _, k := range names {
		for _, v := range fields[k] {
			rows = append(rows, []string{k, v})
		}
	}
	return printTable(cmd.OutOrStdout(), rows)
}
