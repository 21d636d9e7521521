package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gardar/ocrmark/pkg/layout"
	"github.com/gardar/ocrmark/pkg/pdfmark"
)

var markOpts struct {
	merge  string
	types  []string
	fill   string
	export exportFlags
}

var markCmd = &cobra.Command{
	Use:   "mark <result> [ori_id...]",
	Short: "Mark structured blocks in a PDF",
	Long: `Highlight structured blocks on a layer of their own.

Blocks are picked by ori_id or by type (--type table,image). A block that is part
of a merge group lights its whole group, like hovering it in a viewer does.

Examples:
  # Mark every table
  ocrmark mark result.json --type table --pdf scan.pdf --out tables.pdf

  # Mark one block and its continuation on the next page
  ocrmark mark result.json 0,2 --merge merge.json --pdf scan.pdf --out marked.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMark,
}

var layersCmd = &cobra.Command{
	Use:   "layers <pdf>",
	Short: "List the optional-content layers of a PDF",
	Long: `List the layers of a PDF and report whether it already carries a marks layer.

Layers inside compressed object streams are not detected.`,
	Args: cobra.ExactArgs(1),
	RunE: runLayers,
}

func init() {
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(layersCmd)

	markCmd.Flags().StringVar(&markOpts.merge, "merge", "", "merge map JSON of blocks split across pages")
	markCmd.Flags().StringSliceVar(&markOpts.types, "type", nil, "mark every block of these types")
	markCmd.Flags().StringVar(&markOpts.fill, "fill", "", "highlight colour, #rrggbb[aa]")
	markOpts.export.register(markCmd)
}

func runMark(_ *cobra.Command, args []string) error {
	if !markOpts.export.enabled() {
		return fmt.Errorf("mark needs --out with --pdf or --image-dir")
	}
	if err := markOpts.export.validate(); err != nil {
		return err
	}
	pages, err := loadPages(args[0])
	if err != nil {
		return err
	}
	merge, err := loadMerge(markOpts.merge)
	if err != nil {
		return err
	}
	if markOpts.fill != "" {
		cfg.Blocks.HoverFill = markOpts.fill
	}

	ids := append([]string(nil), args[1:]...)
	ids = append(ids, blocksOfType(pages, markOpts.types)...)
	if len(ids) == 0 {
		return fmt.Errorf("no blocks to mark, give ori_ids or --type")
	}

	s := openSession(pages, merge)
	defer s.Destroy()
	for _, id := range ids {
		if _, _, _, err := s.Blocks.Block(id); err != nil {
			return err
		}
		s.Blocks.Hover(id)
	}
	log.Infow("blocks marked", "requested", len(ids))
	return markOpts.export.export(s.canvas)
}

func blocksOfType(pages []*layout.Page, types []string) []string {
	if len(types) == 0 {
		return nil
	}
	want := make(map[layout.BlockType]bool)
	for _, t := range types {
		want[layout.ParseBlockType(strings.TrimSpace(t))] = true
	}
	var ids []string
	for _, p := range pages {
		for ai, b := range p.Areas {
			if !b.Empty() && want[b.Type] {
				ids = append(ids, layout.OriID(p.Index, ai))
			}
		}
	}
	return ids
}

func runLayers(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read PDF: %w", err)
	}
	check, err := pdfmark.CheckLayers(data, cfg.Marks.LayerName)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(check.Layers) == 0 {
		fmt.Fprintln(out, "No layers found")
	}
	for _, l := range check.Layers {
		fmt.Fprintln(out, l)
	}
	for _, w := range check.Warnings {
		log.Warn(w)
	}
	if check.Exists {
		fmt.Fprintf(out, "Marks layer present: %s\n", check.Name)
	}
	return nil
}
