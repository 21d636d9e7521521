package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/selection"
)

var selectOpts struct {
	page   int
	toPage int
	from   string
	to     string
	html   bool
	json   bool
	export exportFlags
}

var selectCmd = &cobra.Command{
	Use:   "select <result>",
	Short: "Print the text a drag between two points selects",
	Long: `Replay a drag selection from one point to another and print what it collects.

Points are "x,y" in the page's own coordinates, before any rotation. The drag may
end on a later page with --to-page; pages in between are selected whole. Lines
are selected like in a text editor and a table touched by the drag is selected
as a whole.

Examples:
  # Select part of page 2
  ocrmark select result.json --page 2 --from 10,40 --to 300,120

  # Select from page 1 to page 3 and print tables as HTML
  ocrmark select result.json --page 1 --from 0,500 --to-page 3 --to 200,80 --html`,
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)

	selectCmd.Flags().IntVar(&selectOpts.page, "page", 1, "page the drag starts on")
	selectCmd.Flags().IntVar(&selectOpts.toPage, "to-page", 0, "page the drag ends on (default: --page)")
	selectCmd.Flags().StringVar(&selectOpts.from, "from", "", "start point x,y")
	selectCmd.Flags().StringVar(&selectOpts.to, "to", "", "end point x,y")
	selectCmd.Flags().BoolVar(&selectOpts.html, "html", false, "print the HTML rendering when a table was selected")
	selectCmd.Flags().BoolVar(&selectOpts.json, "json", false, "print the collected lines as JSON")
	_ = selectCmd.MarkFlagRequired("from")
	_ = selectCmd.MarkFlagRequired("to")
	selectOpts.export.register(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
	if err := selectOpts.export.validate(); err != nil {
		return err
	}
	from, err := parsePoint(selectOpts.from)
	if err != nil {
		return err
	}
	to, err := parsePoint(selectOpts.to)
	if err != nil {
		return err
	}
	toPage := selectOpts.toPage
	if toPage == 0 {
		toPage = selectOpts.page
	}

	pages, err := loadPages(args[0])
	if err != nil {
		return err
	}
	s := openSession(pages, nil)
	defer s.Destroy()

	start, err := s.screenPoint(selectOpts.page, from)
	if err != nil {
		return err
	}
	end, err := s.screenPoint(toPage, to)
	if err != nil {
		return err
	}

	if !s.Selection.PointerDown(selection.PointerEvent{Point: start}) {
		return fmt.Errorf("start point %v is outside page %d", from, selectOpts.page)
	}
	s.Selection.PointerMove(selection.PointerEvent{Point: end})
	if err := s.Selection.PointerUp(context.Background(), selection.PointerEvent{Point: end}); err != nil {
		return err
	}

	sel := s.Selection.Selection()
	log.Infow("selection finished", "pages", sel.Pages(), "chars", len([]rune(sel.Text())))

	out := cmd.OutOrStdout()
	switch {
	case selectOpts.json:
		err = writeJSON(out, sel)
	case selectOpts.html && sel.HTML() != "":
		_, err = fmt.Fprintln(out, sel.HTML())
	default:
		_, err = fmt.Fprintln(out, sel.Text())
	}
	if err != nil {
		return err
	}

	if selectOpts.export.enabled() {
		return selectOpts.export.export(s.canvas)
	}
	return nil
}

// screenPoint maps a point of page into screen space
func (h *headless) screenPoint(page int, p geom.Point) (geom.Point, error) {
	pi, ok := h.canvas.InternalPage(page)
	if !ok {
		return geom.Point{}, fmt.Errorf("no page %d", page)
	}
	return pi.Frame.ToCanvas(p).Add(h.canvas.Translate()), nil
}
