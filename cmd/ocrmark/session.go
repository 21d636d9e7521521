package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/layout"
	"github.com/gardar/ocrmark/pkg/pdfmark"
	"github.com/gardar/ocrmark/pkg/session"
)

// pageGap separates stacked pages on the headless canvas
const pageGap = 16

// headless is a session over a recording canvas. Time never advances, so the selection
// throttle and auto-scroll only act when a drag ends.
type headless struct {
	*session.Session
	canvas *pdfmark.Canvas
}

func openSession(pages []*layout.Page, merge layout.MergeMap) *headless {
	c := pdfmark.New(pages, pdfmark.Options{Gap: pageGap, Log: log})
	sc := cfg
	// Every page is in the window, so every hit and block gets a shape to export
	sc.Blocks.Lookaround = len(pages)
	s := session.New(pages, session.Options{
		Config:    sc,
		Canvas:    c,
		Scheduler: canvas.NewManualScheduler(time.Now()),
		Merge:     merge,
		Log:       log,
	})
	return &headless{Session: s, canvas: c}
}

// exportFlags are shared by the commands that can write marks into a PDF
type exportFlags struct {
	pdf       string
	imageDir  string
	out       string
	overwrite bool
	force     bool
	debug     bool
}

func (f *exportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.pdf, "pdf", "", "existing PDF to draw the marks on")
	cmd.Flags().StringVar(&f.imageDir, "image-dir", "", "directory of page images to build a new PDF from")
	cmd.Flags().StringVar(&f.out, "out", "", "output PDF path")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "overwrite the output PDF if it already exists")
	cmd.Flags().BoolVar(&f.force, "force", false, "add marks even if a marks layer is already present")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "outline every mark in red")
	cmd.MarkFlagsMutuallyExclusive("pdf", "image-dir")
}

func (f *exportFlags) enabled() bool {
	return f.out != ""
}

func (f *exportFlags) validate() error {
	if f.out != "" && f.pdf == "" && f.imageDir == "" {
		return fmt.Errorf("--out needs --pdf or --image-dir")
	}
	if (f.pdf != "" || f.imageDir != "") && f.out == "" {
		return fmt.Errorf("--pdf and --image-dir need --out")
	}
	return nil
}

// export writes the shapes recorded on c into the output PDF
func (f *exportFlags) export(c *pdfmark.Canvas) error {
	mc := cfg.Marks
	mc.Force = mc.Force || f.force
	mc.Debug = mc.Debug || f.debug

	var (
		out []byte
		err error
	)
	if f.imageDir != "" {
		images, rerr := readImages(f.imageDir)
		if rerr != nil {
			return rerr
		}
		log.Infow("building PDF from images", "dir", f.imageDir, "images", len(images))
		out, err = c.Assemble(images, mc)
	} else {
		data, rerr := os.ReadFile(f.pdf)
		if rerr != nil {
			return fmt.Errorf("failed to read input PDF: %w", rerr)
		}
		out, err = c.Apply(data, mc)
	}
	if err != nil {
		return err
	}
	if err := writeOutput(f.out, out, f.overwrite); err != nil {
		return err
	}
	log.Infow("marked PDF written", "path", f.out, "shapes", len(c.Shapes(0)))
	return nil
}

// readImages loads every file of dir in name order
func readImages(dir string) ([][]byte, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("error accessing image directory: %w", err)
	}
	sort.Strings(paths)

	var images [][]byte
	for _, p := range paths {
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read image %s: %w", p, err)
		}
		images = append(images, data)
	}
	return images, nil
}
