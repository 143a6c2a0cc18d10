package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ailearninghub/hub/internal/pages"
)

var ingestCmd = &cobra.Command{
	Use:     "ingest FILE",
	Short:   "Extract the pages of a document without starting the lecture",
	Long:    paragraph(fmt.Sprintf("\n%s a PDF, slide deck or document and make it the current lecture. The next `hub` run picks it up.", keyword("Ingest"))),
	Example: paragraph("hub ingest slides.pptx\nhub ingest notes.pdf --storage sqlite"),
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("unable to get absolute path: %w", err)
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.ingest(path)
		if err != nil {
			return err
		}

		var size int
		for _, p := range doc.Pages {
			size += len(p.Text)
		}
		fmt.Printf("%s %s: %s pages in %s sections, %s of text\n",
			keyword("Ingested"),
			doc.FileName,
			humanize.Comma(int64(len(doc.Pages))),
			humanize.Comma(int64(doc.TotalChunks())),
			humanize.Bytes(uint64(size)), //nolint:gosec
		)
		for _, c := range pages.Split(doc.Pages) {
			fmt.Printf("  %d. %s\n", c.Index+1, c.Label())
		}
		return nil
	},
}
