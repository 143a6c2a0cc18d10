package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ailearninghub/hub/internal/progress"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show reading progress and your learning streak",
	Long:    paragraph(fmt.Sprintf("\nShow the documents you have read, pages covered and your %s. Needs HUB_DATABASE_URL.", keyword("learning streak"))),
	Example: paragraph("HUB_DATABASE_URL=postgres://localhost/hub hub stats"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Env.DatabaseURL == "" {
			return errors.New("stats need HUB_DATABASE_URL")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		db, err := progress.Open(ctx, cfg.Env.DatabaseURL, cfg.Debug)
		if err != nil {
			return fmt.Errorf("unable to open progress database: %w", err)
		}
		defer db.Close() //nolint:errcheck

		now := time.Now()
		st, err := db.Stats(ctx, cfg.Env.UserID, now)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", keyword("Documents:"), humanize.Comma(int64(st.Documents)))
		fmt.Printf("%s %s\n", keyword("Pages read:"), humanize.Comma(int64(st.PagesRead)))
		fmt.Printf("%s %d day(s)\n", keyword("Streak:"), st.Streak)
		if len(st.Recent) == 0 {
			return nil
		}
		fmt.Println()
		for _, p := range st.Recent {
			fmt.Printf("  %-32s page %d/%d, %s\n",
				p.PDFName, p.LastReadPage, p.TotalPages, humanize.RelTime(p.LastReadAt, now, "ago", "from now"))
		}
		return nil
	},
}
