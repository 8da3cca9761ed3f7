package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/use-agent/reviewlens/api/handler"
	"github.com/use-agent/reviewlens/config"
	"github.com/use-agent/reviewlens/models"
	"github.com/use-agent/reviewlens/review"
)

var (
	scrapeJSON      *bool
	scrapeMaxPages  *int
	scrapeNoBrowser *bool
)

func init() {
	scrapeJSON = scrapeCmd.Flags().Bool("json", false, "Print the API response body as JSON instead of a table.")
	scrapeMaxPages = scrapeCmd.Flags().Int("max-pages", 0, "Lower the pagination page cap.")
	scrapeNoBrowser = scrapeCmd.Flags().Bool("no-browser", false, "Fetch over plain HTTP only.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url> [--json] [--max-pages N] [--no-browser]",
	Short: "Extracts every review reachable from a product or review page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if *scrapeNoBrowser {
			cfg.Browser.Enabled = false
		}

		rt, err := review.NewRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		res := rt.Service.Scrape(cmd.Context(), models.ScrapeRequest{
			TargetURL: args[0],
			MaxPages:  *scrapeMaxPages,
		})

		status, body := handler.Render(res)
		if *scrapeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(body); err != nil {
				return err
			}
		} else {
			printReviews(res, status < 400)
		}

		if status >= 400 {
			return fmt.Errorf("%s: %s", res.Error.Kind, res.Error.Message)
		}
		return nil
	},
}

func printReviews(res *models.ScrapeResult, showWarning bool) {
	if len(res.Reviews) > 0 {
		t := newTable()
		t.AppendHeader(table.Row{"#", "Rating", "Reviewer", "Title", "Review"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 4, WidthMax: 32},
			{Number: 5, WidthMax: 72},
		})
		for i, r := range res.Reviews {
			rating := "-"
			if r.Rating != nil {
				rating = strconv.FormatFloat(*r.Rating, 'f', 1, 64)
			}
			t.AppendRow(table.Row{i + 1, rating, r.Reviewer, r.Title, text.Trim(r.Body, 280)})
		}
		t.AppendFooter(table.Row{"", "", "", "pages", res.PageCount})
		t.Render()
	}

	if showWarning && res.Error != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", res.Error.Kind, res.Error.Message)
	}
}
