package commands

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/use-agent/reviewlens/config"
	"github.com/use-agent/reviewlens/profile"
)

func init() {
	rootCmd.AddCommand(profilesCmd)
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Lists the site profiles in effect, including selector overrides.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		reg, err := profile.NewRegistry(cfg.Extract.SelectorsDir)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Kind", "Version", "Render JS", "Scale", "Container", "Next"})
		for _, k := range profile.Kinds {
			p := reg.Get(k)
			t.AppendRow(table.Row{
				p.Kind,
				p.Version,
				p.RenderJS,
				p.RatingScale,
				strings.Join(p.Selectors.Container, "\n"),
				strings.Join(p.Pagination.Next, "\n"),
			})
		}
		t.Render()
		return nil
	},
}
