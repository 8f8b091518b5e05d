package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/leadscope/internal/store"
)

var (
	exportOut     string
	exportMinLead int
	exportLimit   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export ranked prospects to an XLSX workbook",
	Long:  "Writes stored profiles, ranked by composite lead score, to a spreadsheet for hand-off to the sales team.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		profiles, err := st.ListProfiles(ctx, store.ProfileFilter{
			MinLeadScore: exportMinLead,
			RankByLead:   true,
			Limit:        exportLimit,
		})
		if err != nil {
			return eris.Wrap(err, "export: list profiles")
		}
		if len(profiles) == 0 {
			return eris.New("export: no profiles match the filter")
		}

		f := xlsx.NewFile()
		sheet, err := f.AddSheet("Prospects")
		if err != nil {
			return eris.Wrap(err, "export: add sheet")
		}

		header := sheet.AddRow()
		for _, h := range []string{
			"Rank", "Name", "Domain", "Location",
			"Lead Score", "Presence", "SEO", "Ads", "Engagement",
			"Opportunity", "Rating", "Reviews", "Top Recommendation",
		} {
			header.AddCell().Value = h
		}

		for i, p := range profiles {
			row := sheet.AddRow()
			row.AddCell().SetInt(i + 1)
			row.AddCell().Value = p.Name
			row.AddCell().Value = p.Domain
			row.AddCell().Value = p.Location
			row.AddCell().SetInt(p.Scores.Lead)
			row.AddCell().SetInt(p.Scores.Presence)
			row.AddCell().SetInt(p.Scores.SEO)
			row.AddCell().SetInt(p.Scores.AdsActivity)
			row.AddCell().SetInt(p.Scores.Engagement)
			row.AddCell().SetInt(p.Opportunity.Total)

			ratingCell := row.AddCell()
			if p.Signals.Rating != nil {
				ratingCell.SetFloat(*p.Signals.Rating)
			}
			row.AddCell().SetInt(p.Signals.ReviewCount)

			recCell := row.AddCell()
			if len(p.Recommendations) > 0 {
				recCell.Value = p.Recommendations[0].Text
			}
		}

		if err := f.Save(exportOut); err != nil {
			return eris.Wrapf(err, "export: save %s", exportOut)
		}

		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.Int("profiles", len(profiles)),
		)
		fmt.Printf("Wrote %d prospects to %s\n", len(profiles), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "prospects.xlsx", "output file path")
	exportCmd.Flags().IntVar(&exportMinLead, "min-lead", 0, "minimum composite lead score")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum number of rows (0 = all)")
	rootCmd.AddCommand(exportCmd)
}
