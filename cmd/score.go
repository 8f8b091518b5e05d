package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscope/internal/model"
	"github.com/sells-group/leadscope/internal/recommend"
	"github.com/sells-group/leadscope/internal/scoring"
)

var (
	scoreSignalsPath string
	scoreFormat      string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a business from a signals file",
	Long: `Compute the lead score, opportunity score and recommendations for a
single business from a normalized signals JSON file, without touching any
provider or the store.

Example signals file:

  {
    "rating": 4.8,
    "review_count": 120,
    "has_website": true,
    "has_phone": true,
    "has_address": true,
    "sources": {"places": true, "ads": true, "seo_ppc": true}
  }`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		data, err := os.ReadFile(scoreSignalsPath)
		if err != nil {
			return eris.Wrapf(err, "score: read signals %s", scoreSignalsPath)
		}

		var signals model.BusinessSignals
		if err := json.Unmarshal(data, &signals); err != nil {
			return eris.Wrap(err, "score: parse signals")
		}

		thresholds, err := loadThresholds()
		if err != nil {
			return err
		}

		scores := scoring.ComputeScores(&signals)
		opportunity := scoring.ComputeOpportunity(&signals)
		recs := recommend.Generate(&signals, scores, thresholds)

		result := struct {
			Scores          model.ScoreBreakdown       `json:"scores"`
			Opportunity     model.OpportunityBreakdown `json:"opportunity"`
			Recommendations []model.Recommendation     `json:"recommendations"`
		}{scores, opportunity, recs}

		if scoreFormat == "table" {
			printScoreTable(result.Scores, result.Opportunity, result.Recommendations)
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func printScoreTable(scores model.ScoreBreakdown, opp model.OpportunityBreakdown, recs []model.Recommendation) {
	fmt.Printf("Presence      %3d\n", scores.Presence)
	fmt.Printf("SEO           %3d\n", scores.SEO)
	fmt.Printf("Ads activity  %3d\n", scores.AdsActivity)
	fmt.Printf("Engagement    %3d\n", scores.Engagement)
	fmt.Printf("Lead score    %3d\n", scores.Lead)
	fmt.Printf("Opportunity   %3d\n", opp.Total)

	if len(recs) > 0 {
		fmt.Println("\nRecommendations:")
		for _, r := range recs {
			fmt.Printf("  [P%d] %s\n", r.Priority, r.Text)
		}
	}
}

func init() {
	scoreCmd.Flags().StringVar(&scoreSignalsPath, "signals", "", "path to signals JSON file (required)")
	scoreCmd.Flags().StringVar(&scoreFormat, "format", "json", "output format: json or table")
	_ = scoreCmd.MarkFlagRequired("signals")
	rootCmd.AddCommand(scoreCmd)
}
