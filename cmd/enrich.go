package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscope/internal/enrich"
)

var (
	enrichName     string
	enrichLocation string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <domain>",
	Short: "Run a full provider-driven enrichment for one business",
	Long: `Fan out to the local-pack, ad-library and SEO/PPC providers, normalize
the payloads, score the business and persist the resulting profile.

Businesses without a website can be enriched by name alone:

  leadscope enrich "" --name "Cash Only Diner" --location "Springfield, IL"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		domain := args[0]
		if domain == "" && enrichName == "" {
			return eris.New("enrich: a domain or --name is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "enrich: migrate store")
		}

		enricher, err := initEnricher(st)
		if err != nil {
			return err
		}

		profile, err := enricher.Enrich(ctx, enrich.Request{
			Name:     enrichName,
			Domain:   domain,
			Location: enrichLocation,
		})
		if err != nil {
			return eris.Wrap(err, "enrich: run")
		}

		zap.L().Info("enrichment complete",
			zap.String("domain", profile.Domain),
			zap.Int("lead_score", profile.Scores.Lead),
			zap.Int("opportunity", profile.Opportunity.Total),
			zap.Int("recommendations", len(profile.Recommendations)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichName, "name", "", "business name for the local-pack query")
	enrichCmd.Flags().StringVar(&enrichLocation, "location", "", "city/region hint for provider queries")
	rootCmd.AddCommand(enrichCmd)
}
