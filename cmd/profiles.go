package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscope/internal/model"
	"github.com/sells-group/leadscope/internal/store"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect stored business profiles",
	Long:  "Commands for listing, viewing, and deleting enriched business profiles.",
}

// -- profiles list --

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List business profiles",
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

		domain, _ := cmd.Flags().GetString("domain")
		minLead, _ := cmd.Flags().GetInt("min-lead")
		minOpp, _ := cmd.Flags().GetInt("min-opportunity")
		byLead, _ := cmd.Flags().GetBool("by-lead")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.ProfileFilter{
			Domain:         domain,
			MinLeadScore:   minLead,
			MinOpportunity: minOpp,
			RankByLead:     byLead,
			Limit:          limit,
		}

		profiles, err := st.ListProfiles(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "profiles list")
		}

		if len(profiles) == 0 {
			fmt.Fprintln(os.Stderr, "No profiles found.")
			return nil
		}

		formatProfilesList(os.Stdout, profiles)
		return nil
	},
}

// -- profiles show --

var profilesShowCmd = &cobra.Command{
	Use:   "show <id-or-domain>",
	Short: "Show a full profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		profile, err := st.GetProfile(ctx, args[0])
		if eris.Is(err, store.ErrNotFound) {
			profile, err = st.GetProfileByDomain(ctx, args[0])
		}
		if err != nil {
			return eris.Wrapf(err, "profiles show %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

// -- profiles delete --

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.DeleteProfile(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "profiles delete %s", args[0])
		}

		fmt.Printf("Deleted profile %s\n", args[0])
		return nil
	},
}

// formatProfilesList writes a tabular list of profiles to w.
func formatProfilesList(w io.Writer, profiles []model.BusinessProfile) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOMAIN\tNAME\tLEAD\tOPPORTUNITY\tUPDATED")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			p.ID,
			p.Domain,
			p.Name,
			p.Scores.Lead,
			p.Opportunity.Total,
			p.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
}

func init() {
	f := profilesListCmd.Flags()
	f.String("domain", "", "filter by exact domain")
	f.Int("min-lead", 0, "minimum composite lead score")
	f.Int("min-opportunity", 0, "minimum opportunity score")
	f.Bool("by-lead", false, "rank by lead score instead of last update")
	f.Int("limit", 50, "maximum number of results")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	rootCmd.AddCommand(profilesCmd)
}
