package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscope/internal/lifecycle"
	"github.com/sells-group/leadscope/internal/model"
	"github.com/sells-group/leadscope/internal/store"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Manage prospect and watchlist items",
	Long:  "Commands for adding businesses to the sales pipeline, moving them through statuses, and inspecting their history.",
}

// -- pipeline add --

var pipelineAddCmd = &cobra.Command{
	Use:   "add <profile-id>",
	Short: "Add a profile to the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		itemType, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetString("priority")
		notes, _ := cmd.Flags().GetString("notes")

		st, mgr, err := initLifecycle(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		item, err := mgr.Add(ctx, args[0], model.ItemType(itemType), model.Priority(priority), notes)
		if err != nil {
			return eris.Wrap(err, "pipeline add")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(item)
	},
}

// -- pipeline list --

var pipelineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, _, err := initLifecycle(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		itemType, _ := cmd.Flags().GetString("type")
		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.ItemFilter{
			ItemType: model.ItemType(itemType),
			Status:   model.Status(status),
			Priority: model.Priority(priority),
			Limit:    limit,
		}

		items, err := st.ListItems(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "pipeline list")
		}

		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "No pipeline items found.")
			return nil
		}

		formatItemsList(os.Stdout, items)
		return nil
	},
}

// -- pipeline status --

var pipelineStatusCmd = &cobra.Command{
	Use:   "status <item-id> <status>",
	Short: "Transition an item to a new status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		note, _ := cmd.Flags().GetString("note")
		notes, _ := cmd.Flags().GetString("notes")
		priority, _ := cmd.Flags().GetString("priority")
		contacted, _ := cmd.Flags().GetBool("contacted")

		patch := buildPatch(notes, priority, contacted)

		st, mgr, err := initLifecycle(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		item, err := mgr.Transition(ctx, args[0], model.Status(args[1]), note, patch)
		if err != nil {
			return eris.Wrap(err, "pipeline status")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(item)
	},
}

// -- pipeline history --

var pipelineHistoryCmd = &cobra.Command{
	Use:   "history <item-id>",
	Short: "Show an item's status history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, mgr, err := initLifecycle(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		changes, err := mgr.History(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "pipeline history")
		}

		if len(changes) == 0 {
			fmt.Fprintln(os.Stderr, "No status changes recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "AT\tFROM\tTO\tNOTE")
		for _, c := range changes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.At.Format(time.RFC3339), c.From, c.To, c.Note)
		}
		return tw.Flush()
	},
}

// -- pipeline remove --

var pipelineRemoveCmd = &cobra.Command{
	Use:   "remove <item-id>",
	Short: "Remove an item and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, mgr, err := initLifecycle(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := mgr.Remove(ctx, args[0]); err != nil {
			return eris.Wrap(err, "pipeline remove")
		}

		fmt.Printf("Removed pipeline item %s\n", args[0])
		return nil
	},
}

func initLifecycle(ctx context.Context) (store.Store, *lifecycle.Manager, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	return st, lifecycle.NewManager(st), nil
}

// buildPatch converts the optional flags into a metadata patch, or nil when
// nothing was set.
func buildPatch(notes, priority string, contacted bool) *model.MetadataPatch {
	patch := &model.MetadataPatch{}
	touched := false

	if notes != "" {
		patch.Notes = &notes
		touched = true
	}
	if priority != "" {
		p := model.Priority(priority)
		patch.Priority = &p
		touched = true
	}
	if contacted {
		now := time.Now().UTC()
		patch.LastContacted = &now
		touched = true
	}

	if !touched {
		return nil
	}
	return patch
}

// formatItemsList writes a tabular list of pipeline items to w.
func formatItemsList(w io.Writer, items []model.PipelineItem) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROFILE\tTYPE\tSTATUS\tPRIORITY\tUPDATED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID,
			it.ProfileID,
			it.ItemType,
			it.Status,
			it.Priority,
			it.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
}

func init() {
	pipelineAddCmd.Flags().String("type", "prospect", "item type: prospect or website")
	pipelineAddCmd.Flags().String("priority", "medium", "priority: high, medium or low")
	pipelineAddCmd.Flags().String("notes", "", "initial notes")

	f := pipelineListCmd.Flags()
	f.String("type", "", "filter by item type")
	f.String("status", "", "filter by status")
	f.String("priority", "", "filter by priority")
	f.Int("limit", 50, "maximum number of results")

	pipelineStatusCmd.Flags().String("note", "", "note recorded on the status change")
	pipelineStatusCmd.Flags().String("notes", "", "replace the item's notes")
	pipelineStatusCmd.Flags().String("priority", "", "update the item's priority")
	pipelineStatusCmd.Flags().Bool("contacted", false, "stamp last-contacted with the current time")

	pipelineCmd.AddCommand(pipelineAddCmd)
	pipelineCmd.AddCommand(pipelineListCmd)
	pipelineCmd.AddCommand(pipelineStatusCmd)
	pipelineCmd.AddCommand(pipelineHistoryCmd)
	pipelineCmd.AddCommand(pipelineRemoveCmd)
	rootCmd.AddCommand(pipelineCmd)
}
