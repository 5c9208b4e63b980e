package ctl

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"frameworks/almanac/internal/drafts"

	"github.com/spf13/cobra"
)

func (a *app) newPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Review pending knowledge entries",
	}
	cmd.AddCommand(a.newPendingListCmd())
	cmd.AddCommand(a.newPendingApproveCmd())
	cmd.AddCommand(a.newPendingRejectCmd())
	return cmd
}

func (a *app) newPendingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending entries for a tenant, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := a.tenant()
			if err != nil {
				return err
			}
			reviewer, release, err := a.openReviewer(cmd.Context(), a.v)
			if err != nil {
				return err
			}
			defer release()

			entries, err := reviewer.ListPending(cmd.Context(), tenant)
			if err != nil {
				return fmt.Errorf("list pending: %w", err)
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending entries.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tREVIEW\tCREATED\tTITLE")
			for _, e := range entries {
				review := ""
				if e.Metadata.NeedsReview {
					review = "needs review"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.SourceType, review, e.CreatedAt.Format("2006-01-02 15:04"), e.Title)
			}
			return w.Flush()
		},
	}
}

func (a *app) newPendingApproveCmd() *cobra.Command {
	var (
		reviewer string
		title    string
		content  string
		category string
		tags     []string
	)
	cmd := &cobra.Command{
		Use:   "approve <pending-id>",
		Short: "Approve a pending entry into the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := a.tenant()
			if err != nil {
				return err
			}
			if strings.TrimSpace(reviewer) == "" {
				return errors.New("--reviewer is required")
			}

			var edit *drafts.Edit
			flags := cmd.Flags()
			if flags.Changed("title") || flags.Changed("content") || flags.Changed("category") || flags.Changed("tag") {
				edit = &drafts.Edit{}
				if flags.Changed("title") {
					edit.Title = &title
				}
				if flags.Changed("content") {
					edit.Content = &content
				}
				if flags.Changed("category") {
					edit.Category = &category
				}
				if flags.Changed("tag") {
					edit.Tags = tags
				}
			}

			r, release, err := a.openReviewer(cmd.Context(), a.v)
			if err != nil {
				return err
			}
			defer release()

			doc, err := r.Approve(cmd.Context(), tenant, args[0], reviewer, edit)
			if err != nil {
				var partial *drafts.PartialApprovalError
				if errors.As(err, &partial) {
					return fmt.Errorf("document %s was stored but entry %s is still pending; reconcile manually: %w", partial.DocumentID, partial.PendingID, err)
				}
				return fmt.Errorf("approve %s: %w", args[0], err)
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), doc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Approved %s as document %s (%s)\n", args[0], doc.ID, doc.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer id")
	cmd.Flags().StringVar(&title, "title", "", "replace the title")
	cmd.Flags().StringVar(&content, "content", "", "replace the content")
	cmd.Flags().StringVar(&category, "category", "", "replace the category")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replace the tags (repeatable)")
	return cmd
}

func (a *app) newPendingRejectCmd() *cobra.Command {
	var reviewer, reason string
	cmd := &cobra.Command{
		Use:   "reject <pending-id>",
		Short: "Reject a pending entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := a.tenant()
			if err != nil {
				return err
			}
			if strings.TrimSpace(reviewer) == "" {
				return errors.New("--reviewer is required")
			}
			r, release, err := a.openReviewer(cmd.Context(), a.v)
			if err != nil {
				return err
			}
			defer release()

			if err := r.Reject(cmd.Context(), tenant, args[0], reviewer, reason); err != nil {
				return fmt.Errorf("reject %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer id")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}
