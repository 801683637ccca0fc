package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanpawarit/chinook-concierge/agent/approval"
)

var (
	approvalsStatus   string
	approvalsApprove  bool
	approvalsDeny     bool
	approvalsReviewer string
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Review queued customer-record updates",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approvals as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := approval.ParseStatus(approvalsStatus)
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		recs, err := approval.NewQueue(db).List(cmd.Context(), status)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}

var approvalsResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Approve or deny a pending update",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if approvalsApprove == approvalsDeny {
			return errors.New("exactly one of --approve or --deny is required")
		}
		reviewer := strings.TrimSpace(approvalsReviewer)
		if reviewer == "" {
			return errors.New("--reviewer is required")
		}

		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		rec, err := approval.NewQueue(db).Resolve(cmd.Context(), args[0], approvalsApprove, reviewer)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s by %s\n", rec.ID, rec.Status, rec.Reviewer)
		return nil
	},
}

func init() {
	approvalsListCmd.Flags().StringVar(&approvalsStatus, "status", "", "filter by status: pending, approved or denied")

	approvalsResolveCmd.Flags().BoolVar(&approvalsApprove, "approve", false, "approve the update")
	approvalsResolveCmd.Flags().BoolVar(&approvalsDeny, "deny", false, "deny the update")
	approvalsResolveCmd.Flags().StringVar(&approvalsReviewer, "reviewer", "", "name recorded with the decision")

	approvalsCmd.AddCommand(approvalsListCmd, approvalsResolveCmd)
}
