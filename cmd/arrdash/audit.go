package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/arrdash/internal/backend"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the command audit log",
	Long: `Show commands sent to services, newest first.

Examples:
  arrdash audit
  arrdash audit --kind radarr --outcome failure
  arrdash audit --limit 100`,
	Args: cobra.NoArgs,
	RunE: runAuditCmd,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent service state changes",
	Args:  cobra.NoArgs,
	RunE:  runEventsCmd,
}

func init() {
	rootCmd.AddCommand(auditCmd, eventsCmd)

	auditCmd.Flags().StringP("kind", "k", "", "Filter by service")
	auditCmd.Flags().StringP("outcome", "o", "", "Filter by outcome (success, failure)")
	auditCmd.Flags().IntP("limit", "n", 50, "Maximum entries to show")
	auditCmd.Flags().Int("offset", 0, "Entries to skip")

	eventsCmd.Flags().StringP("kind", "k", "", "Filter by service")
	eventsCmd.Flags().IntP("limit", "n", 20, "Maximum events to show")
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	var q AuditQuery
	kind, _ := cmd.Flags().GetString("kind")
	if kind != "" {
		k, err := backend.ParseKind(kind)
		if err != nil {
			return err
		}
		q.Kind = string(k)
	}
	q.Outcome, _ = cmd.Flags().GetString("outcome")
	q.Limit, _ = cmd.Flags().GetInt("limit")
	q.Offset, _ = cmd.Flags().GetInt("offset")

	resp, err := NewClient(serverURL).Audit(q)
	if err != nil {
		return describeError("audit", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	printAudit(cmd.OutOrStdout(), resp)
	return nil
}

func printAudit(w io.Writer, r *AuditResponse) {
	if len(r.Items) == 0 {
		fmt.Fprintln(w, "No audit entries.")
		return
	}

	fmt.Fprintf(w, "  %-19s %-14s %-13s %-12s %-8s %s\n", "TIME", "ACTION", "SERVICE", "TARGET", "OUTCOME", "DETAIL")
	rule(w, 90)
	for _, e := range r.Items {
		target := e.TargetID
		if target == "" {
			target = "-"
		}
		fmt.Fprintf(w, "  %-19s %-14s %-13s %-12s %-8s %s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Action, e.TargetKind, truncate(target, 12), e.Outcome, truncate(e.Detail, 40))
	}

	shown := r.Offset + len(r.Items)
	if shown < r.Total {
		fmt.Fprintf(w, "\nShowing %d-%d of %d (use --offset to page)\n", r.Offset+1, shown, r.Total)
	}
}

func runEventsCmd(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	if kind != "" {
		k, err := backend.ParseKind(kind)
		if err != nil {
			return err
		}
		kind = string(k)
	}
	limit, _ := cmd.Flags().GetInt("limit")

	resp, err := NewClient(serverURL).Events(kind, limit)
	if err != nil {
		return describeError("events", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	w := cmd.OutOrStdout()
	if len(resp.Items) == 0 {
		fmt.Fprintln(w, "No events.")
		return nil
	}
	fmt.Fprintf(w, "  %-6s %-25s %-20s %s\n", "ID", "OCCURRED", "EVENT", "SERVICE")
	rule(w, 70)
	for _, e := range resp.Items {
		fmt.Fprintf(w, "  %-6d %-25s %-20s %s\n", e.ID, e.OccurredAt, e.EventType, e.EntityID)
	}
	return nil
}
