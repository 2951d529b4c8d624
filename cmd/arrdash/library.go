package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show upcoming episodes and movie releases",
	Long: `List what Sonarr and Radarr expect to release over the next few days,
oldest first.

Examples:
  arrdash calendar
  arrdash calendar --days 30`,
	Args: cobra.NoArgs,
	RunE: runCalendarCmd,
}

var diskSpaceCmd = &cobra.Command{
	Use:   "diskspace",
	Short: "Show free space on library disks",
	Args:  cobra.NoArgs,
	RunE:  runDiskSpaceCmd,
}

func init() {
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(diskSpaceCmd)
	calendarCmd.Flags().IntP("days", "d", 0, "Days to look ahead (default 7, max 90)")
}

func runCalendarCmd(cmd *cobra.Command, _ []string) error {
	days, _ := cmd.Flags().GetInt("days")

	resp, err := NewClient(serverURL).Calendar(days)
	if err != nil {
		return describeError("calendar", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	printCalendar(cmd.OutOrStdout(), resp)
	return nil
}

func printCalendar(w io.Writer, r *CalendarResponse) {
	if len(r.Entries) == 0 {
		fmt.Fprintf(w, "Nothing scheduled between %s and %s\n",
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	} else {
		fmt.Fprintf(w, "  %-10s %-7s %-35s %-30s %s\n", "DATE", "SERVICE", "TITLE", "EPISODE", "")
		rule(w, 92)
		for _, e := range r.Entries {
			ep := "-"
			if e.Episode != "" {
				ep = e.Episode
			}
			state := ""
			switch {
			case e.HasFile:
				state = "[downloaded]"
			case !e.Monitored:
				state = "[unmonitored]"
			}
			fmt.Fprintf(w, "  %-10s %-7s %-35s %-30s %s\n",
				e.Date.Local().Format("2006-01-02"), e.Kind, truncate(e.Title, 35), truncate(ep, 30), state)
		}
	}

	printFailures(w, r.Errors)
}

func runDiskSpaceCmd(cmd *cobra.Command, _ []string) error {
	resp, err := NewClient(serverURL).DiskSpace()
	if err != nil {
		return describeError("disk space", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	printDiskSpace(cmd.OutOrStdout(), resp)
	return nil
}

func printDiskSpace(w io.Writer, r *DiskSpaceResponse) {
	kinds := make([]string, 0, len(r.Disks))
	for k := range r.Disks {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	if len(kinds) == 0 {
		fmt.Fprintln(w, "No disks reported")
	} else {
		fmt.Fprintf(w, "  %-7s %-35s %10s %10s %5s\n", "SERVICE", "PATH", "FREE", "TOTAL", "USED")
		rule(w, 72)
		for _, k := range kinds {
			for _, d := range r.Disks[k] {
				used := "-"
				if d.TotalSpace > 0 {
					used = fmt.Sprintf("%d%%", (d.TotalSpace-d.FreeSpace)*100/d.TotalSpace)
				}
				fmt.Fprintf(w, "  %-7s %-35s %10s %10s %5s\n",
					k, truncate(d.Path, 35), formatBytes(d.FreeSpace), formatBytes(d.TotalSpace), used)
			}
		}
	}

	printFailures(w, r.Errors)
}
