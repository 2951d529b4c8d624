package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/arrdash/internal/backend"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the dashboard",
	Long: `Show the status of every enabled service.

Each row shows reachability, latency and the service summary. Rows are
marked STALE when no fresh observation has been made for more than two
poll intervals, and PENDING until the first poll completes. When a
service is down its last known good summary is shown.

Examples:
  arrdash status
  arrdash status --json`,
	Args: cobra.NoArgs,
	RunE: runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)

	dash, err := client.Dashboard()
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}

	if jsonOutput {
		printJSON(dash)
		return nil
	}

	printDashboard(cmd.OutOrStdout(), serverURL, dash)
	return nil
}

func printDashboard(w io.Writer, server string, d *DashboardResponse) {
	fmt.Fprintf(w, "arrdash | Server: %s | Poll: %s\n\n", server, d.Interval)

	if len(d.Services) == 0 {
		fmt.Fprintln(w, "No services enabled.")
		return
	}

	fmt.Fprintf(w, "  %-13s %-8s %-9s %-10s %s\n", "SERVICE", "STATE", "LATENCY", "UPDATED", "SUMMARY")
	rule(w, 78)

	for _, sv := range d.Services {
		state, latency, updated, summary, lastGood := "PENDING", "-", "-", "", ""

		if sv.Current != nil {
			updated = formatAgo(d.GeneratedAt, sv.Current.FetchedAt)
			latency = sv.Current.Latency.Round(time.Millisecond).String()
			if sv.Current.Reachable {
				state = "UP"
				summary = summarize(sv.Kind, sv.Current.Payload)
			} else {
				state = "DOWN"
				summary = sv.Current.ErrorDetail
				if sv.LastGood != nil {
					lastGood = fmt.Sprintf("last good %s: %s",
						formatAgo(d.GeneratedAt, sv.LastGood.FetchedAt), summarize(sv.Kind, sv.LastGood.Payload))
				}
			}
		}
		if sv.Stale {
			state += "*"
		}

		fmt.Fprintf(w, "  %-13s %-8s %-9s %-10s %s\n", sv.Label, state, latency, updated, truncate(summary, 60))
		if lastGood != "" {
			fmt.Fprintf(w, "  %-13s %-8s %-9s %-10s %s\n", "", "", "", "", lastGood)
		}
	}

	for _, sv := range d.Services {
		if sv.Stale {
			fmt.Fprintln(w, "\n  * stale: no fresh observation in the last two poll intervals")
			break
		}
	}

	for _, sv := range d.Services {
		if sv.Kind == backend.KindTorrent && sv.Current != nil && sv.Current.Reachable {
			printActiveTorrents(w, sv.Current.Payload)
		}
	}
}

// decodePayload decodes a raw snapshot payload into the type for kind.
func decodePayload(kind backend.Kind, raw json.RawMessage) (backend.Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var p backend.Payload
	var err error
	switch kind {
	case backend.KindSeries:
		var s backend.SeriesStats
		err = json.Unmarshal(raw, &s)
		p = s
	case backend.KindMovie:
		var s backend.MovieStats
		err = json.Unmarshal(raw, &s)
		p = s
	case backend.KindIndexer:
		var s backend.IndexerStats
		err = json.Unmarshal(raw, &s)
		p = s
	case backend.KindTorrent:
		var s backend.TorrentStats
		err = json.Unmarshal(raw, &s)
		p = s
	default:
		return nil, fmt.Errorf("unknown payload kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func summarize(kind backend.Kind, raw json.RawMessage) string {
	p, err := decodePayload(kind, raw)
	if err != nil {
		return "unreadable payload"
	}

	switch s := p.(type) {
	case backend.SeriesStats:
		return fmt.Sprintf("%d series, %d missing episodes", s.TotalSeries, s.MissingEpisodes)
	case backend.MovieStats:
		return fmt.Sprintf("%d movies, %d missing", s.TotalMovies, s.MissingOrUndownloaded)
	case backend.IndexerStats:
		healthy := 0
		var failing []string
		for _, ix := range s.Indexers {
			if ix.Healthy {
				healthy++
			} else {
				failing = append(failing, ix.Name)
			}
		}
		out := fmt.Sprintf("%d/%d indexers healthy", healthy, len(s.Indexers))
		if len(failing) > 0 {
			out += " (failing: " + strings.Join(failing, ", ") + ")"
		}
		return out
	case backend.TorrentStats:
		var down, up int64
		for _, t := range s.ActiveTorrents {
			down += t.DownloadRate
			up += t.UploadRate
		}
		return fmt.Sprintf("%d active, down %s, up %s", len(s.ActiveTorrents), formatSpeed(down), formatSpeed(up))
	default:
		return ""
	}
}

func printActiveTorrents(w io.Writer, raw json.RawMessage) {
	p, err := decodePayload(backend.KindTorrent, raw)
	if err != nil || p == nil {
		return
	}
	stats := p.(backend.TorrentStats)
	if len(stats.ActiveTorrents) == 0 {
		return
	}

	fmt.Fprintln(w, "\nActive torrents")
	fmt.Fprintf(w, "  %-10s %-36s %6s %11s %9s\n", "ID", "NAME", "DONE", "DOWN", "ETA")
	rule(w, 78)
	for _, t := range stats.ActiveTorrents {
		fmt.Fprintf(w, "  %-10s %-36s %5.1f%% %11s %9s\n",
			truncate(t.ID, 10), truncate(t.Name, 36), t.ProgressFraction*100, formatSpeed(t.DownloadRate), formatETA(t.ETA))
	}
}
