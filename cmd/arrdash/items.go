package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/arrdash/internal/backend"
)

var itemsCmd = &cobra.Command{
	Use:   "items <service>",
	Short: "List the items a service manages",
	Long: `List series, movies or torrents managed by a service.

Service names: sonarr, radarr, transmission (aliases: series, movies, torrents).

Examples:
  arrdash items sonarr
  arrdash items torrents --json`,
	Args: cobra.ExactArgs(1),
	RunE: runItemsCmd,
}

var addCmd = &cobra.Command{
	Use:   "add <service>",
	Short: "Add an item to a service",
	Long: `Add a series, movie or torrent.

Sonarr requires --title, --tvdb, --root and --profile.
Radarr requires --title, --tmdb, --root and --profile.
Transmission requires --url (a torrent URL or magnet link).

Use 'arrdash profiles <service>' to list root folders and quality profiles,
and 'arrdash search' to find TVDB/TMDB ids.

Examples:
  arrdash add sonarr --title "Severance" --tvdb 371980 --root /tv --profile 1
  arrdash add radarr --title "Alien" --tmdb 348 --root /movies --profile 4 --search
  arrdash add transmission --url "magnet:?xt=urn:btih:..." --paused`,
	Args: cobra.ExactArgs(1),
	RunE: runAddCmd,
}

var rmCmd = &cobra.Command{
	Use:   "rm <service> <id>",
	Short: "Remove an item from a service",
	Example: `  arrdash rm radarr 12
  arrdash rm transmission 3f2a... --delete-files`,
	Args: cobra.ExactArgs(2),
	RunE: runRmCmd,
}

var startCmd = &cobra.Command{
	Use:   "start <torrent-id>",
	Short: "Resume a torrent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTorrentAction(cmd, args[0], "start")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <torrent-id>",
	Short: "Pause a torrent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTorrentAction(cmd, args[0], "stop")
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <service>",
	Short: "Poll a service now",
	Args:  cobra.ExactArgs(1),
	RunE:  runRefreshCmd,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles <service>",
	Short: "List root folders and quality profiles",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesCmd,
}

func init() {
	rootCmd.AddCommand(itemsCmd, addCmd, rmCmd, startCmd, stopCmd, refreshCmd, profilesCmd)

	addCmd.Flags().String("title", "", "Series or movie title")
	addCmd.Flags().Int("year", 0, "Release year")
	addCmd.Flags().Int64("tvdb", 0, "TVDB id (sonarr)")
	addCmd.Flags().Int64("tmdb", 0, "TMDB id (radarr)")
	addCmd.Flags().String("root", "", "Root folder path")
	addCmd.Flags().Int("profile", 0, "Quality profile id")
	addCmd.Flags().Bool("unmonitored", false, "Add without monitoring")
	addCmd.Flags().Bool("search", false, "Search for the item right away")
	addCmd.Flags().String("url", "", "Torrent URL or magnet link (transmission)")
	addCmd.Flags().String("dir", "", "Download directory (transmission)")
	addCmd.Flags().Bool("paused", false, "Add the torrent paused (transmission)")

	rmCmd.Flags().Bool("delete-files", false, "Also delete files on disk")
}

func runItemsCmd(cmd *cobra.Command, args []string) error {
	kind, err := backend.ParseKind(args[0])
	if err != nil {
		return err
	}

	resp, err := NewClient(serverURL).Items(kind)
	if err != nil {
		return describeError(fmt.Sprintf("list %s", kind), err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	printItems(cmd.OutOrStdout(), kind, resp.Items)
	return nil
}

func printItems(w io.Writer, kind backend.Kind, items []backend.Item) {
	if len(items) == 0 {
		fmt.Fprintf(w, "No items in %s.\n", kind.Label())
		return
	}

	if kind == backend.KindTorrent {
		fmt.Fprintf(w, "  %-10s %-34s %-11s %6s %10s %9s\n", "ID", "NAME", "STATUS", "DONE", "SIZE", "ETA")
		rule(w, 86)
		for _, it := range items {
			fmt.Fprintf(w, "  %-10s %-34s %-11s %5.1f%% %10s %9s\n",
				truncate(it.ID, 10), truncate(it.Title, 34), it.Status, it.Progress*100, formatBytes(it.SizeBytes), formatETA(it.ETA))
		}
	} else {
		fmt.Fprintf(w, "  %-6s %-40s %-5s %-10s %s\n", "ID", "TITLE", "YEAR", "STATUS", "FILES")
		rule(w, 78)
		for _, it := range items {
			year := "-"
			if it.Year > 0 {
				year = fmt.Sprintf("%d", it.Year)
			}
			files := "missing"
			if it.HasFile {
				files = "on disk"
			}
			if !it.Monitored {
				files += " (unmonitored)"
			}
			fmt.Fprintf(w, "  %-6s %-40s %-5s %-10s %s\n", it.ID, truncate(it.Title, 40), year, it.Status, files)
		}
	}

	fmt.Fprintf(w, "\n%d item(s)\n", len(items))
}

// specFromFlags builds an ItemSpec from the add command's flags.
func specFromFlags(cmd *cobra.Command) backend.ItemSpec {
	f := cmd.Flags()
	var spec backend.ItemSpec
	spec.Title, _ = f.GetString("title")
	spec.Year, _ = f.GetInt("year")
	spec.TVDBID, _ = f.GetInt64("tvdb")
	spec.TMDBID, _ = f.GetInt64("tmdb")
	spec.RootFolder, _ = f.GetString("root")
	spec.QualityProfileID, _ = f.GetInt("profile")
	unmonitored, _ := f.GetBool("unmonitored")
	spec.Monitored = !unmonitored
	spec.SearchNow, _ = f.GetBool("search")
	spec.TorrentURL, _ = f.GetString("url")
	spec.DownloadDir, _ = f.GetString("dir")
	spec.Paused, _ = f.GetBool("paused")
	return spec
}

func runAddCmd(cmd *cobra.Command, args []string) error {
	kind, err := backend.ParseKind(args[0])
	if err != nil {
		return err
	}

	item, err := NewClient(serverURL).AddItem(kind, specFromFlags(cmd))
	if err != nil {
		return describeError(fmt.Sprintf("add to %s", kind), err)
	}

	if jsonOutput {
		printJSON(item)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (id %s) to %s\n", item.Title, item.ID, kind.Label())
	return nil
}

func runRmCmd(cmd *cobra.Command, args []string) error {
	kind, err := backend.ParseKind(args[0])
	if err != nil {
		return err
	}
	deleteFiles, _ := cmd.Flags().GetBool("delete-files")

	if err := NewClient(serverURL).RemoveItem(kind, args[1], deleteFiles); err != nil {
		return describeError(fmt.Sprintf("remove from %s", kind), err)
	}

	msg := fmt.Sprintf("Removed %s from %s", args[1], kind.Label())
	if deleteFiles {
		msg += " (files deleted)"
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runTorrentAction(cmd *cobra.Command, id, action string) error {
	if err := NewClient(serverURL).TorrentAction(id, action); err != nil {
		return describeError(action+" torrent", err)
	}
	verb := "Started"
	if action == "stop" {
		verb = "Stopped"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s torrent %s\n", verb, id)
	return nil
}

func runRefreshCmd(cmd *cobra.Command, args []string) error {
	kind, err := backend.ParseKind(args[0])
	if err != nil {
		return err
	}

	snap, err := NewClient(serverURL).Refresh(kind)
	if err != nil {
		return describeError(fmt.Sprintf("refresh %s", kind), err)
	}

	if jsonOutput {
		printJSON(snap)
		return nil
	}

	w := cmd.OutOrStdout()
	if !snap.Reachable {
		fmt.Fprintf(w, "%s is DOWN: %s\n", kind.Label(), snap.ErrorDetail)
		return nil
	}
	fmt.Fprintf(w, "%s is UP (%s, %s): %s\n", kind.Label(), snap.Version,
		snap.Latency.Round(time.Millisecond), summarize(kind, snap.Payload))
	return nil
}

func runProfilesCmd(cmd *cobra.Command, args []string) error {
	kind, err := backend.ParseKind(args[0])
	if err != nil {
		return err
	}

	client := NewClient(serverURL)
	folders, err := client.RootFolders(kind)
	if err != nil {
		return describeError("list root folders", err)
	}
	profiles, err := client.QualityProfiles(kind)
	if err != nil {
		return describeError("list quality profiles", err)
	}

	if jsonOutput {
		printJSON(map[string]any{"root_folders": folders, "quality_profiles": profiles})
		return nil
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Root folders")
	for _, f := range folders {
		fmt.Fprintf(w, "  %-40s %s free\n", f.Path, formatBytes(f.FreeSpace))
	}
	fmt.Fprintln(w, "\nQuality profiles")
	for _, p := range profiles {
		fmt.Fprintf(w, "  %-4d %s\n", p.ID, p.Name)
	}
	return nil
}

// describeError adds the vendor's response to a rejected request.
func describeError(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.VendorStatus != 0 {
		return fmt.Errorf("%s: %w\n  vendor responded %d: %s", op, err, apiErr.VendorStatus, truncate(apiErr.VendorBody, 500))
	}
	return fmt.Errorf("%s: %w", op, err)
}
