package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/arrdash/pkg/titlematch"
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Look up series and movies",
	Long: `Search Sonarr and Radarr for a title. Results from both services are
ranked by how closely their titles match the term.

Examples:
  arrdash search severance
  arrdash search "the matrix" --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearchCmd,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntP("limit", "n", 20, "Maximum results to show")
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	term := strings.Join(args, " ")
	limit, _ := cmd.Flags().GetInt("limit")

	resp, err := NewClient(serverURL).Search(term)
	if err != nil {
		return describeError("search", err)
	}

	if limit > 0 && len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	printSearch(cmd.OutOrStdout(), resp)
	return nil
}

func printSearch(w io.Writer, r *SearchResponse) {
	if len(r.Results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", r.Term)
	} else {
		fmt.Fprintf(w, "  %-3s %-7s %-40s %-5s %-10s %-7s %s\n", "#", "SERVICE", "TITLE", "YEAR", "ID", "MATCH", "")
		rule(w, 86)
		for i, res := range r.Results {
			year := "-"
			if res.Year > 0 {
				year = fmt.Sprintf("%d", res.Year)
			}
			id := "-"
			switch {
			case res.TVDBID > 0:
				id = fmt.Sprintf("tvdb:%d", res.TVDBID)
			case res.TMDBID > 0:
				id = fmt.Sprintf("tmdb:%d", res.TMDBID)
			}
			added := ""
			if res.Added {
				added = "[added]"
			}
			fmt.Fprintf(w, "  %-3d %-7s %-40s %-5s %-10s %-7s %s\n",
				i+1, res.Kind, truncate(res.Title, 40), year, id, titlematch.ConfidenceOf(res.Score), added)
		}
	}

	printFailures(w, r.Errors)
}

// printFailures lists per-service errors from a partial result.
func printFailures(w io.Writer, errs map[string]string) {
	if len(errs) == 0 {
		return
	}
	kinds := make([]string, 0, len(errs))
	for k := range errs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Fprintln(w, "\nSome services failed:")
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %s\n", k, errs[k])
	}
}
