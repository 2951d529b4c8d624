package dashboard

import (
	"context"
	"fmt"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/pkg/titlematch"
)

// SearchResult is the merged lookup across services.
type SearchResult struct {
	Term    string                  `json:"term"`
	Results []backend.LookupResult  `json:"results"`
	Errors  map[backend.Kind]string `json:"errors,omitempty"`
}

// Search looks term up in every service that supports it, concurrently, and
// ranks the merged results by title similarity. A failing service is
// reported in Errors; Search fails only when every service failed.
func (s *Service) Search(ctx context.Context, term string) (*SearchResult, error) {
	query := titlematch.Query(term)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search term", backend.ErrInvalidSpec)
	}

	outs, err := fanOut(ctx, s, "search", func(ctx context.Context, sr backend.Searcher) ([]backend.LookupResult, error) {
		return sr.Lookup(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	errs, err := collectErrors(s, "lookup", outs)
	if err != nil {
		return nil, err
	}

	res := &SearchResult{Term: query, Results: []backend.LookupResult{}, Errors: errs}
	var merged []backend.LookupResult
	for _, o := range outs {
		merged = append(merged, o.val...)
	}

	titles := make([]string, len(merged))
	for i, r := range merged {
		titles[i] = r.Title
	}
	for _, ranked := range titlematch.Rank(query, titles) {
		r := merged[ranked.Index]
		r.Score = ranked.Score
		res.Results = append(res.Results, r)
	}
	return res, nil
}
