package dashboard

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/vmunix/arrdash/internal/backend"
)

// DefaultCalendarDays is how far ahead Calendar looks when asked for zero days.
const DefaultCalendarDays = 7

// maxCalendarDays bounds the window a caller may request.
const maxCalendarDays = 90

// CalendarResult lists upcoming releases across services.
type CalendarResult struct {
	Start   time.Time               `json:"start"`
	End     time.Time               `json:"end"`
	Entries []backend.CalendarEntry `json:"entries"`
	Errors  map[backend.Kind]string `json:"errors,omitempty"`
}

// Calendar returns releases from the start of today (UTC) through the next
// days days, sorted by date. Like Search, it fails only when every service
// failed.
func (s *Service) Calendar(ctx context.Context, days int) (*CalendarResult, error) {
	if days == 0 {
		days = DefaultCalendarDays
	}
	if days < 0 || days > maxCalendarDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", backend.ErrInvalidSpec, maxCalendarDays)
	}

	start := s.poller.Now().UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, days)

	outs, err := fanOut(ctx, s, "calendar", func(ctx context.Context, cl backend.CalendarLister) ([]backend.CalendarEntry, error) {
		return cl.Calendar(ctx, start, end)
	})
	if err != nil {
		return nil, err
	}
	errs, err := collectErrors(s, "calendar", outs)
	if err != nil {
		return nil, err
	}

	res := &CalendarResult{Start: start, End: end, Entries: []backend.CalendarEntry{}, Errors: errs}
	for _, o := range outs {
		res.Entries = append(res.Entries, o.val...)
	}
	slices.SortStableFunc(res.Entries, func(a, b backend.CalendarEntry) int {
		return a.Date.Compare(b.Date)
	})
	return res, nil
}

// DiskSpaceResult groups each service's disks by kind.
type DiskSpaceResult struct {
	Disks  map[backend.Kind][]backend.Disk `json:"disks"`
	Errors map[backend.Kind]string         `json:"errors,omitempty"`
}

// DiskSpace asks every service that reports disks, concurrently.
func (s *Service) DiskSpace(ctx context.Context) (*DiskSpaceResult, error) {
	outs, err := fanOut(ctx, s, "disk space", func(ctx context.Context, dr backend.DiskSpaceReporter) ([]backend.Disk, error) {
		return dr.DiskSpace(ctx)
	})
	if err != nil {
		return nil, err
	}
	errs, err := collectErrors(s, "disk space", outs)
	if err != nil {
		return nil, err
	}

	res := &DiskSpaceResult{Disks: make(map[backend.Kind][]backend.Disk), Errors: errs}
	for _, o := range outs {
		if o.err == nil {
			res.Disks[o.kind] = o.val
		}
	}
	return res, nil
}
