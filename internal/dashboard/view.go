package dashboard

import (
	"time"

	"github.com/vmunix/arrdash/internal/backend"
)

// ServiceView is one row of the dashboard.
type ServiceView struct {
	Kind  backend.Kind `json:"kind"`
	Label string       `json:"label"`
	// Pending is set until the first poll completes.
	Pending  bool              `json:"pending"`
	Stale    bool              `json:"stale"`
	Current  *backend.Snapshot `json:"current,omitempty"`
	LastGood *backend.Snapshot `json:"last_good,omitempty"`
}

// View is the whole dashboard.
type View struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Interval    time.Duration `json:"interval"`
	Services    []ServiceView `json:"services"`
}

// Dashboard returns every enabled service in dashboard order. A service is
// stale when its current snapshot, or its last reachable one, is older than
// twice the poll interval.
func (s *Service) Dashboard() View {
	now := s.poller.Now()
	interval := s.poller.Interval()
	threshold := 2 * interval

	view := View{GeneratedAt: now, Interval: interval, Services: []ServiceView{}}
	for _, kind := range s.Enabled() {
		sv := ServiceView{Kind: kind, Label: kind.Label()}

		entry, ok := s.status.Entry(kind)
		if !ok {
			sv.Pending = true
			view.Services = append(view.Services, sv)
			continue
		}

		current := entry.Current
		sv.Current = &current
		sv.LastGood = entry.LastGood

		lastReachable := entry.FirstSeen
		if entry.LastGood != nil {
			lastReachable = entry.LastGood.FetchedAt
		}
		sv.Stale = now.Sub(current.FetchedAt) > threshold || now.Sub(lastReachable) > threshold

		view.Services = append(view.Services, sv)
	}
	return view
}
