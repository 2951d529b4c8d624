// Package sonarr implements the series-manager backend against the Sonarr v3 API.
package sonarr

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	starrsonarr "golift.io/starr/sonarr"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/backend/arr"
)

// Client talks to one Sonarr instance.
type Client struct {
	api   *arr.Client
	starr *starrsonarr.Sonarr
	log   *slog.Logger
}

// New creates a Sonarr client for the endpoint.
func New(ep backend.Endpoint, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "sonarr")
	api := arr.New(ep, log)
	return &Client{
		api:   api,
		starr: starrsonarr.New(api.StarrConfig()),
		log:   log,
	}
}

// Kind implements backend.Client.
func (c *Client) Kind() backend.Kind { return backend.KindSeries }

// CheckHealth calls /api/v3/system/status.
func (c *Client) CheckHealth(ctx context.Context) backend.Health {
	return arr.Health(ctx, func(ctx context.Context) (string, error) {
		status, err := c.starr.GetSystemStatusContext(ctx)
		if err != nil {
			return "", err
		}
		return status.Version, nil
	})
}

type wantedMissing struct {
	TotalRecords int `json:"totalRecords"`
}

// FetchStats counts series and missing episodes. Both calls must succeed.
func (c *Client) FetchStats(ctx context.Context) (backend.Payload, error) {
	var all []*starrsonarr.Series
	var missing wantedMissing

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = c.starr.GetAllSeriesContext(gctx)
		return arr.FromStarr(err)
	})
	g.Go(func() error {
		// starr has no wanted/missing call.
		q := url.Values{
			"pageSize":      {"1"},
			"sortKey":       {"airDateUtc"},
			"sortDirection": {"descending"},
		}
		return c.api.Get(gctx, "/api/v3/wanted/missing", q, &missing)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return backend.SeriesStats{
		TotalSeries:     len(all),
		MissingEpisodes: missing.TotalRecords,
	}, nil
}

// ListItems returns every series.
func (c *Client) ListItems(ctx context.Context) ([]backend.Item, error) {
	all, err := c.starr.GetAllSeriesContext(ctx)
	if err != nil {
		return nil, arr.FromStarr(err)
	}
	items := make([]backend.Item, 0, len(all))
	for _, s := range all {
		if s != nil {
			items = append(items, toItem(s))
		}
	}
	return items, nil
}

// AddItem adds a series. Title, TVDB ID, root folder and quality profile are required.
func (c *Client) AddItem(ctx context.Context, spec backend.ItemSpec) (*backend.Item, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	created, err := c.starr.AddSeriesContext(ctx, &starrsonarr.AddSeriesInput{
		Title:            spec.Title,
		TvdbID:           spec.TVDBID,
		QualityProfileID: int64(spec.QualityProfileID),
		RootFolderPath:   spec.RootFolder,
		Monitored:        spec.Monitored,
		SeasonFolder:     true,
		AddOptions: &starrsonarr.AddSeriesOptions{
			SearchForMissingEpisodes: spec.SearchNow,
		},
	})
	if err != nil {
		return nil, arr.FromStarr(err)
	}

	c.log.Info("series added", "id", created.ID, "title", created.Title)
	item := toItem(created)
	return &item, nil
}

// Validate reports the fields Sonarr requires that spec lacks.
func Validate(spec backend.ItemSpec) error {
	var missing []string
	if spec.Title == "" {
		missing = append(missing, "title")
	}
	if spec.TVDBID <= 0 {
		missing = append(missing, "tvdb_id")
	}
	if spec.RootFolder == "" {
		missing = append(missing, "root_folder")
	}
	if spec.QualityProfileID <= 0 {
		missing = append(missing, "quality_profile_id")
	}
	return backend.MissingFields(missing...)
}

// RemoveItem deletes a series, optionally with its files.
func (c *Client) RemoveItem(ctx context.Context, id string, opts backend.RemoveOptions) error {
	seriesID, err := strconv.Atoi(id)
	if err != nil || seriesID <= 0 {
		return fmt.Errorf("%w: series id %q is not numeric", backend.ErrInvalidSpec, id)
	}

	if err := c.starr.DeleteSeriesContext(ctx, seriesID, opts.DeleteFiles, false); err != nil {
		return arr.FromStarr(err)
	}

	c.log.Info("series removed", "id", seriesID, "delete_files", opts.DeleteFiles)
	return nil
}

// Lookup searches Sonarr's metadata source.
func (c *Client) Lookup(ctx context.Context, term string) ([]backend.LookupResult, error) {
	raw, err := c.starr.GetSeriesLookupContext(ctx, term, 0)
	if err != nil {
		return nil, arr.FromStarr(err)
	}
	out := make([]backend.LookupResult, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		out = append(out, backend.LookupResult{
			Kind:     backend.KindSeries,
			Title:    r.Title,
			Year:     r.Year,
			TVDBID:   r.TvdbID,
			Overview: r.Overview,
			Added:    r.ID > 0,
		})
	}
	return out, nil
}

// RootFolders implements backend.ProfileLister.
func (c *Client) RootFolders(ctx context.Context) ([]backend.RootFolder, error) {
	raw, err := c.starr.GetRootFoldersContext(ctx)
	if err != nil {
		return nil, arr.FromStarr(err)
	}
	out := make([]backend.RootFolder, 0, len(raw))
	for _, r := range raw {
		if r != nil {
			out = append(out, backend.RootFolder{ID: r.ID, Path: r.Path, FreeSpace: r.FreeSpace})
		}
	}
	return out, nil
}

// QualityProfiles implements backend.ProfileLister.
func (c *Client) QualityProfiles(ctx context.Context) ([]backend.QualityProfile, error) {
	raw, err := c.starr.GetQualityProfilesContext(ctx)
	if err != nil {
		return nil, arr.FromStarr(err)
	}
	out := make([]backend.QualityProfile, 0, len(raw))
	for _, p := range raw {
		if p != nil {
			out = append(out, backend.QualityProfile{ID: int(p.ID), Name: p.Name})
		}
	}
	return out, nil
}

// Calendar lists episodes airing in [start, end), with their series.
func (c *Client) Calendar(ctx context.Context, start, end time.Time) ([]backend.CalendarEntry, error) {
	episodes, err := c.starr.GetCalendarContext(ctx, starrsonarr.Calendar{
		Start:         start,
		End:           end,
		Unmonitored:   true,
		IncludeSeries: true,
	})
	if err != nil {
		return nil, arr.FromStarr(err)
	}
	out := make([]backend.CalendarEntry, 0, len(episodes))
	for _, ep := range episodes {
		if ep == nil {
			continue
		}
		entry := backend.CalendarEntry{
			Kind:      backend.KindSeries,
			Title:     ep.Title,
			Episode:   fmt.Sprintf("S%02dE%02d", ep.SeasonNumber, ep.EpisodeNumber),
			Date:      ep.AirDateUtc,
			HasFile:   ep.HasFile,
			Monitored: ep.Monitored,
		}
		if ep.Series != nil {
			entry.Title = ep.Series.Title
			if ep.Title != "" {
				entry.Episode += " " + ep.Title
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// DiskSpace implements backend.DiskSpaceReporter.
func (c *Client) DiskSpace(ctx context.Context) ([]backend.Disk, error) {
	return c.api.DiskSpace(ctx)
}

// HostConfig implements backend.HostConfigurer.
func (c *Client) HostConfig(ctx context.Context) (backend.HostConfig, error) {
	return c.api.HostConfig(ctx)
}

// UpdateHostConfig implements backend.HostConfigurer.
func (c *Client) UpdateHostConfig(ctx context.Context, cfg backend.HostConfig) (backend.HostConfig, error) {
	return c.api.UpdateHostConfig(ctx, cfg)
}

func toItem(s *starrsonarr.Series) backend.Item {
	item := backend.Item{
		ID:        strconv.FormatInt(s.ID, 10),
		Title:     s.Title,
		Year:      s.Year,
		Status:    s.Status,
		Monitored: s.Monitored,
		Path:      s.Path,
	}
	if s.Statistics != nil {
		item.SizeBytes = s.Statistics.SizeOnDisk
		item.Progress = s.Statistics.PercentOfEpisodes / 100
		item.HasFile = s.Statistics.EpisodeFileCount > 0
	}
	return item
}
