// Package radarr implements the movie-manager backend against the Radarr v3 API.
package radarr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	starrradarr "golift.io/starr/radarr"

	"github.com/vmunix/arrdash/internal/backend"
	"github.com/vmunix/arrdash/internal/backend/arr"
)

// Client talks to one Radarr instance.
type Client struct {
	api   *arr.Client
	starr *starrradarr.Radarr
	log   *slog.Logger
}

// New creates a Radarr client for the endpoint.
func New(ep backend.Endpoint, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "radarr")
	api := arr.New(ep, log)
	return &Client{
		api:   api,
		starr: starrradarr.New(api.StarrConfig()),
		log:   log,
	}
}

// Kind implements backend.Client.
func (c *Client) Kind() backend.Kind { return backend.KindMovie }

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

// FetchStats counts movies and monitored movies without a file.
func (c *Client) FetchStats(ctx context.Context) (backend.Payload, error) {
	all, err := c.starr.GetMovieContext(ctx, 0)
	if err != nil {
		return nil, arr.FromStarr(err)
	}

	missing := 0
	for _, m := range all {
		if m != nil && m.Monitored && !m.HasFile {
			missing++
		}
	}

	return backend.MovieStats{
		TotalMovies:           len(all),
		MissingOrUndownloaded: missing,
	}, nil
}

// ListItems returns every movie.
func (c *Client) ListItems(ctx context.Context) ([]backend.Item, error) {
	all, err := c.starr.GetMovieContext(ctx, 0)
	if err != nil {
		return nil, arr.FromStarr(err)
	}
	items := make([]backend.Item, 0, len(all))
	for _, m := range all {
		if m != nil {
			items = append(items, toItem(m))
		}
	}
	return items, nil
}

// AddItem adds a movie. Title, TMDB ID, root folder and quality profile are required.
func (c *Client) AddItem(ctx context.Context, spec backend.ItemSpec) (*backend.Item, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	created, err := c.starr.AddMovieContext(ctx, &starrradarr.AddMovieInput{
		Title:               spec.Title,
		TmdbID:              spec.TMDBID,
		Year:                spec.Year,
		QualityProfileID:    int64(spec.QualityProfileID),
		RootFolderPath:      spec.RootFolder,
		Monitored:           spec.Monitored,
		MinimumAvailability: starrradarr.AvailabilityReleased,
		AddOptions: &starrradarr.AddMovieOptions{
			SearchForMovie: spec.SearchNow,
		},
	})
	if err != nil {
		return nil, arr.FromStarr(err)
	}

	c.log.Info("movie added", "id", created.ID, "title", created.Title)
	item := toItem(created)
	return &item, nil
}

// Validate reports the fields Radarr requires that spec lacks.
func Validate(spec backend.ItemSpec) error {
	var missing []string
	if spec.Title == "" {
		missing = append(missing, "title")
	}
	if spec.TMDBID <= 0 {
		missing = append(missing, "tmdb_id")
	}
	if spec.RootFolder == "" {
		missing = append(missing, "root_folder")
	}
	if spec.QualityProfileID <= 0 {
		missing = append(missing, "quality_profile_id")
	}
	return backend.MissingFields(missing...)
}

// RemoveItem deletes a movie, optionally with its files.
func (c *Client) RemoveItem(ctx context.Context, id string, opts backend.RemoveOptions) error {
	movieID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || movieID <= 0 {
		return fmt.Errorf("%w: movie id %q is not numeric", backend.ErrInvalidSpec, id)
	}

	if err := c.starr.DeleteMovieContext(ctx, movieID, opts.DeleteFiles, false); err != nil {
		return arr.FromStarr(err)
	}

	c.log.Info("movie removed", "id", movieID, "delete_files", opts.DeleteFiles)
	return nil
}

// Lookup searches Radarr's metadata source.
func (c *Client) Lookup(ctx context.Context, term string) ([]backend.LookupResult, error) {
	raw, err := c.starr.LookupContext(ctx, term)
	if err != nil {
		return nil, arr.FromStarr(err)
	}
	out := make([]backend.LookupResult, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		out = append(out, backend.LookupResult{
			Kind:     backend.KindMovie,
			Title:    r.Title,
			Year:     r.Year,
			TMDBID:   r.TmdbID,
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

// Calendar lists movies with a cinema, digital or physical release in [start, end).
func (c *Client) Calendar(ctx context.Context, start, end time.Time) ([]backend.CalendarEntry, error) {
	movies, err := c.starr.GetCalendarContext(ctx, starrradarr.Calendar{
		Start:       start,
		End:         end,
		Unmonitored: true,
	})
	if err != nil {
		return nil, arr.FromStarr(err)
	}
	out := make([]backend.CalendarEntry, 0, len(movies))
	for _, m := range movies {
		if m == nil {
			continue
		}
		out = append(out, backend.CalendarEntry{
			Kind:      backend.KindMovie,
			Title:     m.Title,
			Date:      releaseDate(m, start, end),
			HasFile:   m.HasFile,
			Monitored: m.Monitored,
		})
	}
	return out, nil
}

// releaseDate picks the first release of m that falls inside the window,
// falling back to the cinema date.
func releaseDate(m *starrradarr.Movie, start, end time.Time) time.Time {
	for _, t := range []time.Time{m.InCinemas, m.DigitalRelease, m.PhysicalRelease} {
		if !t.IsZero() && !t.Before(start) && t.Before(end) {
			return t
		}
	}
	return m.InCinemas
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

func toItem(m *starrradarr.Movie) backend.Item {
	item := backend.Item{
		ID:        strconv.FormatInt(m.ID, 10),
		Title:     m.Title,
		Year:      m.Year,
		Status:    m.Status,
		Monitored: m.Monitored,
		HasFile:   m.HasFile,
		Path:      m.Path,
		SizeBytes: m.SizeOnDisk,
	}
	if m.HasFile {
		item.Progress = 1
	}
	return item
}
