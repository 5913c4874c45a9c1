package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/tilevault/internal/config"
	"github.com/cesargomez89/tilevault/internal/constants"
	"github.com/cesargomez89/tilevault/internal/domain"
	"github.com/cesargomez89/tilevault/internal/downloader"
	"github.com/cesargomez89/tilevault/internal/logger"
	"github.com/cesargomez89/tilevault/internal/sources"
	"github.com/cesargomez89/tilevault/internal/store"
	"github.com/cesargomez89/tilevault/internal/tiles"
	"github.com/cesargomez89/tilevault/internal/tilestore"
)

type DownloadRequest struct {
	LocationName *string          `json:"location_name,omitempty"`
	Name         string           `json:"name"`
	Source       string           `json:"source"`
	Bounds       domain.GeoBounds `json:"bounds"`
	MinZoom      int              `json:"min_zoom"`
	MaxZoom      int              `json:"max_zoom"`
}

type DownloadResult struct {
	JobID      string           `json:"job_id"`
	Status     domain.JobStatus `json:"status"`
	TotalTiles int64            `json:"total_tiles"`
}

type Estimate struct {
	TileCount            int64   `json:"tile_count"`
	EstimatedSizeMB      float64 `json:"estimated_size_mb"`
	EstimatedTimeMinutes float64 `json:"estimated_time_minutes"`
}

// JobStatus is a job record with its best known counters: live ones while
// the job is active, the last persisted snapshot otherwise.
type JobStatus struct {
	*domain.Job
	Progress domain.Progress `json:"progress"`
	Active   bool            `json:"active"`
}

type Stats struct {
	Sources       []domain.SourceStats `json:"sources"`
	Jobs          *store.JobStats      `json:"jobs"`
	TotalTiles    int64                `json:"total_tiles"`
	CacheSize     int                  `json:"cache_size"`
	CacheCapacity int                  `json:"cache_capacity"`
	ActiveJobs    int                  `json:"active_jobs"`
}

// TileService is the job-oriented entry point used by the HTTP layer.
type TileService struct {
	Repo      *store.DB
	Tiles     *tilestore.Store
	Scheduler *downloader.Scheduler
	Sources   *sources.Manager
	Logger    *logger.Logger

	rateLimit   time.Duration
	concurrency int
	maxTiles    int64
}

func NewTileService(repo *store.DB, tileStore *tilestore.Store, scheduler *downloader.Scheduler, srcs *sources.Manager, cfg *config.Config, log *logger.Logger) *TileService {
	return &TileService{
		Repo:        repo,
		Tiles:       tileStore,
		Scheduler:   scheduler,
		Sources:     srcs,
		Logger:      log.WithComponent("tile_service"),
		rateLimit:   cfg.RateLimit,
		concurrency: cfg.Concurrency,
		maxTiles:    cfg.MaxTilesPerJob,
	}
}

// Download validates the request, records a new job and hands its tiles to
// the scheduler.
func (s *TileService) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	src, err := s.source(req.Source)
	if err != nil {
		return nil, err
	}
	if err := tiles.ValidateBounds(req.Bounds); err != nil {
		return nil, err
	}
	if err := s.validateZoom(src, req.MinZoom, req.MaxZoom); err != nil {
		return nil, err
	}

	total := tiles.Count(req.Bounds, req.MinZoom, req.MaxZoom)
	if err := s.checkSize(total); err != nil {
		return nil, err
	}
	if err := s.checkAccepting(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = fmt.Sprintf("%s z%d-%d", src.Name, req.MinZoom, req.MaxZoom)
	}

	now := time.Now().UTC()
	lat, lng := req.Bounds.Center()
	job := &domain.Job{
		ID:           uuid.New().String(),
		Name:         name,
		Source:       src.ID,
		Status:       domain.JobStatusPending,
		Bounds:       req.Bounds,
		CenterLat:    lat,
		CenterLng:    lng,
		MinZoom:      req.MinZoom,
		MaxZoom:      req.MaxZoom,
		TotalTiles:   total,
		LocationName: cleanLocation(req.LocationName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.startRun(job, src); err != nil {
		if delErr := s.Repo.DeleteJob(job.ID); delErr != nil {
			s.Logger.Error("Failed to remove job that never started", "job_id", job.ID, "error", delErr)
		}
		return nil, err
	}

	s.Logger.Info("Download started", "job_id", job.ID, "source", src.ID, "min_zoom", job.MinZoom, "max_zoom", job.MaxZoom, "total", total)
	return &DownloadResult{JobID: job.ID, TotalTiles: total, Status: domain.JobStatusRunning}, nil
}

// Estimate predicts the size and duration of a download without touching
// any state.
func (s *TileService) Estimate(bounds domain.GeoBounds, minZoom, maxZoom int) (*Estimate, error) {
	if err := tiles.ValidateBounds(bounds); err != nil {
		return nil, err
	}
	if err := tiles.ValidateZoomRange(minZoom, maxZoom); err != nil {
		return nil, err
	}

	count := tiles.Count(bounds, minZoom, maxZoom)

	perTile := constants.AvgFetchLatency
	if s.concurrency > 1 {
		perTile /= time.Duration(s.concurrency)
	}
	if s.rateLimit > perTile {
		perTile = s.rateLimit
	}

	return &Estimate{
		TileCount:            count,
		EstimatedSizeMB:      float64(count) * constants.AvgTileSizeKB / 1024,
		EstimatedTimeMinutes: float64(count) * perTile.Minutes(),
	}, nil
}

// ExtendJob widens a job's zoom range and restarts it. Tiles already stored
// are skipped, so the new run fetches only what is missing, including tiles
// that failed in earlier runs.
func (s *TileService) ExtendJob(ctx context.Context, id string, minZoom, maxZoom int) (*domain.Job, error) {
	if err := tiles.ValidateZoomRange(minZoom, maxZoom); err != nil {
		return nil, err
	}

	job, err := s.Repo.GetJob(id)
	if err != nil {
		return nil, err
	}
	src, err := s.source(job.Source)
	if err != nil {
		return nil, err
	}

	newMin := min(job.MinZoom, minZoom)
	newMax := max(job.MaxZoom, maxZoom)
	if err := s.validateZoom(src, newMin, newMax); err != nil {
		return nil, err
	}

	total := tiles.Count(job.Bounds, newMin, newMax)
	if err := s.checkSize(total); err != nil {
		return nil, err
	}
	if err := s.checkAccepting(); err != nil {
		return nil, err
	}

	if err := s.Repo.UpdateJobZoom(id, newMin, newMax, total); err != nil {
		return nil, fmt.Errorf("failed to update job zoom: %w", err)
	}
	oldMin, oldMax, oldTotal := job.MinZoom, job.MaxZoom, job.TotalTiles
	job.MinZoom, job.MaxZoom, job.TotalTiles = newMin, newMax, total

	if err := s.startRun(job, src); err != nil {
		if zErr := s.Repo.UpdateJobZoom(id, oldMin, oldMax, oldTotal); zErr != nil {
			s.Logger.Error("Failed to restore job zoom", "job_id", id, "error", zErr)
		}
		return nil, err
	}
	s.Logger.Info("Job extended", "job_id", id, "min_zoom", newMin, "max_zoom", newMax, "total", total)

	return s.Repo.GetJob(id)
}

// GetTile returns stored tile bytes. found is false when the tile is not
// stored; the source need not still be configured.
func (s *TileService) GetTile(ctx context.Context, source string, z, x, y int) (data []byte, found bool, err error) {
	if err := tiles.ValidateTile(z, x, y); err != nil {
		return nil, false, err
	}
	return s.Tiles.Get(ctx, source, z, x, y)
}

func (s *TileService) GetJobStatus(ctx context.Context, id string) (*JobStatus, error) {
	job, err := s.Repo.GetJob(id)
	if err != nil {
		return nil, err
	}
	return s.withProgress(job), nil
}

// GetJobs lists every job, newest first.
func (s *TileService) GetJobs(ctx context.Context) ([]*JobStatus, error) {
	jobs, err := s.Repo.ListJobs()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*JobStatus, 0, len(jobs))
	for _, job := range jobs {
		result = append(result, s.withProgress(job))
	}
	return result, nil
}

func (s *TileService) withProgress(job *domain.Job) *JobStatus {
	if p, ok := s.Scheduler.Status(job.ID); ok {
		job.Status = domain.JobStatusRunning
		job.DownloadedTiles, job.SkippedTiles, job.FailedTiles = p.Downloaded, p.Skipped, p.Failed
		return &JobStatus{Job: job, Progress: p, Active: true}
	}

	return &JobStatus{
		Job: job,
		Progress: domain.Progress{
			Total:      job.TotalTiles,
			Downloaded: job.DownloadedTiles,
			Skipped:    job.SkippedTiles,
			Failed:     job.FailedTiles,
			Percent:    domain.ProgressPercent(job.DownloadedTiles, job.TotalTiles),
		},
	}
}

// CancelJob stops an active job. It reports false when the job exists but
// was not running.
func (s *TileService) CancelJob(ctx context.Context, id string) (bool, error) {
	job, err := s.Repo.GetJob(id)
	if err != nil {
		return false, err
	}

	ok, err := s.Scheduler.CancelJob(id)
	if err != nil {
		return ok, err
	}
	if ok {
		return true, nil
	}

	// A pending job never reached the scheduler; cancel it so it is not
	// resumed on the next start.
	if job.Status == domain.JobStatusPending {
		if err := s.Repo.UpdateJobStatus(id, domain.JobStatusCancelled); err != nil {
			return false, fmt.Errorf("failed to cancel job: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// DeleteJob removes a job, stopping it first if active. With deleteTiles it
// also removes every tile of the job's source inside its bounds at each zoom
// it covers, and returns how many were removed.
func (s *TileService) DeleteJob(ctx context.Context, id string, deleteTiles bool) (int64, error) {
	job, err := s.Repo.GetJob(id)
	if err != nil {
		return 0, err
	}

	// With deleteTiles, no fetch of the job may store a tile after the
	// range delete below.
	cancel := s.Scheduler.CancelJob
	if deleteTiles {
		cancel = s.Scheduler.CancelAndWait
	}
	if _, err := cancel(id); err != nil {
		s.Logger.Warn("Failed to record cancellation before delete", "job_id", id, "error", err)
	}

	var removed int64
	if deleteTiles {
		for _, r := range tiles.Ranges(job.Bounds, job.MinZoom, job.MaxZoom) {
			n, err := s.Tiles.DeleteRange(ctx, job.Source, r)
			if err != nil {
				return removed, err
			}
			removed += n
		}
	}

	if err := s.Repo.DeleteJob(id); err != nil {
		return removed, fmt.Errorf("failed to delete job: %w", err)
	}

	s.Logger.Info("Job deleted", "job_id", id, "tiles_removed", removed)
	return removed, nil
}

// UpdateJob changes a job's name and location label in a single write.
// A nil field is left alone; a blank location clears the label. Nothing is
// written when the name is invalid.
func (s *TileService) UpdateJob(ctx context.Context, id string, name, location *string) error {
	var newName string
	if name != nil {
		newName = strings.TrimSpace(*name)
		if newName == "" {
			return domain.NewValidationError("name", "cannot be empty")
		}
	}

	job, err := s.Repo.GetJob(id)
	if err != nil {
		return err
	}
	if name == nil {
		newName = job.Name
	}
	newLocation := job.LocationName
	if location != nil {
		newLocation = cleanLocation(location)
	}
	return s.Repo.UpdateJobDetails(id, newName, newLocation)
}

func (s *TileService) RenameJob(ctx context.Context, id, name string) error {
	return s.UpdateJob(ctx, id, &name, nil)
}

// UpdateJobLocation sets the job's location label; nil or blank clears it.
func (s *TileService) UpdateJobLocation(ctx context.Context, id string, location *string) error {
	if location == nil {
		location = new(string)
	}
	return s.UpdateJob(ctx, id, nil, location)
}

func (s *TileService) GetStats(ctx context.Context) (*Stats, error) {
	perSource, err := s.Tiles.Stats(ctx)
	if err != nil {
		return nil, err
	}
	total, err := s.Tiles.TotalCount(ctx)
	if err != nil {
		return nil, err
	}
	jobStats, err := s.Repo.GetJobStats()
	if err != nil {
		return nil, fmt.Errorf("failed to read job stats: %w", err)
	}

	return &Stats{
		Sources:       perSource,
		Jobs:          jobStats,
		TotalTiles:    total,
		CacheSize:     s.Tiles.CacheLen(),
		CacheCapacity: s.Tiles.CacheCap(),
		ActiveJobs:    s.Scheduler.ActiveJobs(),
	}, nil
}

func (s *TileService) ListSources() []sources.Source {
	return s.Sources.List()
}

func (s *TileService) AddSource(src sources.Source) (sources.Source, error) {
	return s.Sources.Add(src)
}

func (s *TileService) RemoveSource(id string) error {
	return s.Sources.Remove(id)
}

// ResumeInterrupted restarts jobs a previous process left pending or
// running. Tiles stored before the interruption are skipped.
func (s *TileService) ResumeInterrupted(ctx context.Context) (int, error) {
	jobs, err := s.Repo.ListJobsByStatus(domain.JobStatusPending, domain.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to list interrupted jobs: %w", err)
	}

	resumed := 0
	for _, job := range jobs {
		if s.Scheduler.IsActive(job.ID) {
			continue
		}
		src, err := s.source(job.Source)
		if err != nil {
			s.Logger.Warn("Cannot resume job with unknown source", "job_id", job.ID, "source", job.Source)
			continue
		}
		if err := s.startRun(job, src); err != nil {
			return resumed, err
		}
		resumed++
	}

	if resumed > 0 {
		s.Logger.Info("Resumed interrupted jobs", "count", resumed)
	}
	return resumed, nil
}

func (s *TileService) startRun(job *domain.Job, src sources.Source) error {
	list := tiles.List(job.Bounds, job.MinZoom, job.MaxZoom)
	if err := s.Scheduler.StartJob(job, src, list); err != nil {
		return fmt.Errorf("failed to start job %s: %w", job.ID, err)
	}
	return nil
}

func (s *TileService) source(id string) (sources.Source, error) {
	src, ok := s.Sources.Get(id)
	if !ok {
		return sources.Source{}, domain.NewValidationError("source", "unknown source %q", id)
	}
	return src, nil
}

func (s *TileService) validateZoom(src sources.Source, minZoom, maxZoom int) error {
	if err := tiles.ValidateZoomRange(minZoom, maxZoom); err != nil {
		return err
	}
	if maxZoom > src.MaxZoom {
		return domain.NewValidationError("max_zoom", "source %s serves zoom levels up to %d", src.ID, src.MaxZoom)
	}
	return nil
}

func (s *TileService) checkAccepting() error {
	if !s.Scheduler.Accepting() {
		return fmt.Errorf("cannot start job: %w", downloader.ErrStopped)
	}
	return nil
}

func (s *TileService) checkSize(total int64) error {
	if s.maxTiles > 0 && total > s.maxTiles {
		return domain.NewValidationError("bounds", "request covers %d tiles, the limit is %d", total, s.maxTiles)
	}
	return nil
}

func cleanLocation(location *string) *string {
	if location == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*location)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
