package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb/maptile"

	"github.com/cesargomez89/tilevault/internal/constants"
	"github.com/cesargomez89/tilevault/internal/domain"
	"github.com/cesargomez89/tilevault/internal/httpclient"
	"github.com/cesargomez89/tilevault/internal/logger"
	"github.com/cesargomez89/tilevault/internal/sources"
)

var ErrStopped = errors.New("scheduler stopped")

// TileStore is the slice of the tile store the scheduler needs.
type TileStore interface {
	Has(ctx context.Context, source string, z, x, y int) (bool, error)
	Put(ctx context.Context, source string, z, x, y int, data []byte) error
}

// Registry persists job status and counters.
type Registry interface {
	StartJobRun(id string, total int64) error
	UpdateJobProgress(id string, p domain.Progress) error
	FinishJob(id string, status domain.JobStatus, p domain.Progress) error
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type activeJob struct {
	id     string
	source sources.Source
	logger *logger.Logger

	// ctx scopes the run's network work; fetches tracks goroutines that
	// may still store a tile.
	ctx     context.Context
	cancel  context.CancelFunc
	fetches sync.WaitGroup

	total      int64
	downloaded int64
	skipped    int64
	failed     int64
	queued     int64
	inFlight   int64
	sinceFlush int
}

func (j *activeJob) progress() domain.Progress {
	return domain.Progress{
		Total:      j.total,
		Downloaded: j.downloaded,
		Skipped:    j.skipped,
		Failed:     j.failed,
		Queued:     j.queued,
		InFlight:   j.inFlight,
		Percent:    domain.ProgressPercent(j.downloaded, j.total),
	}
}

func (j *activeJob) settled() bool {
	return j.downloaded+j.skipped+j.failed == j.total && j.inFlight == 0
}

type task struct {
	job  *activeJob
	tile maptile.Tile
}

// Scheduler runs tile downloads for every active job through one global
// queue, a bounded number of in-flight fetches and a shared rate gate.
//
// Registry writes happen under mu, so a run that has been replaced or
// cancelled can never write over its successor's row. Detached runs with
// fetches still in flight stay in draining until the last one returns.
type Scheduler struct {
	store    TileStore
	registry Registry
	fetcher  Fetcher
	gate     *httpclient.Gate
	logger   *logger.Logger

	concurrency int
	flushEvery  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	active   map[string]*activeJob
	draining map[string][]*activeJob
	queue    []task
	inFlight int
	stopped  bool
}

func NewScheduler(store TileStore, registry Registry, fetcher Fetcher, gate *httpclient.Gate, concurrency, flushEvery int, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Default()
	}
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrency
	}
	if flushEvery <= 0 {
		flushEvery = constants.DefaultProgressFlushEvery
	}
	if gate == nil {
		gate = httpclient.NewGate(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:       store,
		registry:    registry,
		fetcher:     fetcher,
		gate:        gate,
		logger:      log.WithComponent("scheduler"),
		concurrency: concurrency,
		flushEvery:  flushEvery,
		ctx:         ctx,
		cancel:      cancel,
		active:      make(map[string]*activeJob),
		draining:    make(map[string][]*activeJob),
	}
}

// StartJob begins a run of job over tiles. Tiles already in the store are
// counted as skipped; the rest are queued. A run already active under the
// same id is detached first and its queued tiles dropped.
func (s *Scheduler) StartJob(job *domain.Job, src sources.Source, tiles []maptile.Tile) error {
	aj := &activeJob{
		id:     job.ID,
		source: src,
		logger: s.logger.WithJob(job.ID, src.ID),
		total:  int64(len(tiles)),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	aj.ctx, aj.cancel = context.WithCancel(s.ctx)
	if prev, ok := s.active[job.ID]; ok {
		s.detachLocked(prev)
		prev.logger.Info("Replacing active run")
	}
	if err := s.registry.StartJobRun(job.ID, aj.total); err != nil {
		s.mu.Unlock()
		aj.cancel()
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	s.active[job.ID] = aj
	s.mu.Unlock()

	aj.logger.Info("Job started", "total", aj.total)

	s.wg.Add(1)
	go s.scan(aj, tiles)
	return nil
}

func (s *Scheduler) scan(aj *activeJob, tiles []maptile.Tile) {
	defer s.wg.Done()

	for _, t := range tiles {
		exists, err := s.store.Has(s.ctx, aj.source.ID, int(t.Z), int(t.X), int(t.Y))
		if err != nil {
			aj.logger.WithTile(int(t.Z), int(t.X), int(t.Y)).Error("Existence check failed", "error", err)
		}

		s.mu.Lock()
		if s.active[aj.id] != aj {
			s.mu.Unlock()
			return
		}
		switch {
		case err != nil:
			aj.failed++
		case exists:
			aj.skipped++
		default:
			s.queue = append(s.queue, task{job: aj, tile: t})
			aj.queued++
			s.pumpLocked()
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[aj.id] == aj && aj.settled() {
		s.finishLocked(aj)
	}
}

// pumpLocked starts queued fetches until the concurrency bound is reached.
func (s *Scheduler) pumpLocked() {
	for s.inFlight < s.concurrency && len(s.queue) > 0 {
		t := s.queue[0]
		s.queue[0] = task{}
		s.queue = s.queue[1:]

		t.job.queued--
		t.job.inFlight++
		t.job.fetches.Add(1)
		s.inFlight++

		s.wg.Add(1)
		go s.fetch(t)
	}
}

func (s *Scheduler) fetch(t task) {
	defer s.wg.Done()
	defer t.job.fetches.Done()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			t.job.logger.Error("Panic in tile fetch", "panic", r)
		}
		s.complete(t, err)
	}()

	z, x, y := int(t.tile.Z), int(t.tile.X), int(t.tile.Y)
	if err = s.gate.Wait(t.job.ctx); err != nil {
		return
	}

	url := t.job.source.TileURL(z, x, y, x+y)
	data, err := s.fetcher.Fetch(t.job.ctx, url)
	if err != nil {
		t.job.logger.WithTile(z, x, y).Debug("Tile fetch failed", "url", url, "error", err)
		return
	}

	// Bytes are stored even when the run has since been cancelled, unless
	// CancelAndWait aborted the fetch above.
	if err = s.store.Put(s.ctx, t.job.source.ID, z, x, y, data); err != nil {
		t.job.logger.WithTile(z, x, y).Error("Failed to store tile", "error", err)
	}
}

func (s *Scheduler) complete(t task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	defer s.pumpLocked()

	aj := t.job
	aj.inFlight--
	if s.active[aj.id] != aj {
		if aj.inFlight == 0 {
			s.dropDrainingLocked(aj)
		}
		return
	}

	if err != nil {
		aj.failed++
	} else {
		aj.downloaded++
		aj.sinceFlush++
	}

	if aj.settled() {
		s.finishLocked(aj)
		return
	}

	if aj.sinceFlush >= s.flushEvery {
		aj.sinceFlush = 0
		if err := s.registry.UpdateJobProgress(aj.id, aj.progress()); err != nil {
			aj.logger.Error("Failed to persist progress", "error", err)
		}
	}
}

func (s *Scheduler) finishLocked(aj *activeJob) {
	delete(s.active, aj.id)
	aj.cancel()

	status := domain.JobStatusCompleted
	if aj.failed > 0 {
		status = domain.JobStatusCompletedWithErrors
	}

	p := aj.progress()
	if err := s.registry.FinishJob(aj.id, status, p); err != nil {
		aj.logger.Error("Failed to persist job completion", "status", status, "error", err)
		return
	}
	aj.logger.Info("Job finished", "status", status, "downloaded", p.Downloaded, "skipped", p.Skipped, "failed", p.Failed)
}

// detachLocked drops aj from the active table and removes its queued tiles.
// Its in-flight fetches run to completion without touching any counters.
func (s *Scheduler) detachLocked(aj *activeJob) {
	delete(s.active, aj.id)

	kept := s.queue[:0]
	for _, t := range s.queue {
		if t.job != aj {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = task{}
	}
	s.queue = kept
	aj.queued = 0

	if aj.inFlight > 0 {
		s.draining[aj.id] = append(s.draining[aj.id], aj)
	} else {
		aj.cancel()
	}
}

func (s *Scheduler) dropDrainingLocked(aj *activeJob) {
	runs := s.draining[aj.id]
	for i, r := range runs {
		if r == aj {
			runs = append(runs[:i], runs[i+1:]...)
			break
		}
	}
	if len(runs) == 0 {
		delete(s.draining, aj.id)
	} else {
		s.draining[aj.id] = runs
	}
	aj.cancel()
}

// CancelJob stops a running job: queued tiles are dropped and the job is
// recorded as cancelled with its counters so far. It reports false when the
// job is not active.
func (s *Scheduler) CancelJob(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	aj, ok := s.active[id]
	if !ok {
		return false, nil
	}
	return true, s.cancelLocked(aj)
}

// CancelAndWait cancels the job like CancelJob, aborts in-flight fetches of
// every run of the job, including runs detached earlier, and returns once
// none of them can store a tile any more.
func (s *Scheduler) CancelAndWait(id string) (bool, error) {
	s.mu.Lock()
	var err error
	aj, cancelled := s.active[id]
	if cancelled {
		err = s.cancelLocked(aj)
	}
	runs := append([]*activeJob(nil), s.draining[id]...)
	s.mu.Unlock()

	for _, r := range runs {
		r.cancel()
	}
	for _, r := range runs {
		r.fetches.Wait()
	}
	return cancelled, err
}

func (s *Scheduler) cancelLocked(aj *activeJob) error {
	s.detachLocked(aj)

	p := aj.progress()
	if err := s.registry.FinishJob(aj.id, domain.JobStatusCancelled, p); err != nil {
		return fmt.Errorf("failed to persist cancellation: %w", err)
	}
	aj.logger.Info("Job cancelled", "downloaded", p.Downloaded, "skipped", p.Skipped, "failed", p.Failed)
	return nil
}

// Accepting reports whether StartJob can still take work.
func (s *Scheduler) Accepting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

// Status returns live counters for an active job.
func (s *Scheduler) Status(id string) (domain.Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	aj, ok := s.active[id]
	if !ok {
		return domain.Progress{}, false
	}
	return aj.progress(), true
}

func (s *Scheduler) IsActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[id]
	return ok
}

// ActiveJobs returns the number of jobs currently running.
func (s *Scheduler) ActiveJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Stop abandons every run without recording a terminal status, cancels
// in-flight requests and waits for all goroutines. Jobs stay running in the
// registry and are picked up again on the next start.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")

	s.mu.Lock()
	s.stopped = true
	s.active = make(map[string]*activeJob)
	s.draining = make(map[string][]*activeJob)
	s.queue = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
