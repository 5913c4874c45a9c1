package store

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/tilevault/internal/domain"
)

const jobColumns = `id, name, source, status,
	north AS "bounds.north", south AS "bounds.south", east AS "bounds.east", west AS "bounds.west",
	min_zoom, max_zoom, total_tiles, downloaded_tiles, skipped_tiles, failed_tiles,
	location_name, center_lat, center_lng, created_at, updated_at`

func (db *DB) CreateJob(job *domain.Job) error {
	query := `INSERT INTO jobs (id, name, source, status, north, south, east, west, min_zoom, max_zoom,
			total_tiles, downloaded_tiles, skipped_tiles, failed_tiles, location_name, center_lat, center_lng, created_at, updated_at)
		VALUES (:id, :name, :source, :status, :bounds.north, :bounds.south, :bounds.east, :bounds.west, :min_zoom, :max_zoom,
			:total_tiles, :downloaded_tiles, :skipped_tiles, :failed_tiles, :location_name, :center_lat, :center_lng, :created_at, :updated_at)`

	_, err := db.NamedExec(query, job)
	return err
}

func (db *DB) GetJob(id string) (*domain.Job, error) {
	job := &domain.Job{}
	err := db.Get(job, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns every job, newest first.
func (db *DB) ListJobs() ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := db.Select(&jobs, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC`)
	return jobs, err
}

func (db *DB) ListJobsByStatus(statuses ...domain.JobStatus) ([]*domain.Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+jobColumns+` FROM jobs WHERE status IN (?) ORDER BY created_at ASC, rowid ASC`, statuses)
	if err != nil {
		return nil, err
	}

	var jobs []*domain.Job
	err = db.Select(&jobs, db.Rebind(query), args...)
	return jobs, err
}

// UpdateJobProgress persists live counters. Counters never move backwards
// within a run, even if two flushes land out of order.
func (db *DB) UpdateJobProgress(id string, p domain.Progress) error {
	query := `UPDATE jobs SET
		downloaded_tiles = MAX(downloaded_tiles, ?),
		skipped_tiles = MAX(skipped_tiles, ?),
		failed_tiles = MAX(failed_tiles, ?),
		updated_at = ?
	WHERE id = ?`
	res, err := db.Exec(query, p.Downloaded, p.Skipped, p.Failed, now(), id)
	return requireRow(res, err, domain.ErrJobNotFound)
}

func (db *DB) UpdateJobStatus(id string, status domain.JobStatus) error {
	res, err := db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	return requireRow(res, err, domain.ErrJobNotFound)
}

// StartJobRun marks the job running over a fresh tile list of size total.
func (db *DB) StartJobRun(id string, total int64) error {
	query := `UPDATE jobs SET status = ?, total_tiles = ?, downloaded_tiles = 0, skipped_tiles = 0, failed_tiles = 0, updated_at = ?
	WHERE id = ?`
	res, err := db.Exec(query, domain.JobStatusRunning, total, now(), id)
	return requireRow(res, err, domain.ErrJobNotFound)
}

// FinishJob writes a terminal status together with the final counters.
func (db *DB) FinishJob(id string, status domain.JobStatus, p domain.Progress) error {
	query := `UPDATE jobs SET status = ?, downloaded_tiles = ?, skipped_tiles = ?, failed_tiles = ?, updated_at = ?
	WHERE id = ?`
	res, err := db.Exec(query, status, p.Downloaded, p.Skipped, p.Failed, now(), id)
	return requireRow(res, err, domain.ErrJobNotFound)
}

func (db *DB) UpdateJobZoom(id string, minZoom, maxZoom int, total int64) error {
	query := `UPDATE jobs SET min_zoom = ?, max_zoom = ?, total_tiles = ?, updated_at = ? WHERE id = ?`
	res, err := db.Exec(query, minZoom, maxZoom, total, now(), id)
	return requireRow(res, err, domain.ErrJobNotFound)
}

// UpdateJobDetails writes the name and location label together. A nil
// location clears the label.
func (db *DB) UpdateJobDetails(id, name string, location *string) error {
	res, err := db.Exec(`UPDATE jobs SET name = ?, location_name = ?, updated_at = ? WHERE id = ?`, name, location, now(), id)
	return requireRow(res, err, domain.ErrJobNotFound)
}

func (db *DB) DeleteJob(id string) error {
	res, err := db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	return requireRow(res, err, domain.ErrJobNotFound)
}

type JobStats struct {
	Total               int `db:"total"`
	Running             int `db:"running"`
	Completed           int `db:"completed"`
	CompletedWithErrors int `db:"completed_with_errors"`
	Cancelled           int `db:"cancelled"`
}

func (db *DB) GetJobStats() (*JobStats, error) {
	query := `SELECT
		COUNT(*) as total,
		COALESCE(SUM(CASE WHEN status IN ('pending', 'running') THEN 1 ELSE 0 END), 0) as running,
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) as completed,
		COALESCE(SUM(CASE WHEN status = 'completed_with_errors' THEN 1 ELSE 0 END), 0) as completed_with_errors,
		COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) as cancelled
	FROM jobs`

	stats := &JobStats{}
	err := db.Get(stats, query)
	return stats, err
}

func now() time.Time {
	return time.Now().UTC()
}
