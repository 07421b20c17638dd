package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/spicer-enrichment/registrar-api/internal/models"
)

const archiveJobColumns = "id, status, progress, student_count, result_url, created_by, created_at, finished_at, error_message"

// ArchiveJobRepository persists bulk transcript job metadata.
type ArchiveJobRepository struct {
	db *sqlx.DB
}

// NewArchiveJobRepository constructs the repository.
func NewArchiveJobRepository(db *sqlx.DB) *ArchiveJobRepository {
	return &ArchiveJobRepository{db: db}
}

// Create inserts a new job row with generated defaults.
func (r *ArchiveJobRepository) Create(ctx context.Context, job *models.ArchiveJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ArchiveStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO transcript_archive_jobs (id, status, progress, student_count, result_url, created_by, created_at, finished_at, error_message)
VALUES (:id, :status, :progress, :student_count, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create archive job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier. sql.ErrNoRows is wrapped.
func (r *ArchiveJobRepository) GetByID(ctx context.Context, id string) (*models.ArchiveJob, error) {
	var job models.ArchiveJob
	query := fmt.Sprintf("SELECT %s FROM transcript_archive_jobs WHERE id = $1", archiveJobColumns)
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get archive job: %w", err)
	}
	return &job, nil
}

// UpdateArchiveJobParams defines the mutable fields. Nil fields are left untouched.
type UpdateArchiveJobParams struct {
	Status       *models.ArchiveStatus
	Progress     *int
	StudentCount *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *ArchiveJobRepository) Update(ctx context.Context, id string, params UpdateArchiveJobParams) error {
	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.StudentCount != nil {
		add("student_count", *params.StudentCount)
	}
	if params.ResultURL != nil {
		add("result_url", *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE transcript_archive_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update archive job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs for cold start recovery.
func (r *ArchiveJobRepository) ListQueued(ctx context.Context, limit int) ([]models.ArchiveJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM transcript_archive_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1", archiveJobColumns)
	var jobs []models.ArchiveJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued archive jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore retrieves completed jobs finished before cutoff.
func (r *ArchiveJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ArchiveJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM transcript_archive_jobs
WHERE status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`, archiveJobColumns)
	var jobs []models.ArchiveJob
	if err := r.db.SelectContext(ctx, &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished archive jobs: %w", err)
	}
	return jobs, nil
}
