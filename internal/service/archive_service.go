package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spicer-enrichment/registrar-api/internal/dto"
	"github.com/spicer-enrichment/registrar-api/internal/models"
	"github.com/spicer-enrichment/registrar-api/internal/repository"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
	"github.com/spicer-enrichment/registrar-api/pkg/jobs"
)

// ArchiveJobType labels bulk transcript jobs on the queue.
const ArchiveJobType = "transcript_archive"

type archiveJobStore interface {
	Create(ctx context.Context, job *models.ArchiveJob) error
	GetByID(ctx context.Context, id string) (*models.ArchiveJob, error)
	Update(ctx context.Context, id string, params repository.UpdateArchiveJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ArchiveJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ArchiveJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type archiveSource interface {
	CountStudents(ctx context.Context) (int, error)
	WriteArchive(ctx context.Context, w io.Writer, progress func(done, total int)) (int, error)
}

type archiveFileStore interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// ArchiveServiceConfig governs download URLs and cleanup.
type ArchiveServiceConfig struct {
	URLPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ArchiveDownload aggregates a resolved archive download.
type ArchiveDownload struct {
	File      *os.File
	Filename  string
	Size      int64
	ExpiresAt time.Time
}

// ArchiveService manages the lifecycle of bulk transcript jobs.
type ArchiveService struct {
	repo   archiveJobStore
	source archiveSource
	queue  jobDispatcher
	files  archiveFileStore
	signer downloadSigner
	logger *zap.Logger
	cfg    ArchiveServiceConfig
}

// NewArchiveService constructs the archive service.
func NewArchiveService(repo archiveJobStore, source archiveSource, queue jobDispatcher, files archiveFileStore, signer downloadSigner, logger *zap.Logger, cfg ArchiveServiceConfig) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ArchiveService{repo: repo, source: source, queue: queue, files: files, signer: signer, logger: logger, cfg: cfg}
}

// CreateJob persists a job and enqueues it. It fails with NOT_FOUND when there are no students.
func (s *ArchiveService) CreateJob(ctx context.Context, actorID string) (*dto.ArchiveJobResponse, error) {
	count, err := s.source.CountStudents(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no students found")
	}

	job := &models.ArchiveJob{Status: models.ArchiveStatusQueued, StudentCount: count, CreatedBy: actorID}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create archive job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ArchiveJobType}); err != nil {
		s.markFailed(ctx, job.ID, "failed to enqueue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue archive job")
	}
	s.logger.Info("archive job queued", zap.String("job_id", job.ID), zap.Int("students", count))
	return &dto.ArchiveJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients.
func (s *ArchiveService) GetStatus(ctx context.Context, id string) (*dto.ArchiveStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archive job")
	}
	resp := &dto.ArchiveStatusResponse{
		ID:           job.ID,
		Status:       job.Status,
		Progress:     job.Progress,
		StudentCount: job.StudentCount,
		ResultURL:    job.ResultURL,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates a signed token and opens the stored archive.
func (s *ArchiveService) ResolveDownload(ctx context.Context, token string) (*ArchiveDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archive job")
	}
	if job.ResultURL == nil || extractToken(*job.ResultURL) != token {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ArchiveStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "archive not ready")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open archive")
	}
	var size int64 = -1
	if info, statErr := file.Stat(); statErr == nil {
		size = info.Size()
	}
	return &ArchiveDownload{File: file, Filename: "Certificates.zip", Size: size, ExpiresAt: expiresAt}, nil
}

// RecoverPendingJobs replays queued jobs after a restart.
func (s *ArchiveService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued archive jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ArchiveJobType}); err != nil {
			s.logger.Warn("failed to requeue pending archive job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired archives periodically.
func (s *ArchiveService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ArchiveService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	finished, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("archive cleanup list failed", zap.Error(err))
		return
	}
	for _, job := range finished {
		if job.ResultURL == nil {
			continue
		}
		_, relPath, _, err := s.signer.Parse(extractToken(*job.ResultURL), true)
		if err != nil {
			continue
		}
		if err := s.files.Delete(relPath); err != nil {
			s.logger.Warn("archive cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if _, err := s.files.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("archive filesystem cleanup failed", zap.Error(err))
	}
}

// HandleFailure marks a job as failed once the queue gives up on it.
func (s *ArchiveService) HandleFailure(job jobs.Job, err error) {
	s.markFailed(context.Background(), job.ID, err.Error())
}

func (s *ArchiveService) markFailed(ctx context.Context, id, msg string) {
	status := models.ArchiveStatusFailed
	progress := 100
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, repository.UpdateArchiveJobParams{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark archive job failed", zap.String("job_id", id), zap.Error(err))
	}
}

func extractToken(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

// ArchiveWorker bridges queue jobs to the transcript archive builder.
type ArchiveWorker struct {
	repo      archiveJobStore
	source    archiveSource
	files     archiveFileStore
	signer    downloadSigner
	urlPrefix string
	logger    *zap.Logger
}

// NewArchiveWorker constructs a worker.
func NewArchiveWorker(repo archiveJobStore, source archiveSource, files archiveFileStore, signer downloadSigner, urlPrefix string, logger *zap.Logger) *ArchiveWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveWorker{repo: repo, source: source, files: files, signer: signer, urlPrefix: strings.TrimRight(urlPrefix, "/"), logger: logger}
}

// Handle processes a queue job. Errors are returned so the queue can retry.
func (w *ArchiveWorker) Handle(ctx context.Context, job jobs.Job) error {
	processing := models.ArchiveStatusProcessing
	progress := 0
	if err := w.repo.Update(ctx, job.ID, repository.UpdateArchiveJobParams{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	lastReported := 0
	buf := &bytes.Buffer{}
	count, err := w.source.WriteArchive(ctx, buf, func(done, total int) {
		pct := done * 90 / total
		if pct-lastReported < 10 {
			return
		}
		lastReported = pct
		if err := w.repo.Update(ctx, job.ID, repository.UpdateArchiveJobParams{Progress: &pct}); err != nil {
			w.logger.Warn("failed to record archive progress", zap.String("job_id", job.ID), zap.Error(err))
		}
	})
	if err != nil {
		msg := err.Error()
		queued := models.ArchiveStatusQueued
		reset := 0
		if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateArchiveJobParams{Status: &queued, Progress: &reset, ErrorMessage: &msg}); updateErr != nil {
			w.logger.Warn("failed to reset archive job", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return err
	}

	relPath := path.Join("archives", job.ID+".zip")
	if _, err := w.files.Save(relPath, buf.Bytes()); err != nil {
		return err
	}
	token, _, err := w.signer.Generate(job.ID, relPath)
	if err != nil {
		return err
	}

	finished := models.ArchiveStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := w.urlPrefix + "/export/" + token
	noError := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateArchiveJobParams{
		Status:       &finished,
		Progress:     &progress,
		StudentCount: &count,
		ResultURL:    &url,
		ErrorMessage: &noError,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark archive job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.logger.Info("archive job finished", zap.String("job_id", job.ID), zap.Int("students", count))
	return nil
}
