package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spicer-enrichment/registrar-api/internal/models"
	"github.com/spicer-enrichment/registrar-api/internal/repository"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
	"github.com/spicer-enrichment/registrar-api/pkg/jobs"
	"github.com/spicer-enrichment/registrar-api/pkg/storage"
)

type archiveRepoStub struct {
	jobs     map[string]*models.ArchiveJob
	finished []models.ArchiveJob
}

func newArchiveRepoStub() *archiveRepoStub {
	return &archiveRepoStub{jobs: map[string]*models.ArchiveJob{}}
}

func (r *archiveRepoStub) Create(ctx context.Context, job *models.ArchiveJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *archiveRepoStub) GetByID(ctx context.Context, id string) (*models.ArchiveJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get archive job: %w", sql.ErrNoRows)
	}
	return job, nil
}

func (r *archiveRepoStub) Update(ctx context.Context, id string, params repository.UpdateArchiveJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.StudentCount != nil {
		job.StudentCount = *params.StudentCount
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *archiveRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ArchiveJob, error) {
	var queued []models.ArchiveJob
	for _, job := range r.jobs {
		if job.Status == models.ArchiveStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *archiveRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ArchiveJob, error) {
	return r.finished, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type archiveSourceStub struct {
	count   int
	payload string
	err     error
}

func (s *archiveSourceStub) CountStudents(ctx context.Context) (int, error) {
	return s.count, nil
}

func (s *archiveSourceStub) WriteArchive(ctx context.Context, w io.Writer, progress func(done, total int)) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	for i := 1; i <= s.count; i++ {
		progress(i, s.count)
	}
	_, err := io.WriteString(w, s.payload)
	return s.count, err
}

type archiveFixture struct {
	service *ArchiveService
	worker  *ArchiveWorker
	repo    *archiveRepoStub
	queue   *queueStub
	source  *archiveSourceStub
	files   *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

func newArchiveFixture(t *testing.T) *archiveFixture {
	t.Helper()
	repo := newArchiveRepoStub()
	queue := &queueStub{}
	source := &archiveSourceStub{count: 20, payload: "PK-zip-bytes"}
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("archive-secret", time.Hour)
	cfg := ArchiveServiceConfig{URLPrefix: "/api/v1", ResultTTL: time.Hour, CleanupInterval: time.Hour}
	return &archiveFixture{
		service: NewArchiveService(repo, source, queue, files, signer, zap.NewNop(), cfg),
		worker:  NewArchiveWorker(repo, source, files, signer, "/api/v1/", zap.NewNop()),
		repo:    repo,
		queue:   queue,
		source:  source,
		files:   files,
		signer:  signer,
	}
}

func TestArchiveServiceCreateJob(t *testing.T) {
	f := newArchiveFixture(t)

	resp, err := f.service.CreateJob(context.Background(), "adm-1")
	require.NoError(t, err)
	assert.Equal(t, models.ArchiveStatusQueued, resp.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, resp.ID, f.queue.jobs[0].ID)
	assert.Equal(t, ArchiveJobType, f.queue.jobs[0].Type)
	assert.Equal(t, 20, f.repo.jobs[resp.ID].StudentCount)
	assert.Equal(t, "adm-1", f.repo.jobs[resp.ID].CreatedBy)
}

func TestArchiveServiceCreateJobWithoutStudents(t *testing.T) {
	f := newArchiveFixture(t)
	f.source.count = 0

	_, err := f.service.CreateJob(context.Background(), "adm-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.queue.jobs)
	assert.Empty(t, f.repo.jobs)
}

func TestArchiveServiceCreateJobQueueFull(t *testing.T) {
	f := newArchiveFixture(t)
	f.queue.err = jobs.ErrQueueFull

	_, err := f.service.CreateJob(context.Background(), "adm-1")
	require.Error(t, err)
	for _, job := range f.repo.jobs {
		assert.Equal(t, models.ArchiveStatusFailed, job.Status)
	}
}

func TestArchiveWorkerHandleAndDownload(t *testing.T) {
	f := newArchiveFixture(t)
	resp, err := f.service.CreateJob(context.Background(), "adm-1")
	require.NoError(t, err)

	require.NoError(t, f.worker.Handle(context.Background(), f.queue.jobs[0]))

	status, err := f.service.GetStatus(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ArchiveStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.ResultURL)
	assert.Contains(t, *status.ResultURL, "/api/v1/export/")
	assert.Nil(t, status.Error)

	download, err := f.service.ResolveDownload(context.Background(), extractToken(*status.ResultURL))
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "Certificates.zip", download.Filename)
	assert.Equal(t, int64(len("PK-zip-bytes")), download.Size)
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "PK-zip-bytes", string(body))
}

func TestArchiveServiceResolveDownloadRejectsTokens(t *testing.T) {
	f := newArchiveFixture(t)
	resp, err := f.service.CreateJob(context.Background(), "adm-1")
	require.NoError(t, err)

	_, err = f.service.ResolveDownload(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// A valid signature that was never issued for the job.
	token, _, err := f.signer.Generate(resp.ID, "archives/"+resp.ID+".zip")
	require.NoError(t, err)
	_, err = f.service.ResolveDownload(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	orphan, _, err := f.signer.Generate(uuid.NewString(), "archives/x.zip")
	require.NoError(t, err)
	_, err = f.service.ResolveDownload(context.Background(), orphan)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestArchiveWorkerFailureRequeuesThenFails(t *testing.T) {
	f := newArchiveFixture(t)
	resp, err := f.service.CreateJob(context.Background(), "adm-1")
	require.NoError(t, err)
	f.source.err = errors.New("render failed")

	err = f.worker.Handle(context.Background(), f.queue.jobs[0])
	require.Error(t, err)
	job := f.repo.jobs[resp.ID]
	assert.Equal(t, models.ArchiveStatusQueued, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "render failed", *job.ErrorMessage)

	f.service.HandleFailure(f.queue.jobs[0], err)
	assert.Equal(t, models.ArchiveStatusFailed, job.Status)
	assert.NotNil(t, job.FinishedAt)

	status, err := f.service.GetStatus(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Error)
}

func TestArchiveServiceGetStatusNotFound(t *testing.T) {
	f := newArchiveFixture(t)
	_, err := f.service.GetStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestArchiveServiceRecoverPendingJobs(t *testing.T) {
	f := newArchiveFixture(t)
	f.repo.jobs["queued"] = &models.ArchiveJob{ID: "queued", Status: models.ArchiveStatusQueued}
	f.repo.jobs["done"] = &models.ArchiveJob{ID: "done", Status: models.ArchiveStatusFinished}

	f.service.RecoverPendingJobs(context.Background())
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, "queued", f.queue.jobs[0].ID)
}

func TestArchiveServiceCleanupExpired(t *testing.T) {
	f := newArchiveFixture(t)
	resp, err := f.service.CreateJob(context.Background(), "adm-1")
	require.NoError(t, err)
	require.NoError(t, f.worker.Handle(context.Background(), f.queue.jobs[0]))

	job := f.repo.jobs[resp.ID]
	f.repo.finished = []models.ArchiveJob{*job}
	f.service.cleanupExpired(context.Background())

	_, err = f.files.Open(filepath.ToSlash(filepath.Join("archives", resp.ID+".zip")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
