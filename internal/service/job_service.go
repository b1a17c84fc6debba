package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragserver/internal/filestore"
	"github.com/xxxsen/ragserver/internal/ingestfmt"
	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
	"github.com/xxxsen/ragserver/internal/rag"
	"github.com/xxxsen/ragserver/internal/repo"
)

const maxUploadBytes = 1 << 20

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// JobService runs file ingestions in the background and tracks their state
// machine: queued, processing, then completed, failed or cancelled. A
// cancelled job keeps the chunks already committed.
type JobService struct {
	jobs      *repo.IngestJobRepo
	pipeline  *rag.Pipeline
	files     filestore.Store
	retention time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewJobService(jobs *repo.IngestJobRepo, pipeline *rag.Pipeline, files filestore.Store, retention time.Duration) *JobService {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &JobService{
		jobs:      jobs,
		pipeline:  pipeline,
		files:     files,
		retention: retention,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// CreateFileJob validates and normalizes the upload synchronously so the
// caller gets rejection errors directly, then hands the text to a worker
// goroutine and returns the queued job.
func (s *JobService) CreateFileJob(ctx context.Context, fileName string, content []byte, collection string) (*model.IngestJob, error) {
	if collection == "" {
		collection = s.pipeline.DefaultCollection()
	}
	if len(content) == 0 {
		return nil, errs.Invalidf("uploaded file is empty")
	}
	if len(content) > maxUploadBytes {
		return nil, errs.Invalidf("uploaded file size %d exceeds limit %d", len(content), maxUploadBytes)
	}
	text, err := ingestfmt.Normalize(fileName, content)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	job := &model.IngestJob{
		ID:         uuid.NewString(),
		Status:     model.JobStatusQueued,
		FileName:   fileName,
		Source:     filepath.Base(fileName),
		Collection: collection,
		Ctime:      now,
		Mtime:      now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	if s.files != nil {
		key := job.ID + filepath.Ext(fileName)
		reader := readSeekNopCloser{bytes.NewReader(content)}
		if err := s.files.Save(ctx, key, reader, int64(len(content))); err != nil {
			logutil.GetLogger(ctx).Warn("failed to retain upload",
				zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()
	go s.run(workerCtx, job.ID, text, job.Source, collection)
	return job, nil
}

func (s *JobService) run(ctx context.Context, jobID, text, source, collection string) {
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.cancels[jobID]; ok {
			cancel()
			delete(s.cancels, jobID)
		}
		s.mu.Unlock()
	}()
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", jobID))

	started, err := s.jobs.UpdateStatusIf(ctx, jobID,
		model.JobStatusQueued, model.JobStatusProcessing, "", time.Now().UnixMilli())
	if err != nil {
		logger.Error("failed to start job", zap.Error(err))
		return
	}
	if !started {
		// cancelled before the worker picked it up
		return
	}

	doc := model.Document{Text: text, Source: source}
	res, err := s.pipeline.IngestText(ctx, doc, collection, func(created, committed int) {
		progress := 0
		if created > 0 {
			progress = committed * 100 / created
		}
		_ = s.jobs.UpdateProgress(context.Background(), jobID, progress, created, committed, time.Now().UnixMilli())
	})

	job := &model.IngestJob{ID: jobID, Mtime: time.Now().UnixMilli()}
	if res != nil {
		job.ChunksCreated = res.ChunksCreated
		job.ChunksCommitted = res.ChunksCommitted
	}
	switch {
	case err == nil:
		job.Status = model.JobStatusCompleted
		job.Progress = 100
	case errors.Is(err, context.Canceled):
		job.Status = model.JobStatusCancelled
		job.Message = "cancelled by user"
		if job.ChunksCreated > 0 {
			job.Progress = job.ChunksCommitted * 100 / job.ChunksCreated
		}
		logger.Info("job cancelled", zap.Int("committed", job.ChunksCommitted))
	default:
		job.Status = model.JobStatusFailed
		job.Message = err.Error()
		if job.ChunksCreated > 0 {
			job.Progress = job.ChunksCommitted * 100 / job.ChunksCreated
		}
		logger.Error("job failed", zap.Error(err))
	}
	if err := s.jobs.Finish(context.Background(), job); err != nil {
		logger.Error("failed to finalize job", zap.Error(err))
	}
}

func (s *JobService) Get(ctx context.Context, jobID string) (*model.IngestJob, error) {
	return s.jobs.Get(ctx, jobID)
}

func (s *JobService) List(ctx context.Context, status string, offset, limit uint) ([]*model.IngestJob, error) {
	if limit == 0 || limit > 100 {
		limit = 50
	}
	return s.jobs.List(ctx, status, offset, limit)
}

// Cancel stops a queued or processing job. The worker observes the
// cancelled context, stops issuing new embedding batches and records the
// committed count; chunks already written stay in the collection.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*model.IngestJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if model.JobStatusTerminal(job.Status) {
		return nil, errs.Invalidf("job %s already %s", jobID, job.Status)
	}
	// a job still queued never reaches its worker, settle it directly
	if job.Status == model.JobStatusQueued {
		moved, err := s.jobs.UpdateStatusIf(ctx, jobID,
			model.JobStatusQueued, model.JobStatusCancelled, "cancelled by user", time.Now().UnixMilli())
		if err != nil {
			return nil, err
		}
		_ = moved
	}
	s.mu.Lock()
	cancel, ok := s.cancels[jobID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return s.jobs.Get(ctx, jobID)
}

// CleanupFinished drops terminal jobs older than the retention window.
func (s *JobService) CleanupFinished(ctx context.Context) error {
	cutoff := time.Now().Add(-s.retention).UnixMilli()
	deleted, err := s.jobs.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("cleaned up finished jobs", zap.Int64("deleted", deleted))
	}
	return nil
}
