package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/dbutil"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

const jobColumns = `id, status, file_name, source, collection, progress, message, chunks_created, chunks_committed, ctime, mtime`

type IngestJobRepo struct {
	db *sql.DB
}

func NewIngestJobRepo(db *sql.DB) *IngestJobRepo {
	return &IngestJobRepo{db: db}
}

func (r *IngestJobRepo) Create(ctx context.Context, job *model.IngestJob) error {
	const query = `
		INSERT INTO ingest_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.Status,
		job.FileName,
		job.Source,
		job.Collection,
		job.Progress,
		job.Message,
		job.ChunksCreated,
		job.ChunksCommitted,
		job.Ctime,
		job.Mtime,
	)
	return err
}

func scanJob(row interface{ Scan(...interface{}) error }) (*model.IngestJob, error) {
	var job model.IngestJob
	err := row.Scan(
		&job.ID,
		&job.Status,
		&job.FileName,
		&job.Source,
		&job.Collection,
		&job.Progress,
		&job.Message,
		&job.ChunksCreated,
		&job.ChunksCommitted,
		&job.Ctime,
		&job.Mtime,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *IngestJobRepo) Get(ctx context.Context, jobID string) (*model.IngestJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM ingest_jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFoundf("job", jobID)
		}
		return nil, err
	}
	return job, nil
}

func (r *IngestJobRepo) List(ctx context.Context, status string, offset, limit uint) ([]*model.IngestJob, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc",
		"_limit":   []uint{offset, limit},
	}
	if status != "" {
		where["status"] = status
	}
	sqlStr, args, err := builder.BuildSelect("ingest_jobs",
		where, []string{"id", "status", "file_name", "source", "collection", "progress", "message", "chunks_created", "chunks_committed", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	jobs := make([]*model.IngestJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateStatusIf moves a job between states only when it is still in the
// expected state, so a cancel racing a normal finish settles on one winner.
func (r *IngestJobRepo) UpdateStatusIf(ctx context.Context, jobID, fromStatus, toStatus, message string, mtime int64) (bool, error) {
	const query = `
		UPDATE ingest_jobs
		SET status = $1, message = $2, mtime = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, toStatus, message, mtime, jobID, fromStatus)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *IngestJobRepo) UpdateProgress(ctx context.Context, jobID string, progress, created, committed int, mtime int64) error {
	const query = `
		UPDATE ingest_jobs
		SET progress = $1, chunks_created = $2, chunks_committed = $3, mtime = $4
		WHERE id = $5
	`
	res, err := r.db.ExecContext(ctx, query, progress, created, committed, mtime, jobID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NotFoundf("job", jobID)
	}
	return nil
}

func (r *IngestJobRepo) Finish(ctx context.Context, job *model.IngestJob) error {
	const query = `
		UPDATE ingest_jobs
		SET status = $1, progress = $2, message = $3, chunks_created = $4, chunks_committed = $5, mtime = $6
		WHERE id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.Progress,
		job.Message,
		job.ChunksCreated,
		job.ChunksCommitted,
		job.Mtime,
		job.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NotFoundf("job", job.ID)
	}
	return nil
}

func (r *IngestJobRepo) DeleteFinishedBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `
		DELETE FROM ingest_jobs
		WHERE mtime < $1 AND status IN ($2, $3, $4)
	`
	res, err := r.db.ExecContext(ctx, query, cutoff,
		model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
