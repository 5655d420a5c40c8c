package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

const (
	// Tables
	jobsTable   = "jobs"
	queuesTable = "queues"

	// Columns
	idColumn          = "id"
	queueColumn       = "queue"
	typeColumn        = "type"
	payloadColumn     = "payload"
	priorityColumn    = "priority"
	attemptsColumn    = "attempts"
	maxAttemptsColumn = "max_attempts"
	backoffTypeColumn = "backoff_type"
	backoffDelayMs    = "backoff_delay_ms"
	stateColumn       = "state"
	lastErrorColumn   = "last_error"
	workerIDColumn    = "worker_id"
	createdAtColumn   = "created_at"
	scheduledAtColumn = "scheduled_at"
	startedAtColumn   = "started_at"
	finishedAtColumn  = "finished_at"
)

var jobColumns = []string{
	idColumn, queueColumn, typeColumn, payloadColumn, priorityColumn,
	attemptsColumn, maxAttemptsColumn, backoffTypeColumn, backoffDelayMs,
	stateColumn, lastErrorColumn, workerIDColumn,
	createdAtColumn, scheduledAtColumn, startedAtColumn, finishedAtColumn,
}

// ErrReclaimed is recorded as the last error of a job taken back from a stale worker.
var ErrReclaimed = errors.New("reclaimed from a stale worker")

// reserveSQL locks the next due job of one queue. Losers of the race skip
// the locked row instead of waiting on it. Paused queues yield nothing.
const reserveSQL = `
WITH candidate AS (
    SELECT j.id FROM jobs j
    WHERE j.queue        = $1
      AND j.state        IN ('waiting', 'delayed')
      AND j.scheduled_at <= NOW()
      AND NOT EXISTS (SELECT 1 FROM queues q WHERE q.name = j.queue AND q.paused)
    ORDER BY
        j.priority ASC,
        j.created_at ASC
    LIMIT 1
    FOR UPDATE OF j SKIP LOCKED
)
UPDATE jobs
SET
    state       = 'active',
    attempts    = jobs.attempts + 1,
    worker_id   = $2,
    started_at  = NOW(),
    finished_at = NULL
FROM candidate
WHERE jobs.id = candidate.id
RETURNING
    jobs.id, jobs.queue, jobs.type, jobs.payload, jobs.priority,
    jobs.attempts, jobs.max_attempts, jobs.backoff_type, jobs.backoff_delay_ms,
    jobs.state, jobs.last_error, jobs.worker_id,
    jobs.created_at, jobs.scheduled_at, jobs.started_at, jobs.finished_at`

// reclaimSQL hands stale active jobs back to the retry path, or to the dead
// letter state once their attempts are used up.
const reclaimSQL = `
WITH stale AS (
    SELECT id FROM jobs
    WHERE queue      = $1
      AND state      = 'active'
      AND started_at < $2
    ORDER BY started_at ASC
    LIMIT 500
    FOR UPDATE SKIP LOCKED
)
UPDATE jobs
SET
    state        = CASE WHEN jobs.attempts < jobs.max_attempts THEN 'delayed' ELSE 'failed' END,
    scheduled_at = NOW(),
    last_error   = $3,
    worker_id    = NULL,
    finished_at  = NOW()
FROM stale
WHERE jobs.id = stale.id`

const countsSQL = `
SELECT
    count(*) FILTER (WHERE state IN ('waiting', 'delayed') AND scheduled_at <= NOW()),
    count(*) FILTER (WHERE state = 'active'),
    count(*) FILTER (WHERE state = 'completed'),
    count(*) FILTER (WHERE state = 'failed'),
    count(*) FILTER (WHERE state IN ('waiting', 'delayed') AND scheduled_at > NOW()),
    COALESCE((SELECT paused FROM queues WHERE name = $1), false)
FROM jobs
WHERE queue = $1`

// PostgresBroker stores jobs in the jobs table. Any number of processes may
// reserve from the same queue concurrently.
type PostgresBroker struct {
	*postgres.Postgres
}

func NewPostgresBroker(pg *postgres.Postgres) *PostgresBroker {
	return &PostgresBroker{pg}
}

func (b *PostgresBroker) Add(ctx context.Context, job *entity.Job) (bool, error) {
	sql, args, err := b.Builder.
		Insert(jobsTable).
		Columns(
			idColumn,
			queueColumn,
			typeColumn,
			payloadColumn,
			priorityColumn,
			attemptsColumn,
			maxAttemptsColumn,
			backoffTypeColumn,
			backoffDelayMs,
			stateColumn,
			createdAtColumn,
			scheduledAtColumn,
		).
		Values(
			job.ID,
			job.Queue,
			job.Type,
			job.Payload,
			job.Priority,
			0,
			job.MaxAttempts,
			job.Backoff.Type,
			job.Backoff.Delay.Milliseconds(),
			entity.JobWaiting,
			job.CreatedAt,
			job.ScheduledAt,
		).
		Suffix("ON CONFLICT (" + idColumn + ") DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("PostgresBroker - Add - b.Builder.ToSql: %w", err)
	}

	tag, err := b.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("PostgresBroker - Add - executor.Exec: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (b *PostgresBroker) Reserve(ctx context.Context, queue, workerID string) (*entity.Job, error) {
	job, err := scanJob(b.GetExecutor(ctx).QueryRow(ctx, reserveSQL, queue, workerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("PostgresBroker - Reserve - scanJob: %w", err)
	}

	return job, nil
}

func (b *PostgresBroker) Complete(ctx context.Context, job *entity.Job) error {
	now := time.Now()

	sql, args, err := b.Builder.
		Update(jobsTable).
		Set(stateColumn, entity.JobCompleted).
		Set(finishedAtColumn, now).
		Where(squirrel.Eq{idColumn: job.ID, stateColumn: entity.JobActive}).
		ToSql()
	if err != nil {
		return fmt.Errorf("PostgresBroker - Complete - b.Builder.ToSql: %w", err)
	}

	tag, err := b.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("PostgresBroker - Complete - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("PostgresBroker - Complete: %w", errs.ErrRecordNotFound)
	}

	job.State = entity.JobCompleted
	job.FinishedAt = &now

	return nil
}

func (b *PostgresBroker) Fail(ctx context.Context, job *entity.Job, cause error) (entity.JobState, error) {
	now := time.Now()
	reason := cause.Error()

	q := b.Builder.
		Update(jobsTable).
		Set(lastErrorColumn, reason).
		Set(finishedAtColumn, now).
		Where(squirrel.Eq{idColumn: job.ID, stateColumn: entity.JobActive})

	next := entity.JobFailed
	if !errs.IsFatal(cause) && job.Attempts < job.MaxAttempts {
		next = entity.JobDelayed
		q = q.Set(scheduledAtColumn, now.Add(job.Backoff.Next(job.Attempts)))
	}

	sql, args, err := q.Set(stateColumn, next).ToSql()
	if err != nil {
		return "", fmt.Errorf("PostgresBroker - Fail - b.Builder.ToSql: %w", err)
	}

	tag, err := b.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return "", fmt.Errorf("PostgresBroker - Fail - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("PostgresBroker - Fail: %w", errs.ErrRecordNotFound)
	}

	job.State = next
	job.LastError = &reason
	job.FinishedAt = &now

	return next, nil
}

func (b *PostgresBroker) Reclaim(ctx context.Context, queue string, staleAfter time.Duration) (int, error) {
	tag, err := b.GetExecutor(ctx).Exec(ctx, reclaimSQL, queue, time.Now().Add(-staleAfter), ErrReclaimed.Error())
	if err != nil {
		return 0, fmt.Errorf("PostgresBroker - Reclaim - executor.Exec: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (b *PostgresBroker) Counts(ctx context.Context, queue string) (entity.QueueCounts, error) {
	var c entity.QueueCounts

	err := b.GetExecutor(ctx).QueryRow(ctx, countsSQL, queue).Scan(
		&c.Waiting,
		&c.Active,
		&c.Completed,
		&c.Failed,
		&c.Delayed,
		&c.Paused,
	)
	if err != nil {
		return entity.QueueCounts{}, fmt.Errorf("PostgresBroker - Counts - executor.QueryRow: %w", err)
	}

	return c, nil
}

func (b *PostgresBroker) CompletedSince(ctx context.Context, queue string, since time.Time) (int, error) {
	sql, args, err := b.Builder.
		Select("count(*)").
		From(jobsTable).
		Where(squirrel.And{
			squirrel.Eq{queueColumn: queue, stateColumn: entity.JobCompleted},
			squirrel.GtOrEq{finishedAtColumn: since},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("PostgresBroker - CompletedSince - b.Builder.ToSql: %w", err)
	}

	var n int
	if err = b.GetExecutor(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("PostgresBroker - CompletedSince - executor.QueryRow: %w", err)
	}

	return n, nil
}

func (b *PostgresBroker) RecentCompleted(ctx context.Context, queue string, limit int) ([]*entity.Job, error) {
	return b.list(ctx, "RecentCompleted", squirrel.Eq{queueColumn: queue, stateColumn: entity.JobCompleted}, limit)
}

func (b *PostgresBroker) Failed(ctx context.Context, queue string) ([]*entity.Job, error) {
	return b.list(ctx, "Failed", squirrel.Eq{queueColumn: queue, stateColumn: entity.JobFailed}, 0)
}

func (b *PostgresBroker) list(ctx context.Context, method string, where squirrel.Sqlizer, limit int) ([]*entity.Job, error) {
	q := b.Builder.
		Select(jobColumns...).
		From(jobsTable).
		Where(where).
		OrderBy(finishedAtColumn + " DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit)) //nolint:gosec // checked above
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("PostgresBroker - %s - b.Builder.ToSql: %w", method, err)
	}

	rows, err := b.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("PostgresBroker - %s - executor.Query: %w", method, err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("PostgresBroker - %s - scanJob: %w", method, err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("PostgresBroker - %s - rows.Err: %w", method, err)
	}

	return jobs, nil
}

// Retry moves a failed job back to waiting with a fresh attempt budget.
func (b *PostgresBroker) Retry(ctx context.Context, queue, id string) (bool, error) {
	sql, args, err := b.Builder.
		Update(jobsTable).
		Set(stateColumn, entity.JobWaiting).
		Set(attemptsColumn, 0).
		Set(scheduledAtColumn, time.Now()).
		Set(workerIDColumn, nil).
		Set(startedAtColumn, nil).
		Set(finishedAtColumn, nil).
		Where(squirrel.Eq{idColumn: id, queueColumn: queue, stateColumn: entity.JobFailed}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("PostgresBroker - Retry - b.Builder.ToSql: %w", err)
	}

	tag, err := b.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("PostgresBroker - Retry - executor.Exec: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (b *PostgresBroker) PurgeFailed(ctx context.Context, queue string) (int, error) {
	return b.delete(ctx, "PurgeFailed", squirrel.Eq{queueColumn: queue, stateColumn: entity.JobFailed})
}

// Clean removes jobs in state that finished (or were created) before now-grace.
func (b *PostgresBroker) Clean(ctx context.Context, queue string, grace time.Duration, state entity.JobState) (int, error) {
	return b.delete(ctx, "Clean", squirrel.And{
		squirrel.Eq{queueColumn: queue, stateColumn: state},
		squirrel.Expr("COALESCE("+finishedAtColumn+", "+createdAtColumn+") < ?", time.Now().Add(-grace)),
	})
}

func (b *PostgresBroker) delete(ctx context.Context, method string, where squirrel.Sqlizer) (int, error) {
	sql, args, err := b.Builder.Delete(jobsTable).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("PostgresBroker - %s - b.Builder.ToSql: %w", method, err)
	}

	tag, err := b.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("PostgresBroker - %s - executor.Exec: %w", method, err)
	}

	return int(tag.RowsAffected()), nil
}

func (b *PostgresBroker) Pause(ctx context.Context, queue string) error {
	return b.setPaused(ctx, queue, true)
}

func (b *PostgresBroker) Resume(ctx context.Context, queue string) error {
	return b.setPaused(ctx, queue, false)
}

func (b *PostgresBroker) setPaused(ctx context.Context, queue string, paused bool) error {
	sql, args, err := b.Builder.
		Insert(queuesTable).
		Columns("name", "paused").
		Values(queue, paused).
		Suffix("ON CONFLICT (name) DO UPDATE SET paused = EXCLUDED.paused").
		ToSql()
	if err != nil {
		return fmt.Errorf("PostgresBroker - setPaused - b.Builder.ToSql: %w", err)
	}

	_, err = b.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("PostgresBroker - setPaused - executor.Exec: %w", err)
	}

	return nil
}

// scanJob reads the columns in jobColumns order.
func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job     entity.Job
		delayMs int64
	)

	err := row.Scan(
		&job.ID,
		&job.Queue,
		&job.Type,
		&job.Payload,
		&job.Priority,
		&job.Attempts,
		&job.MaxAttempts,
		&job.Backoff.Type,
		&delayMs,
		&job.State,
		&job.LastError,
		&job.WorkerID,
		&job.CreatedAt,
		&job.ScheduledAt,
		&job.StartedAt,
		&job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Backoff.Delay = time.Duration(delayMs) * time.Millisecond

	return &job, nil
}
