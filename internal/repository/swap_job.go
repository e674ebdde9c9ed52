package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ErrDuplicateSwapJob is returned when a job ID is inserted twice.
var ErrDuplicateSwapJob = errors.New("swap job already exists")

var _ SwapJobRepositoryInterface = (*SwapJobRepository)(nil)

type SwapJobRepository struct {
	pool PgxPool
}

func NewSwapJobRepository(pool PgxPool) *SwapJobRepository {
	return &SwapJobRepository{pool: pool}
}

// Create inserts job. A zero ID is replaced with a fresh one and CreatedAt is
// filled from the database clock.
func (r *SwapJobRepository) Create(ctx context.Context, job *domain.SwapJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	query := `
		INSERT INTO swap_jobs (id, request_id, status, error_code, provider, source_faces, target_faces, width, height, latency_ms, client_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		job.ID,
		job.RequestID,
		string(job.Status),
		job.ErrorCode,
		job.Provider,
		job.SourceFaces,
		job.TargetFaces,
		job.Width,
		job.Height,
		job.LatencyMs,
		job.ClientIP,
	).Scan(&job.CreatedAt)

	if isUniqueViolation(err) {
		return fmt.Errorf("create swap job %s: %w", job.ID, ErrDuplicateSwapJob)
	}
	if err != nil {
		return fmt.Errorf("create swap job: %w", err)
	}

	return nil
}

func (r *SwapJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SwapJob, error) {
	query := `
		SELECT id, request_id, status, error_code, provider, source_faces, target_faces, width, height, latency_ms, client_ip, created_at
		FROM swap_jobs
		WHERE id = $1
	`

	job, err := scanSwapJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSwapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get swap job: %w", err)
	}

	return job, nil
}

// List returns jobs newest first.
func (r *SwapJobRepository) List(ctx context.Context, limit, offset int) ([]domain.SwapJob, error) {
	limit, offset = clampPage(limit, offset)

	query := `
		SELECT id, request_id, status, error_code, provider, source_faces, target_faces, width, height, latency_ms, client_ip, created_at
		FROM swap_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list swap jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.SwapJob, 0, limit)
	for rows.Next() {
		job, err := scanSwapJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap jobs: %w", err)
	}

	return jobs, nil
}

// CountByStatus counts jobs created at or after since, keyed by status.
func (r *SwapJobRepository) CountByStatus(ctx context.Context, since time.Time) (map[string]int64, error) {
	query := `
		SELECT status, COUNT(*)
		FROM swap_jobs
		WHERE created_at >= $1
		GROUP BY status
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("count swap jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan swap job count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap job counts: %w", err)
	}

	return counts, nil
}

func (r *SwapJobRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `DELETE FROM swap_jobs WHERE created_at < $1`

	tag, err := r.pool.Exec(ctx, query, time.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("delete old swap jobs: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanSwapJob(row pgx.Row) (*domain.SwapJob, error) {
	var job domain.SwapJob
	var status string
	err := row.Scan(
		&job.ID,
		&job.RequestID,
		&status,
		&job.ErrorCode,
		&job.Provider,
		&job.SourceFaces,
		&job.TargetFaces,
		&job.Width,
		&job.Height,
		&job.LatencyMs,
		&job.ClientIP,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = domain.SwapStatus(status)
	return &job, nil
}
