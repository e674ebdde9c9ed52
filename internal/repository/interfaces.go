package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool the repositories use.
// pgxmock.PgxPoolIface satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// SwapJobRepositoryInterface defines operations for the swap audit trail
type SwapJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.SwapJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SwapJob, error)
	List(ctx context.Context, limit, offset int) ([]domain.SwapJob, error)
	CountByStatus(ctx context.Context, since time.Time) (map[string]int64, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
