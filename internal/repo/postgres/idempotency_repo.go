package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairwaylabs/clubhouse/internal/domain"
)

// IdempotencyRepo replays booking results for repeated Idempotency-Key
// headers, so a retried POST does not reserve the same slots twice.
type IdempotencyRepo interface {
	// Lookup returns the stored result for the key, or nil when unseen.
	Lookup(ctx context.Context, key string) (*domain.BookingResult, error)
	// Store records the result under the key for the retention window.
	Store(ctx context.Context, key string, result *domain.BookingResult) error
	// CleanupExpired removes expired idempotency records
	CleanupExpired(ctx context.Context) (int64, error)
}

const idempotencyTTL = 24 * time.Hour

type IdempotencyRepoImpl struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepoImpl {
	return &IdempotencyRepoImpl{pool: pool}
}

func (r *IdempotencyRepoImpl) Lookup(ctx context.Context, key string) (*domain.BookingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var payload []byte
	query := `SELECT result FROM booking_idempotency WHERE key_hash = $1 AND expires_at > now()`
	err := r.pool.QueryRow(ctx, query, hashKey(key)).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result domain.BookingResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode stored booking result: %w", err)
	}
	return &result, nil
}

func (r *IdempotencyRepoImpl) Store(ctx context.Context, key string, result *domain.BookingResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode booking result: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `
		INSERT INTO booking_idempotency (key_hash, result, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key_hash) DO NOTHING`
	_, err = r.pool.Exec(ctx, query, hashKey(key), payload, time.Now().Add(idempotencyTTL))
	return err
}

func (r *IdempotencyRepoImpl) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `DELETE FROM booking_idempotency WHERE expires_at < now()`
	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

// hashKey hashes the idempotency key for privacy and consistent length.
func hashKey(key string) string {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

var _ IdempotencyRepo = (*IdempotencyRepoImpl)(nil)
