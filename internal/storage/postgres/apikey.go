package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swiftcart/commerce-api/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

const findKeyByHashSQL = `SELECT k.id, k.key_hash, k.user_id, u.email, u.name
	FROM api_keys k
	JOIN users u ON u.id = k.user_id
	WHERE k.key_hash = $1`

// FindByHash resolves an API key hash to the owning user's identity.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.Identity, error) {
	var id auth.Identity
	err := r.pool.QueryRow(ctx, findKeyByHashSQL, hash).Scan(
		&id.KeyID, &id.KeyHash, &id.UserID, &id.Email, &id.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("api key not found")
		}
		return nil, errors.Wrap(err, "find api key")
	}
	return &id, nil
}
