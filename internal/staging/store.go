package staging

import "github.com/jackc/pgx/v5/pgxpool"

// Store wraps the connection pool shared by every staging table operation.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store over an already-configured pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
