package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hotelcast/tokenauth/principal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of *pgxpool.Pool used by Postgres.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

const userColumns = `
	SELECT
		u.id, u.email, u.hashed_password, u.is_active, u.system_role,
		COALESCE(
			json_agg(json_build_object('id', uh.hotel_id, 'user_role', uh.role) ORDER BY uh.hotel_id)
				FILTER (WHERE uh.hotel_id IS NOT NULL),
			'[]'
		)
	FROM "user" u
	LEFT JOIN user_hotel uh ON uh.user_id = u.id`

const (
	queryUserByEmail = userColumns + `
	WHERE lower(u.email) = lower($1)
	GROUP BY u.id`

	queryUserByID = userColumns + `
	WHERE u.id = $1
	GROUP BY u.id`
)

// Postgres reads users and their hotel roles from PostgreSQL.
type Postgres struct {
	db Querier
}

// NewPostgres wraps db, usually a *pgxpool.Pool.
func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

func (d *Postgres) Authenticate(ctx context.Context, email, password string) (principal.Principal, error) {
	u, err := d.scanUser(d.db.QueryRow(ctx, queryUserByEmail, normalizeEmail(email)))
	if errors.Is(err, ErrNotFound) {
		return authenticate(User{}, false, password)
	}
	if err != nil {
		return principal.Principal{}, err
	}
	return authenticate(u, true, password)
}

func (d *Postgres) Lookup(ctx context.Context, userID int64) (principal.Principal, error) {
	u, err := d.scanUser(d.db.QueryRow(ctx, queryUserByID, userID))
	if err != nil {
		return principal.Principal{}, err
	}
	if !u.Active {
		return principal.Principal{}, ErrNotFound
	}
	p, err := u.Principal()
	if err != nil {
		return principal.Principal{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	return p, nil
}

func (d *Postgres) scanUser(row pgx.Row) (User, error) {
	var (
		u      User
		role   string
		hotels []byte
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Active, &role, &hotels)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	u.SystemRole = principal.SystemRole(role)
	if err := json.Unmarshal(hotels, &u.Hotels); err != nil {
		return User{}, fmt.Errorf("user %d: decode hotels: %w", u.ID, err)
	}
	return u, nil
}

// Connect opens a pgxpool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return pool, nil
}
