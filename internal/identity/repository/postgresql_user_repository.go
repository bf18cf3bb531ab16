// Package repository persists users in PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

const userColumns = `address, role, name, email, identity_public_key, created_at, created_by`

// PostgreSQLUserRepository implements user persistence for PostgreSQL.
type PostgreSQLUserRepository struct {
	db *sql.DB
}

// NewPostgreSQLUserRepository creates a new PostgreSQL user repository.
func NewPostgreSQLUserRepository(db *sql.DB) *PostgreSQLUserRepository {
	return &PostgreSQLUserRepository{db: db}
}

// Create inserts a new user. A duplicate address returns ErrUserAlreadyExists.
func (r *PostgreSQLUserRepository) Create(ctx context.Context, user *identityDomain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		user.Address,
		user.Role,
		user.Name,
		user.Email,
		[]byte(user.IdentityPublicKey),
		user.CreatedAt,
		user.CreatedBy,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return identityDomain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

// Get retrieves a user by address.
func (r *PostgreSQLUserRepository) Get(ctx context.Context, address string) (*identityDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + ` FROM users WHERE address = $1`

	return scanUser(querier.QueryRowContext(ctx, query, address))
}

// Update stores the user's name and email. An unknown address returns ErrUserNotFound.
func (r *PostgreSQLUserRepository) Update(ctx context.Context, user *identityDomain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET name = $1, email = $2 WHERE address = $3`

	result, err := querier.ExecContext(ctx, query, user.Name, user.Email, user.Address)
	if err != nil {
		return apperrors.Wrap(err, "failed to update user")
	}
	return updateResult(result)
}

// List pages through users ordered by creation time, optionally filtered by role.
func (r *PostgreSQLUserRepository) List(
	ctx context.Context,
	role identityDomain.Role,
	offset, limit int,
) ([]*identityDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + ` FROM users
			  WHERE ($1 = 0 OR role = $1)
			  ORDER BY created_at ASC, address ASC LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, role, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list users")
	}
	return collectUsers(rows)
}

// CountByRole returns user totals per role.
func (r *PostgreSQLUserRepository) CountByRole(ctx context.Context) (map[identityDomain.Role]int64, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count users")
	}
	return collectCounts(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*identityDomain.User, error) {
	var (
		user identityDomain.User
		key  []byte
	)
	err := row.Scan(
		&user.Address,
		&user.Role,
		&user.Name,
		&user.Email,
		&key,
		&user.CreatedAt,
		&user.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identityDomain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user")
	}
	user.IdentityPublicKey = key
	return &user, nil
}

func collectUsers(rows *sql.Rows) ([]*identityDomain.User, error) {
	defer func() {
		_ = rows.Close()
	}()

	users := make([]*identityDomain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate users")
	}
	return users, nil
}

func collectCounts(rows *sql.Rows) (map[identityDomain.Role]int64, error) {
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[identityDomain.Role]int64, len(identityDomain.Roles))
	for _, role := range identityDomain.Roles {
		counts[role] = 0
	}
	for rows.Next() {
		var (
			role  identityDomain.Role
			count int64
		)
		if err := rows.Scan(&role, &count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan user count")
		}
		counts[role] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate user counts")
	}
	return counts, nil
}

// updateResult maps an update that matched no row to ErrUserNotFound.
func updateResult(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return identityDomain.ErrUserNotFound
	}
	return nil
}
