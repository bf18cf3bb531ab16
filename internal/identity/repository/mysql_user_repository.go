package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

// MySQLUserRepository implements user persistence for MySQL.
type MySQLUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new MySQL user repository.
func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

// Create inserts a new user. A duplicate address returns ErrUserAlreadyExists.
func (r *MySQLUserRepository) Create(ctx context.Context, user *identityDomain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

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
func (r *MySQLUserRepository) Get(ctx context.Context, address string) (*identityDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + ` FROM users WHERE address = ?`

	return scanUser(querier.QueryRowContext(ctx, query, address))
}

// Update stores the user's name and email. An unknown address returns ErrUserNotFound.
func (r *MySQLUserRepository) Update(ctx context.Context, user *identityDomain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET name = ?, email = ? WHERE address = ?`

	result, err := querier.ExecContext(ctx, query, user.Name, user.Email, user.Address)
	if err != nil {
		return apperrors.Wrap(err, "failed to update user")
	}
	if err := updateResult(result); !errors.Is(err, identityDomain.ErrUserNotFound) {
		return err
	}

	// MySQL reports changed rows, so an update that rewrites identical values affects none.
	var found int
	err = querier.QueryRowContext(ctx, `SELECT 1 FROM users WHERE address = ?`, user.Address).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return identityDomain.ErrUserNotFound
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to update user")
	}
	return nil
}

// List pages through users ordered by creation time, optionally filtered by role.
func (r *MySQLUserRepository) List(
	ctx context.Context,
	role identityDomain.Role,
	offset, limit int,
) ([]*identityDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + ` FROM users
			  WHERE (? = 0 OR role = ?)
			  ORDER BY created_at ASC, address ASC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, role, role, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list users")
	}
	return collectUsers(rows)
}

// CountByRole returns user totals per role.
func (r *MySQLUserRepository) CountByRole(ctx context.Context) (map[identityDomain.Role]int64, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count users")
	}
	return collectCounts(rows)
}
