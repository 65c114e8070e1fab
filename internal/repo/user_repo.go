package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smschat/server/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("already exists")

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	Create(ctx context.Context, userName, passwordDigest string) (model.User, error)
	GetByUserName(ctx context.Context, userName string) (model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

// Create inserts a new user with the given bcrypt digest. Returns ErrDuplicate
// when the username is taken.
func (r *userRepo) Create(ctx context.Context, userName, passwordDigest string) (model.User, error) {
	query := `
		INSERT INTO users (id, user_name, password_digest)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	user := model.User{
		ID:             uuid.New(),
		UserName:       userName,
		PasswordDigest: passwordDigest,
	}
	err := r.db.QueryRowContext(ctx, query, user.ID.String(), userName, passwordDigest).Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.User{}, ErrDuplicate
		}
		return model.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// GetByUserName retrieves a user by username
func (r *userRepo) GetByUserName(ctx context.Context, userName string) (model.User, error) {
	query := `
		SELECT id, user_name, password_digest, created_at
		FROM users
		WHERE user_name = $1
	`
	var user model.User
	var idStr string
	err := r.db.QueryRowContext(ctx, query, userName).Scan(
		&idStr,
		&user.UserName,
		&user.PasswordDigest,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	return user, nil
}
