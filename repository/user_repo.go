package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cmdf/pdfnote-be/types"
)

type UserRepo interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, id int64) (*types.User, error)
	GetUserByUsername(ctx context.Context, username string) (*types.User, error)
	UpdateUser(ctx context.Context, user *types.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type userRepo struct {
	db DBTX
}

func NewUserRepo(db DBTX) UserRepo {
	return &userRepo{
		db: db,
	}
}

const userColumns = `id, username, email, field, password_hash, is_active, date_joined`

func scanUser(row interface{ Scan(...interface{}) error }) (*types.User, error) {
	var (
		user  types.User
		email sql.NullString
		field sql.NullString
	)
	if err := row.Scan(&user.ID, &user.Username, &email, &field, &user.PasswordHash, &user.IsActive, &user.DateJoined); err != nil {
		return nil, mapError(err)
	}
	if email.Valid {
		user.Email = &email.String
	}
	if field.Valid {
		user.Field = &field.String
	}
	return &user, nil
}

func (r *userRepo) CreateUser(ctx context.Context, user *types.User) error {
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, field, password_hash, is_active, date_joined)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		user.Username, user.Email, user.Field, user.PasswordHash, user.IsActive, user.DateJoined,
	).Scan(&user.ID)
	return mapError(err)
}

func (r *userRepo) GetUser(ctx context.Context, id int64) (*types.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	return scanUser(row)
}

func (r *userRepo) UpdateUser(ctx context.Context, user *types.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = $2, email = $3, field = $4 WHERE id = $1`,
		user.ID, user.Username, user.Email, user.Field,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

func (r *userRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
