package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/store"
)

// UserRow mirrors the users table.
type UserRow struct {
	UserID         string    `bigquery:"user_id"`         // REQUIRED
	Email          string    `bigquery:"email"`           // REQUIRED
	Username       string    `bigquery:"username"`        // REQUIRED
	HashedPassword string    `bigquery:"hashed_password"` // REQUIRED
	IsActive       bool      `bigquery:"is_active"`       // REQUIRED
	CreatedAt      time.Time `bigquery:"created_at"`      // REQUIRED
	UpdatedAt      time.Time `bigquery:"updated_at"`      // REQUIRED
}

const userSelect = `user_id, email, username, hashed_password, is_active, created_at, updated_at`

func userFromRow(row *UserRow) *domain.User {
	return &domain.User{
		UserID:         row.UserID,
		Email:          row.Email,
		Username:       row.Username,
		HashedPassword: row.HashedPassword,
		IsActive:       row.IsActive,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

// InsertUser implements store.UserStore. BigQuery has no unique constraints, so
// the insert carries its own NOT EXISTS guard on id, username and email.
func (r *Repository) InsertUser(ctx context.Context, u *domain.User) error {
	sql := fmt.Sprintf(`
		INSERT INTO %[1]s (`+userSelect+`)
		SELECT @user_id, @email, @username, @hashed_password, @is_active, @created_at, @updated_at
		FROM (SELECT 1)
		WHERE NOT EXISTS (
			SELECT 1 FROM %[1]s
			WHERE user_id = @user_id
				OR LOWER(username) = LOWER(@username)
				OR LOWER(email) = LOWER(@email)
		)
	`, r.table(usersTable))

	n, err := r.runDML(ctx, sql, []bigquery.QueryParameter{
		{Name: "user_id", Value: u.UserID},
		{Name: "email", Value: u.Email},
		{Name: "username", Value: u.Username},
		{Name: "hashed_password", Value: u.HashedPassword},
		{Name: "is_active", Value: u.IsActive},
		{Name: "created_at", Value: u.CreatedAt},
		{Name: "updated_at", Value: u.UpdatedAt},
	})
	if err != nil {
		return fmt.Errorf("InsertUser: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("InsertUser: %s: %w", u.Username, store.ErrConflict)
	}
	return nil
}

// GetUserByID implements store.UserStore.
func (r *Repository) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.getUser(ctx, "GetUserByID", "user_id = @login", userID)
}

// GetUserByLogin implements store.UserStore.
func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	return r.getUser(ctx, "GetUserByLogin", "LOWER(username) = LOWER(@login) OR LOWER(email) = LOWER(@login)", login)
}

func (r *Repository) getUser(ctx context.Context, op, where, login string) (*domain.User, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT `+userSelect+`
		FROM %s
		WHERE %s
		LIMIT 1
	`, r.table(usersTable), where))
	q.Parameters = []bigquery.QueryParameter{{Name: "login", Value: login}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: reading query: %w", op, err)
	}

	var row UserRow
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return nil, fmt.Errorf("%s: %s: %w", op, login, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: iterating: %w", op, err)
	}
	return userFromRow(&row), nil
}
