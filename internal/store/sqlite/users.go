package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/store"
)

const userColumns = `user_id, email, username, hashed_password, is_active, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                domain.User
		created, updated string
	)
	if err := row.Scan(&u.UserID, &u.Email, &u.Username, &u.HashedPassword, &u.IsActive, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}

// InsertUser implements store.UserStore.
func (s *Store) InsertUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.UserID, u.Email, u.Username, u.HashedPassword, u.IsActive,
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("InsertUser: %s: %w", u.Username, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("InsertUser: %w", err)
	}
	return nil
}

// GetUserByID implements store.UserStore.
func (s *Store) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetUserByID: %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetUserByID: %w", err)
	}
	return u, nil
}

// GetUserByLogin implements store.UserStore.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ? LIMIT 1`, login, login)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetUserByLogin: %s: %w", login, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetUserByLogin: %w", err)
	}
	return u, nil
}
