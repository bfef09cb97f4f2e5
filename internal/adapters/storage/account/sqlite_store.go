package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"loyaltyloop/internal/adapters/storage"
	domain "loyaltyloop/internal/domain/account"
)

const accountColumns = "id, email, password_hash, business_id, email_verified, created_at, last_sign_in_at, failed_logins, locked_until"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new account store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM account WHERE id = ?", id)
	return scanOne(row)
}

// GetByEmail retrieves an Account by normalized email.
// PRE: email is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM account WHERE email = ?", domain.NormalizeEmail(email))
	return scanOne(row)
}

// Create inserts a new Account.
// PRE: entity has been validated and has a password hash
// POST: Entity is persisted, or ErrDuplicateEmail if the email is taken
func (s *SQLiteStore) Create(ctx context.Context, entity domain.Account) error {
	query := "INSERT INTO account (" + accountColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query, args(entity)...)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
		return ErrDuplicateEmail
	}
	return err
}

// Save persists an Account to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	updates := []string{
		"email=excluded.email",
		"password_hash=excluded.password_hash",
		"business_id=excluded.business_id",
		"email_verified=excluded.email_verified",
		"last_sign_in_at=excluded.last_sign_in_at",
		"failed_logins=excluded.failed_logins",
		"locked_until=excluded.locked_until",
	}
	query := fmt.Sprintf(
		"INSERT INTO account (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO UPDATE SET %s",
		accountColumns,
		strings.Join(updates, ", "),
	)
	if _, err := tx.ExecContext(ctx, query, args(entity)...); err != nil {
		return err
	}
	return tx.Commit()
}

// List retrieves Accounts based on the filter, newest first.
// PRE: filter.Limit > 0
// POST: Returns matching entities
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	var b strings.Builder
	var params []any

	b.WriteString("SELECT " + accountColumns + " FROM account")
	if filter.BusinessID != "" {
		b.WriteString(" WHERE business_id = ?")
		params = append(params, filter.BusinessID)
	}
	b.WriteString(" ORDER BY created_at DESC LIMIT ? OFFSET ?")
	params = append(params, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, b.String(), params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Account
	for rows.Next() {
		entity, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the total number of accounts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account").Scan(&count)
	return count, err
}

func args(e domain.Account) []any {
	return []any{
		e.ID,
		domain.NormalizeEmail(e.Email),
		e.PasswordHash,
		e.BusinessID,
		e.EmailVerified,
		e.CreatedAt.UTC().Format(storage.TimeFormat),
		nullableTime(e.LastSignInAt),
		e.FailedLogins,
		nullableTime(e.LockedUntil),
	}
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(storage.TimeFormat)
}

func scanOne(row *sql.Row) (domain.Account, error) {
	entity, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, ErrNotFound
	}
	return entity, err
}

// scanAccount extracts an Account from a row scanner function.
func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var entity domain.Account
	var createdAt string
	var lastSignIn, lockedUntil sql.NullString
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.PasswordHash,
		&entity.BusinessID,
		&entity.EmailVerified,
		&createdAt,
		&lastSignIn,
		&entity.FailedLogins,
		&lockedUntil,
	)
	if err != nil {
		return domain.Account{}, err
	}
	entity.CreatedAt, _ = parseTime(createdAt)
	if lastSignIn.Valid && lastSignIn.String != "" {
		entity.LastSignInAt, _ = parseTime(lastSignIn.String)
	}
	if lockedUntil.Valid && lockedUntil.String != "" {
		entity.LockedUntil, _ = parseTime(lockedUntil.String)
	}
	return entity, nil
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		t, err := time.Parse(f, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}
