// Package repository implements the token registry on top of the SQL store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"imagesaver/domain/observability"
	"imagesaver/domain/token"
	"imagesaver/infrastructure/database"
)

const tokensTable = "tokens"

var tokenColumns = []string{"token", "project_name", "usage_count", "created_at"}

var _ token.Registry = (*TokenRepository)(nil)

// TokenRepository implements token.Registry
type TokenRepository struct {
	db      *database.DB
	qb      squirrel.StatementBuilderType
	logger  observability.Logger
	metrics observability.Metrics
}

// NewTokenRepository creates a token repository
func NewTokenRepository(db *database.DB, logger observability.Logger, metrics observability.Metrics) *TokenRepository {
	return &TokenRepository{
		db:      db,
		qb:      db.StatementBuilder(),
		logger:  logger,
		metrics: metrics,
	}
}

// Authorize looks token up. An unknown token yields Authorized=false.
func (r *TokenRepository) Authorize(ctx context.Context, value string) (token.Authorization, error) {
	if value == "" {
		r.metrics.IncrementCounter("repository.tokens.authorize", map[string]string{"result": "denied"})
		return token.Authorization{}, nil
	}

	t, err := r.Get(ctx, value)
	if errors.Is(err, token.ErrTokenNotFound) {
		r.metrics.IncrementCounter("repository.tokens.authorize", map[string]string{"result": "denied"})
		return token.Authorization{}, nil
	}
	if err != nil {
		r.metrics.IncrementCounter("repository.tokens.authorize", map[string]string{"result": "error"})
		return token.Authorization{}, err
	}

	r.metrics.IncrementCounter("repository.tokens.authorize", map[string]string{"result": "granted"})
	return token.Authorization{
		Authorized:  true,
		ProjectName: t.ProjectName,
		UsageCount:  t.UsageCount,
	}, nil
}

// RecordUsage increments the usage counter in a single statement, so
// concurrent requests never lose an increment.
func (r *TokenRepository) RecordUsage(ctx context.Context, value string) error {
	query := r.qb.Update(tokensTable).
		Set("usage_count", squirrel.Expr("usage_count + 1")).
		Where(squirrel.Eq{"token": value})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	result, err := r.db.Execute(ctx, sqlQuery, args...)
	if err != nil {
		r.metrics.IncrementCounter("repository.tokens.errors", map[string]string{"operation": "record_usage"})
		return fmt.Errorf("record usage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	if affected == 0 {
		return token.ErrTokenNotFound
	}

	r.metrics.IncrementCounter("repository.tokens.usage", nil)
	return nil
}

// Create registers a new token
func (r *TokenRepository) Create(ctx context.Context, value, projectName string) (*token.Token, error) {
	if value == "" {
		return nil, fmt.Errorf("token value is required")
	}

	t := &token.Token{
		Token:       value,
		ProjectName: projectName,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	query := r.qb.Insert(tokensTable).
		Columns(tokenColumns...).
		Values(t.Token, t.ProjectName, t.UsageCount, t.CreatedAt)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.Execute(ctx, sqlQuery, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, token.ErrTokenExists
		}
		r.metrics.IncrementCounter("repository.tokens.errors", map[string]string{"operation": "create"})
		return nil, fmt.Errorf("create token: %w", err)
	}

	r.logger.Info("Token created", "project", projectName)
	r.metrics.IncrementCounter("repository.tokens.create", nil)
	return t, nil
}

// Get returns the token record for value
func (r *TokenRepository) Get(ctx context.Context, value string) (*token.Token, error) {
	query := r.qb.Select(tokenColumns...).
		From(tokensTable).
		Where(squirrel.Eq{"token": value})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t token.Token
	err = r.db.Get(ctx, &t, sqlQuery, args...)
	if err == sql.ErrNoRows {
		return nil, token.ErrTokenNotFound
	}
	if err != nil {
		r.metrics.IncrementCounter("repository.tokens.errors", map[string]string{"operation": "get"})
		return nil, fmt.Errorf("get token: %w", err)
	}

	return &t, nil
}

// List returns all tokens ordered by creation time
func (r *TokenRepository) List(ctx context.Context) ([]*token.Token, error) {
	query := r.qb.Select(tokenColumns...).
		From(tokensTable).
		OrderBy("created_at ASC", "token ASC")

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var tokens []*token.Token
	if err := r.db.Select(ctx, &tokens, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// Delete removes a token
func (r *TokenRepository) Delete(ctx context.Context, value string) error {
	query := r.qb.Delete(tokensTable).
		Where(squirrel.Eq{"token": value})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	result, err := r.db.Execute(ctx, sqlQuery, args...)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return token.ErrTokenNotFound
	}

	r.logger.Info("Token deleted")
	return nil
}

// isUniqueViolation recognises primary key conflicts from both drivers
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT
	}

	return false
}
