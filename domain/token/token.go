// Package token describes the bearer-token registry the service consumes to
// authorize downloads and account for their usage.
package token

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrTokenNotFound is returned by registry lookups for unknown tokens.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExists is returned when creating a token that is already registered.
	ErrTokenExists = errors.New("token already exists")
)

// Token is a registered caller credential.
type Token struct {
	Token       string    `db:"token" json:"token"`
	ProjectName string    `db:"project_name" json:"project_name"`
	UsageCount  int64     `db:"usage_count" json:"usage_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Authorization is the result of checking a bearer token.
type Authorization struct {
	Authorized  bool
	ProjectName string
	UsageCount  int64
}

// AccessGate is the contract the download pipeline needs from the token store.
type AccessGate interface {
	// Authorize reports whether token is registered. Unknown tokens are not
	// an error.
	Authorize(ctx context.Context, token string) (Authorization, error)

	// RecordUsage atomically increments the usage counter of token.
	RecordUsage(ctx context.Context, token string) error
}

// Registry is the administrative side of the token store.
type Registry interface {
	AccessGate
	Create(ctx context.Context, token, projectName string) (*Token, error)
	Get(ctx context.Context, token string) (*Token, error)
	List(ctx context.Context) ([]*Token, error)
	Delete(ctx context.Context, token string) error
}

// UsageMode selects when a download request is counted against its token.
type UsageMode string

const (
	// UsageOnSuccess counts a request once its image has been stored.
	UsageOnSuccess UsageMode = "success"
	// UsageOnAccept counts a request as soon as it is authorized.
	UsageOnAccept UsageMode = "accepted"
)

// ParseBearer extracts the token from an Authorization header value.
// It returns "" when the header is absent or not a bearer credential.
func ParseBearer(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
