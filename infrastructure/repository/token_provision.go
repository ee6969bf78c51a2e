package repository

import (
	"context"
	"errors"
	"fmt"

	"imagesaver/config"
	"imagesaver/domain/token"
)

// ProvisionResult summarises a Provision run
type ProvisionResult struct {
	Created    int
	Revoked    int
	Registered int
}

// Provision registers the configured tokens that are missing and removes the
// revoked ones. Existing tokens keep their project name and usage count.
func (r *TokenRepository) Provision(ctx context.Context, seeds []config.TokenSeed, revoked []string) (ProvisionResult, error) {
	var result ProvisionResult

	for _, seed := range seeds {
		if _, err := r.Get(ctx, seed.Token); err == nil {
			continue
		} else if !errors.Is(err, token.ErrTokenNotFound) {
			return result, fmt.Errorf("provision %s: %w", seed.ProjectName, err)
		}

		_, err := r.Create(ctx, seed.Token, seed.ProjectName)
		if errors.Is(err, token.ErrTokenExists) {
			// Registered concurrently by another instance
			continue
		}
		if err != nil {
			return result, fmt.Errorf("provision %s: %w", seed.ProjectName, err)
		}
		result.Created++
	}

	for _, value := range revoked {
		err := r.Delete(ctx, value)
		if errors.Is(err, token.ErrTokenNotFound) {
			continue
		}
		if err != nil {
			return result, fmt.Errorf("revoke token: %w", err)
		}
		result.Revoked++
	}

	registered, err := r.List(ctx)
	if err != nil {
		return result, err
	}
	result.Registered = len(registered)

	r.logger.Info("Token registry provisioned",
		"created", result.Created,
		"revoked", result.Revoked,
		"registered", result.Registered)
	r.metrics.RecordGauge("repository.tokens.registered", float64(result.Registered), nil)

	return result, nil
}
