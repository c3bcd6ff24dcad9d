package rls

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// InTenantTx runs fn in a transaction whose tenant context is tenantID.
// The context is transaction-local and disappears on commit or rollback,
// which makes this the preferred way for background jobs to touch tenant data.
func InTenantTx(ctx context.Context, db Beginner, tenantID string, fn func(pgx.Tx) error) error {
	id := Canonical(tenantID)
	if id == "" {
		return ErrEmptyTenant
	}
	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sqlSetLocalContext, id); err != nil {
			return errors.Join(ErrContextUnavailable, err)
		}
		return fn(tx)
	})
}

// InAdminTx runs fn in a transaction with an empty tenant context and admin
// mode switched on, so it sees every tenant under both policy modes.
// Reserve it for maintenance work.
func InAdminTx(ctx context.Context, db Beginner, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sqlClearLocalTenant); err != nil {
			return errors.Join(ErrContextUnavailable, err)
		}
		if _, err := tx.Exec(ctx, sqlEnterAdminLocal); err != nil {
			return errors.Join(ErrContextUnavailable, err)
		}
		return fn(tx)
	})
}
