package postgres_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"23505", domain.ErrConflict},
		{"23503", domain.ErrNotFound},
		{"22001", domain.ErrInvalidInput},
		{"22P02", domain.ErrInvalidInput},
		{"23514", domain.ErrInvalidInput},
		{"23502", domain.ErrInvalidInput},
		{"55P03", domain.ErrLockContention},
		{"40P01", domain.ErrLockContention},
		{"40001", domain.ErrLockContention},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tc.code}
			err := postgres.MapError(fmt.Errorf("insert ledger entry: %w", pgErr))
			assert.ErrorIs(t, err, tc.want)

			var got *pgconn.PgError
			assert.True(t, errors.As(err, &got), "el error original se conserva")
		})
	}
}

func TestMapError_PassThrough(t *testing.T) {
	assert.NoError(t, postgres.MapError(nil))

	plain := errors.New("boom")
	assert.Same(t, plain, postgres.MapError(plain))

	other := &pgconn.PgError{Code: "XX000"}
	assert.Equal(t, error(other), postgres.MapError(other))

	already := fmt.Errorf("%w: serial X", domain.ErrConflict)
	wrapped := fmt.Errorf("tx: %w", errors.Join(already, &pgconn.PgError{Code: "23505"}))
	assert.Same(t, wrapped, postgres.MapError(wrapped))
}
