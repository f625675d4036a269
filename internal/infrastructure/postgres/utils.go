package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// MapError traduce códigos SQLSTATE a errores de dominio conservando el error original.
//   - 23505 unique_violation -> ErrConflict
//   - 23503 foreign_key_violation -> ErrNotFound
//   - 22001, 22P02, 23502, 23514 (texto muy largo, dato inválido, not null, check) -> ErrInvalidInput
//   - 55P03 lock_not_available, 40P01 deadlock, 40001 serialization -> ErrLockContention (se reintenta)
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	var sentinel error
	switch pgErr.Code {
	case "23505":
		sentinel = domain.ErrConflict
	case "23503":
		sentinel = domain.ErrNotFound
	case "22001", "22P02", "23502", "23514":
		sentinel = domain.ErrInvalidInput
	case "55P03", "40P01", "40001":
		sentinel = domain.ErrLockContention
	default:
		return err
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
