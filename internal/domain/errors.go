package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrForbidden           = errors.New("acceso denegado")
	ErrConflict            = errors.New("conflicto con el estado actual")
	ErrInvalidTransition   = errors.New("transición de estado no permitida")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrConcurrencyConflict = errors.New("conflicto de concurrencia: reintentos agotados")

	// ErrLockContention lo devuelve la capa de persistencia ante bloqueos, deadlocks o
	// fallos de serialización. Es transitorio: la unidad de trabajo se reintenta completa.
	ErrLockContention = errors.New("contención de bloqueo")
)
