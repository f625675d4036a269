package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TransactionLedger escritura del ledger: valida y agrega; no existe update ni delete.
type TransactionLedger struct {
	now func() time.Time
}

// NewTransactionLedger construye el ledger.
func NewTransactionLedger() *TransactionLedger {
	return &TransactionLedger{now: time.Now}
}

// Append valida la entrada y la persiste con el repositorio de la transacción en curso.
func (l *TransactionLedger) Append(ctx context.Context, repo repository.LedgerRepository, entry *entity.LedgerEntry) error {
	if err := inventory.ValidateEntry(entry); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}
	return repo.Append(ctx, entry)
}
