package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// BatchRepository lectura de lotes (los administra catálogo/compras).
type BatchRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Batch, error)
}

// LocationRepository lectura de ubicaciones para validar llaves foráneas.
type LocationRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Location, error)
}

// ProductRepository lectura de productos del catálogo.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}
