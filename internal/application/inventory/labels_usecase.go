package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// LabelsUseCase genera el PDF de etiquetas (QR por serial) de las unidades de un lote.
type LabelsUseCase struct {
	batches  repository.BatchRepository
	products repository.ProductRepository
	units    repository.SerialUnitRepository
	renderer LabelRenderer
}

// NewLabelsUseCase construye el caso de uso.
func NewLabelsUseCase(d Deps, renderer LabelRenderer) *LabelsUseCase {
	return &LabelsUseCase{batches: d.Batches, products: d.Products, units: d.Units, renderer: renderer}
}

// BatchLabels etiquetas de todas las unidades vigentes del lote.
func (uc *LabelsUseCase) BatchLabels(ctx context.Context, scope entity.Scope, batchID string) ([]byte, error) {
	if !scope.Valid() {
		return nil, domain.ErrForbidden
	}
	batch, err := uc.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil || !scope.Owns(batch.OrganizationID) {
		return nil, fmt.Errorf("%w: lote %s", domain.ErrNotFound, batchID)
	}
	var product *entity.Product
	if uc.products != nil {
		if product, err = uc.products.GetByID(ctx, batch.ProductID); err != nil {
			return nil, err
		}
	}
	if product == nil {
		product = &entity.Product{ID: batch.ProductID, OrganizationID: batch.OrganizationID}
	}

	var units []*entity.SerialUnit
	for offset := 0; ; offset += maxListLimit {
		page, total, err := uc.units.List(ctx, repository.SerialUnitFilter{
			OrganizationID: batch.OrganizationID,
			BatchID:        batch.ID,
			Limit:          maxListLimit,
			Offset:         offset,
		})
		if err != nil {
			return nil, err
		}
		units = append(units, page...)
		if len(page) == 0 || len(units) >= total {
			break
		}
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: el lote %s no tiene unidades", domain.ErrNotFound, batchID)
	}
	return uc.renderer.RenderLabels(batch, product, units)
}
