package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/client"
	"github.com/voltmotors/be-warranty-claims/internal/identity"
	"github.com/voltmotors/be-warranty-claims/internal/repository"
	"github.com/voltmotors/be-warranty-claims/internal/rolegate"
)

// PartLedgerService exposes the warehouse-facing part ledger operations. The
// consumption path (IN_STOCK -> INSTALLED) is driven by task completion and
// lives in the task state machine; this service covers the direct ledger
// actions and display reads.
type PartLedgerService struct {
	parts   PartStore
	catalog client.CatalogClientInterface
	log     zerolog.Logger
}

// NewPartLedgerService creates a new part ledger service. catalog may be nil.
func NewPartLedgerService(parts PartStore, catalog client.CatalogClientInterface, log zerolog.Logger) *PartLedgerService {
	return &PartLedgerService{parts: parts, catalog: catalog, log: log}
}

// MarkDefective moves an IN_STOCK unit to DEFECTIVE, never reversibly.
func (s *PartLedgerService) MarkDefective(ctx context.Context, actor identity.Actor, serialNumber string) (*repository.PartUnit, error) {
	if !rolegate.CanPerform(actor.Role, rolegate.ActionMarkDefective) {
		return nil, apperr.Unauthorized(string(actor.Role), string(rolegate.ActionMarkDefective))
	}

	if err := s.parts.MarkDefective(ctx, serialNumber); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("serial_number", serialNumber).
		Str("marked_by", actor.ID).
		Msg("Part unit marked defective")

	return s.parts.GetBySerial(ctx, serialNumber)
}

// PartUnitView is a part unit enriched with catalog display metadata.
type PartUnitView struct {
	Unit  *repository.PartUnit
	Model *client.PartModel
}

// GetUnit returns a part unit with catalog metadata when the catalog is
// reachable. Catalog failures degrade to the bare unit; the ledger never
// depends on the catalog for correctness.
func (s *PartLedgerService) GetUnit(ctx context.Context, serialNumber string) (*PartUnitView, error) {
	unit, err := s.parts.GetBySerial(ctx, serialNumber)
	if err != nil {
		return nil, err
	}

	view := &PartUnitView{Unit: unit}
	if s.catalog != nil {
		model, err := s.catalog.GetPartModel(ctx, unit.PartModelID)
		if err != nil {
			s.log.Debug().Err(err).
				Str("part_model_id", unit.PartModelID).
				Msg("Catalog lookup failed; returning unit without metadata")
		} else {
			view.Model = model
		}
	}
	return view, nil
}

// Stock returns the number of IN_STOCK units for a part model.
func (s *PartLedgerService) Stock(ctx context.Context, partModelID string) (int, error) {
	return s.parts.CountInStock(ctx, partModelID)
}
