package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/client"
	"github.com/voltmotors/be-warranty-claims/internal/identity"
	"github.com/voltmotors/be-warranty-claims/internal/repository"
)

type fakeCatalog struct {
	models map[string]*client.PartModel
	fail   bool
}

func (f *fakeCatalog) GetPartModel(_ context.Context, id string) (*client.PartModel, error) {
	if f.fail {
		return nil, errors.New("catalog unreachable")
	}
	model, ok := f.models[id]
	if !ok {
		return nil, errors.New("unknown part model")
	}
	return model, nil
}

func TestMarkDefective(t *testing.T) {
	parts := newFakePartStore()
	parts.addStock("SN-100", "PM-BATT-75", time.Now())
	svc := NewPartLedgerService(parts, nil, zerolog.Nop())

	unit, err := svc.MarkDefective(context.Background(), scStaff, "SN-100")

	require.NoError(t, err)
	assert.Equal(t, repository.PartStatusDefective, unit.Status)

	// DEFECTIVE is terminal; a second attempt is rejected.
	_, err = svc.MarkDefective(context.Background(), scStaff, "SN-100")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
}

func TestMarkDefectiveRoleGate(t *testing.T) {
	parts := newFakePartStore()
	parts.addStock("SN-101", "PM-BATT-75", time.Now())
	svc := NewPartLedgerService(parts, nil, zerolog.Nop())

	for _, actor := range []identity.Actor{evmStaff, technician, admin} {
		_, err := svc.MarkDefective(context.Background(), actor, "SN-101")
		assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized), "role=%s", actor.Role)
	}

	unit, err := parts.GetBySerial(context.Background(), "SN-101")
	require.NoError(t, err)
	assert.Equal(t, repository.PartStatusInStock, unit.Status)
}

func TestMarkDefectiveNotFound(t *testing.T) {
	svc := NewPartLedgerService(newFakePartStore(), nil, zerolog.Nop())

	_, err := svc.MarkDefective(context.Background(), scStaff, "SN-404")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestGetUnitWithCatalogMetadata(t *testing.T) {
	parts := newFakePartStore()
	parts.addStock("SN-110", "PM-BATT-75", time.Now())
	catalog := &fakeCatalog{models: map[string]*client.PartModel{
		"PM-BATT-75": {ID: "PM-BATT-75", Name: "75 kWh battery pack", Category: "BATTERY"},
	}}
	svc := NewPartLedgerService(parts, catalog, zerolog.Nop())

	view, err := svc.GetUnit(context.Background(), "SN-110")

	require.NoError(t, err)
	assert.Equal(t, "SN-110", view.Unit.SerialNumber)
	require.NotNil(t, view.Model)
	assert.Equal(t, "75 kWh battery pack", view.Model.Name)
}

func TestGetUnitDegradesWhenCatalogFails(t *testing.T) {
	parts := newFakePartStore()
	parts.addStock("SN-111", "PM-BATT-75", time.Now())
	svc := NewPartLedgerService(parts, &fakeCatalog{fail: true}, zerolog.Nop())

	view, err := svc.GetUnit(context.Background(), "SN-111")

	require.NoError(t, err)
	assert.Equal(t, "SN-111", view.Unit.SerialNumber)
	assert.Nil(t, view.Model)
}

func TestStock(t *testing.T) {
	parts := newFakePartStore()
	parts.addStock("SN-120", "PM-BATT-75", time.Now())
	parts.addStock("SN-121", "PM-BATT-75", time.Now())
	require.NoError(t, parts.MarkDefective(context.Background(), "SN-121"))
	svc := NewPartLedgerService(parts, nil, zerolog.Nop())

	n, err := svc.Stock(context.Background(), "PM-BATT-75")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
