package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/database"
)

// PartRepository is the part ledger: it tracks serial-numbered part units and
// enforces that a unit is consumed by at most one claim and never returns to
// IN_STOCK once INSTALLED or DEFECTIVE.
type PartRepository struct {
	db *database.DB
}

// NewPartRepository creates a new part repository.
func NewPartRepository(db *database.DB) *PartRepository {
	return &PartRepository{db: db}
}

// ConsumeTx marks quantity IN_STOCK units of the given model as INSTALLED for
// a claim, oldest-received first, inside the caller's transaction. The call
// is all-or-nothing: if fewer than quantity units are in stock it returns
// InsufficientStock and touches nothing. Concurrent consumers of the same
// model serialize on the row locks; contention surfaces as Busy.
func (r *PartRepository) ConsumeTx(ctx context.Context, tx pgx.Tx, partModelID string, quantity int, claimID, vehicleVIN string) ([]string, error) {
	selectQuery := `
		SELECT serial_number
		FROM part_units
		WHERE part_model_id = $1 AND status = 'IN_STOCK'
		ORDER BY received_at ASC, serial_number ASC
		LIMIT $2
		FOR UPDATE NOWAIT
	`

	rows, err := tx.Query(ctx, selectQuery, partModelID, quantity)
	if err != nil {
		if database.IsLockNotAvailable(err) {
			return nil, apperr.Busy("part_model", partModelID)
		}
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to select in-stock units")
	}

	serials := make([]string, 0, quantity)
	for rows.Next() {
		var serial string
		if err := rows.Scan(&serial); err != nil {
			rows.Close()
			return nil, apperr.Wrap(err, apperr.KindInternal, "failed to scan part unit")
		}
		serials = append(serials, serial)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		if database.IsLockNotAvailable(err) {
			return nil, apperr.Busy("part_model", partModelID)
		}
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to select in-stock units")
	}

	if len(serials) < quantity {
		return nil, apperr.InsufficientStock(partModelID, quantity, len(serials))
	}

	updateQuery := `
		UPDATE part_units
		SET status        = 'INSTALLED'::part_status,
		    claim_id      = $2,
		    installed_at  = NOW(),
		    installed_vin = $3,
		    updated_at    = NOW()
		WHERE serial_number = ANY($1) AND status = 'IN_STOCK'
	`
	tag, err := tx.Exec(ctx, updateQuery, serials, claimID, vehicleVIN)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to install part units")
	}
	if int(tag.RowsAffected()) != len(serials) {
		// Locked rows cannot change under us, so this is a programming error.
		return nil, apperr.Newf(apperr.KindInternal,
			"installed %d of %d selected units for model %s",
			tag.RowsAffected(), len(serials), partModelID)
	}

	return serials, nil
}

// MarkDefective moves an IN_STOCK unit to DEFECTIVE. The transition is never
// reversible.
func (r *PartRepository) MarkDefective(ctx context.Context, serialNumber string) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM part_units WHERE serial_number = $1 FOR UPDATE NOWAIT`,
			serialNumber).Scan(&status)
		if err == pgx.ErrNoRows {
			return apperr.NotFound("part_unit", serialNumber)
		}
		if database.IsLockNotAvailable(err) {
			return apperr.Busy("part_unit", serialNumber)
		}
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "failed to lock part unit")
		}
		if status != string(PartStatusInStock) {
			return apperr.InvalidTransition("part_unit", serialNumber,
				fmt.Sprintf("cannot mark unit defective from status '%s'", status))
		}

		_, err = tx.Exec(ctx, `
			UPDATE part_units
			SET status = 'DEFECTIVE'::part_status, updated_at = NOW()
			WHERE serial_number = $1
		`, serialNumber)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "failed to mark part unit defective")
		}
		return nil
	})
}

// GetBySerial retrieves a single part unit.
func (r *PartRepository) GetBySerial(ctx context.Context, serialNumber string) (*PartUnit, error) {
	query := `
		SELECT serial_number, part_model_id, status, warehouse_id,
		       claim_id, installed_at, installed_vin, received_at, updated_at
		FROM part_units
		WHERE serial_number = $1
	`

	unit := &PartUnit{}
	var status string
	err := r.db.QueryRow(ctx, query, serialNumber).Scan(
		&unit.SerialNumber,
		&unit.PartModelID,
		&status,
		&unit.WarehouseID,
		&unit.ClaimID,
		&unit.InstalledAt,
		&unit.InstalledVIN,
		&unit.ReceivedAt,
		&unit.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("part_unit", serialNumber)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to get part unit")
	}
	unit.Status = PartStatus(status)
	return unit, nil
}

// CountInStock returns the number of IN_STOCK units for a part model.
func (r *PartRepository) CountInStock(ctx context.Context, partModelID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM part_units WHERE part_model_id = $1 AND status = 'IN_STOCK'`,
		partModelID).Scan(&count)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindInternal, "failed to count in-stock units")
	}
	return count, nil
}
