package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/database"
)

// ClaimRepository handles warranty claim persistence. All status mutations
// take the claim's row lock with NOWAIT first, so two concurrent resolution
// calls on one claim serialize: one wins, the other sees InvalidTransition
// or Busy.
type ClaimRepository struct {
	db *database.DB
}

// NewClaimRepository creates a new claim repository.
func NewClaimRepository(db *database.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Create inserts a claim and its line items in one transaction.
func (r *ClaimRepository) Create(ctx context.Context, claim *Claim) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO warranty_claims
			    (id, customer_id, vehicle_vin, issue_description, diagnosis_report,
			     status, requested_at)
			VALUES ($1, $2, $3, $4, $5, $6::claim_status, $7)
			RETURNING created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			claim.ID,
			claim.CustomerID,
			claim.VehicleVIN,
			claim.IssueDescription,
			claim.DiagnosisReport,
			string(claim.Status),
			claim.RequestedAt,
		).Scan(&claim.CreatedAt, &claim.UpdatedAt)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "failed to create claim")
		}

		lineQuery := `
			INSERT INTO claim_line_items (id, claim_id, part_model_id, quantity)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`
		for _, line := range claim.Lines {
			line.ClaimID = claim.ID
			err := tx.QueryRow(ctx, lineQuery,
				line.ID,
				line.ClaimID,
				line.PartModelID,
				line.Quantity,
			).Scan(&line.CreatedAt)
			if err != nil {
				return apperr.Wrap(err, apperr.KindInternal, "failed to create claim line item")
			}
		}

		return nil
	})
}

// GetByID retrieves a claim with its line items.
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*Claim, error) {
	query := claimSelect + ` WHERE id = $1`

	claim, err := scanClaim(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("claim", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to get claim")
	}

	lines, err := r.GetLines(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	claim.Lines = lines
	return claim, nil
}

// GetLines retrieves all line items for a claim.
func (r *ClaimRepository) GetLines(ctx context.Context, claimID string) ([]*ClaimLineItem, error) {
	query := `
		SELECT id, claim_id, part_model_id, quantity, created_at
		FROM claim_line_items
		WHERE claim_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, claimID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to get claim line items")
	}
	defer rows.Close()

	lines := make([]*ClaimLineItem, 0)
	for rows.Next() {
		line := &ClaimLineItem{}
		if err := rows.Scan(&line.ID, &line.ClaimID, &line.PartModelID,
			&line.Quantity, &line.CreatedAt); err != nil {
			return nil, apperr.Wrap(err, apperr.KindInternal, "failed to scan claim line item")
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// List retrieves claims with filtering and pagination.
func (r *ClaimRepository) List(ctx context.Context, filter ClaimFilter) ([]*Claim, int64, error) {
	query := claimSelect + ` WHERE TRUE`
	countQuery := `SELECT COUNT(*) FROM warranty_claims WHERE TRUE`

	args := []any{}
	argCount := 1

	if filter.CustomerID != nil {
		query += fmt.Sprintf(" AND customer_id = $%d", argCount)
		countQuery += fmt.Sprintf(" AND customer_id = $%d", argCount)
		args = append(args, *filter.CustomerID)
		argCount++
	}
	if filter.VehicleVIN != nil {
		query += fmt.Sprintf(" AND vehicle_vin = $%d", argCount)
		countQuery += fmt.Sprintf(" AND vehicle_vin = $%d", argCount)
		args = append(args, *filter.VehicleVIN)
		argCount++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d::claim_status", argCount)
		countQuery += fmt.Sprintf(" AND status = $%d::claim_status", argCount)
		args = append(args, string(*filter.Status))
		argCount++
	}

	query += " ORDER BY requested_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
	queryArgs := append(args, filter.Limit, filter.Offset)

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(err, apperr.KindInternal, "failed to count claims")
	}

	rows, err := r.db.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.KindInternal, "failed to list claims")
	}
	defer rows.Close()

	claims := make([]*Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(err, apperr.KindInternal, "failed to scan claim")
		}
		claims = append(claims, claim)
	}
	return claims, total, nil
}

// Approve resolves a PENDING claim to APPROVED with the given processing
// type. approvedBy is nil for system auto-approval.
func (r *ClaimRepository) Approve(ctx context.Context, id string, approvedBy *string, notes *string, ptype ProcessingType) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockPendingClaim(ctx, tx, id); err != nil {
			return err
		}

		query := `
			UPDATE warranty_claims
			SET status          = 'APPROVED'::claim_status,
			    processing_type = $2::processing_type,
			    resolved_by     = $3,
			    resolved_at     = NOW(),
			    approval_notes  = $4,
			    updated_at      = NOW()
			WHERE id = $1 AND status = 'PENDING' AND processing_type IS NULL
		`
		tag, err := tx.Exec(ctx, query, id, string(ptype), approvedBy, notes)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "failed to approve claim")
		}
		if tag.RowsAffected() == 0 {
			return apperr.InvalidTransition("claim", id, "already resolved")
		}
		return nil
	})
}

// Reject resolves a PENDING claim to the terminal REJECTED state.
func (r *ClaimRepository) Reject(ctx context.Context, id, rejectedBy, reason string) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockPendingClaim(ctx, tx, id); err != nil {
			return err
		}

		query := `
			UPDATE warranty_claims
			SET status           = 'REJECTED'::claim_status,
			    resolved_by      = $2,
			    resolved_at      = NOW(),
			    rejection_reason = $3,
			    updated_at       = NOW()
			WHERE id = $1 AND status = 'PENDING'
		`
		tag, err := tx.Exec(ctx, query, id, rejectedBy, reason)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "failed to reject claim")
		}
		if tag.RowsAffected() == 0 {
			return apperr.InvalidTransition("claim", id, "already resolved")
		}
		return nil
	})
}

// MarkSelfService resolves a PENDING claim to APPROVED with the SELF_SERVICE
// processing type; the claim is terminal from the engine's perspective.
func (r *ClaimRepository) MarkSelfService(ctx context.Context, id, markedBy, reason string) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockPendingClaim(ctx, tx, id); err != nil {
			return err
		}

		query := `
			UPDATE warranty_claims
			SET status          = 'APPROVED'::claim_status,
			    processing_type = 'SELF_SERVICE'::processing_type,
			    resolved_by     = $2,
			    resolved_at     = NOW(),
			    approval_notes  = $3,
			    updated_at      = NOW()
			WHERE id = $1 AND status = 'PENDING' AND processing_type IS NULL
		`
		tag, err := tx.Exec(ctx, query, id, markedBy, reason)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "failed to mark claim self-service")
		}
		if tag.RowsAffected() == 0 {
			return apperr.InvalidTransition("claim", id, "already resolved")
		}
		return nil
	})
}

// MarkProcessingTx moves an APPROVED technician-actionable claim to
// PROCESSING inside the caller's transaction (task creation).
func (r *ClaimRepository) MarkProcessingTx(ctx context.Context, tx pgx.Tx, id string) error {
	query := `
		UPDATE warranty_claims
		SET status     = 'PROCESSING'::claim_status,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'APPROVED'
		  AND processing_type IN ('MANUFACTURER_APPROVAL', 'AUTO_APPROVED')
	`
	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "failed to move claim to processing")
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidTransition("claim", id, "not in an assignable state")
	}
	return nil
}

// MarkCompletedTx completes a PROCESSING claim inside the caller's
// transaction (task completion). Self-service claims never pass through here.
func (r *ClaimRepository) MarkCompletedTx(ctx context.Context, tx pgx.Tx, id string) error {
	query := `
		UPDATE warranty_claims
		SET status     = 'COMPLETED'::claim_status,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'PROCESSING'
		  AND processing_type <> 'SELF_SERVICE'
	`
	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "failed to complete claim")
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidTransition("claim", id, "not in PROCESSING")
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────

const claimSelect = `
	SELECT id, customer_id, vehicle_vin, issue_description, diagnosis_report,
	       status, processing_type, requested_at,
	       resolved_by, resolved_at, approval_notes, rejection_reason,
	       created_at, updated_at
	FROM warranty_claims`

// lockPendingClaim takes the claim's row lock without waiting. Lock
// contention surfaces as Busy; a missing row as NotFound; an already
// resolved claim as InvalidTransition.
func lockPendingClaim(ctx context.Context, tx pgx.Tx, id string) error {
	var status string
	err := tx.QueryRow(ctx,
		`SELECT status FROM warranty_claims WHERE id = $1 FOR UPDATE NOWAIT`,
		id).Scan(&status)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("claim", id)
	}
	if database.IsLockNotAvailable(err) {
		return apperr.Busy("claim", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "failed to lock claim")
	}
	if status != string(ClaimStatusPending) {
		return apperr.InvalidTransition("claim", id,
			fmt.Sprintf("cannot resolve claim with status '%s'", status))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*Claim, error) {
	claim := &Claim{}
	var status string
	var ptype *string

	err := row.Scan(
		&claim.ID,
		&claim.CustomerID,
		&claim.VehicleVIN,
		&claim.IssueDescription,
		&claim.DiagnosisReport,
		&status,
		&ptype,
		&claim.RequestedAt,
		&claim.ResolvedBy,
		&claim.ResolvedAt,
		&claim.ApprovalNotes,
		&claim.RejectionReason,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, ok := ParseClaimStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown claim status %q", status)
	}
	claim.Status = parsed

	if ptype != nil {
		p := ProcessingType(*ptype)
		claim.ProcessingType = &p
	}
	return claim, nil
}
