package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/database"
)

// TaskRepository handles task assignment persistence. Creation and completion
// are cross-entity transactions: creating an assignment moves its claim to
// PROCESSING, and completing one consumes part units and completes the claim,
// all-or-nothing.
type TaskRepository struct {
	db     *database.DB
	claims *ClaimRepository
	parts  *PartRepository
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *database.DB, claims *ClaimRepository, parts *PartRepository) *TaskRepository {
	return &TaskRepository{db: db, claims: claims, parts: parts}
}

// Create inserts the assignment and moves the claim to PROCESSING in one
// transaction. The partial unique index on open assignments makes a second
// concurrent open assignment per claim impossible.
func (r *TaskRepository) Create(ctx context.Context, task *TaskAssignment) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var open int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM task_assignments
			WHERE claim_id = $1 AND status IN ('ASSIGNED', 'IN_PROGRESS')
		`, task.ClaimID).Scan(&open)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "failed to check open assignments")
		}
		if open > 0 {
			return apperr.InvalidTransition("claim", task.ClaimID,
				"an open task assignment already exists")
		}

		query := `
			INSERT INTO task_assignments
			    (id, claim_id, assigned_by, assigned_to, work_description,
			     status, due_date, estimated_hours, notes)
			VALUES ($1, $2, $3, $4, $5, $6::task_status, $7, $8, $9)
			RETURNING created_at, updated_at
		`
		err = tx.QueryRow(ctx, query,
			task.ID,
			task.ClaimID,
			task.AssignedBy,
			task.AssignedTo,
			task.WorkDescription,
			string(task.Status),
			task.DueDate,
			task.EstimatedHours,
			task.Notes,
		).Scan(&task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "failed to create task assignment")
		}

		return r.claims.MarkProcessingTx(ctx, tx, task.ClaimID)
	})
}

// GetByID retrieves a task assignment.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*TaskAssignment, error) {
	task, err := scanTask(r.db.QueryRow(ctx, taskSelect+` WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("task_assignment", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to get task assignment")
	}
	return task, nil
}

// GetOpenByClaimID returns the open assignment for a claim, or nil when none
// exists.
func (r *TaskRepository) GetOpenByClaimID(ctx context.Context, claimID string) (*TaskAssignment, error) {
	query := taskSelect + `
		WHERE claim_id = $1 AND status IN ('ASSIGNED', 'IN_PROGRESS')
		ORDER BY created_at DESC
		LIMIT 1`

	task, err := scanTask(r.db.QueryRow(ctx, query, claimID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to get open assignment")
	}
	return task, nil
}

// ListByTechnician returns all assignments for a technician, newest first.
func (r *TaskRepository) ListByTechnician(ctx context.Context, technicianID string) ([]*TaskAssignment, error) {
	query := taskSelect + `
		WHERE assigned_to = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, technicianID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to list assignments")
	}
	defer rows.Close()

	tasks := make([]*TaskAssignment, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindInternal, "failed to scan assignment")
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Start moves an ASSIGNED task to IN_PROGRESS and stamps started_at.
func (r *TaskRepository) Start(ctx context.Context, id string, notes *string) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockTask(ctx, tx, id, TaskStatusAssigned); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			UPDATE task_assignments
			SET status     = 'IN_PROGRESS'::task_status,
			    started_at = NOW(),
			    notes      = COALESCE($2, notes),
			    updated_at = NOW()
			WHERE id = $1
		`, id, notes)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "failed to start task assignment")
		}
		return nil
	})
}

// Complete finishes an IN_PROGRESS task in a single transaction: the
// assignment is stamped COMPLETED, every claim line item consumes part units
// from the ledger, and the claim moves to COMPLETED. Any failure (most
// importantly InsufficientStock) rolls the whole operation back, leaving the
// assignment IN_PROGRESS and the ledger untouched. Returns the consumed
// serial numbers.
func (r *TaskRepository) Complete(ctx context.Context, id string, claim *Claim, actualHours float64, notes *string) ([]string, error) {
	var consumed []string
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockTask(ctx, tx, id, TaskStatusInProgress); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			UPDATE task_assignments
			SET status       = 'COMPLETED'::task_status,
			    actual_hours = $2,
			    completed_at = NOW(),
			    notes        = COALESCE($3, notes),
			    updated_at   = NOW()
			WHERE id = $1
		`, id, actualHours, notes)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "failed to complete task assignment")
		}

		for _, line := range claim.Lines {
			serials, err := r.parts.ConsumeTx(ctx, tx, line.PartModelID, line.Quantity,
				claim.ID, claim.VehicleVIN)
			if err != nil {
				return err
			}
			consumed = append(consumed, serials...)
		}

		return r.claims.MarkCompletedTx(ctx, tx, claim.ID)
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────

const taskSelect = `
	SELECT id, claim_id, assigned_by, assigned_to, work_description,
	       status, due_date, estimated_hours, actual_hours,
	       started_at, completed_at, notes, created_at, updated_at
	FROM task_assignments`

// lockTask takes the assignment row lock without waiting and checks the
// expected current status.
func lockTask(ctx context.Context, tx pgx.Tx, id string, want TaskStatus) error {
	var status string
	err := tx.QueryRow(ctx,
		`SELECT status FROM task_assignments WHERE id = $1 FOR UPDATE NOWAIT`,
		id).Scan(&status)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("task_assignment", id)
	}
	if database.IsLockNotAvailable(err) {
		return apperr.Busy("task_assignment", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "failed to lock task assignment")
	}
	if status != string(want) {
		return apperr.InvalidTransition("task_assignment", id,
			fmt.Sprintf("expected status '%s', found '%s'", want, status))
	}
	return nil
}

func scanTask(row rowScanner) (*TaskAssignment, error) {
	task := &TaskAssignment{}
	var status string

	err := row.Scan(
		&task.ID,
		&task.ClaimID,
		&task.AssignedBy,
		&task.AssignedTo,
		&task.WorkDescription,
		&status,
		&task.DueDate,
		&task.EstimatedHours,
		&task.ActualHours,
		&task.StartedAt,
		&task.CompletedAt,
		&task.Notes,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Status = TaskStatus(status)
	return task, nil
}
