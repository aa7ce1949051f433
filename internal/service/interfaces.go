package service

import (
	"context"

	"github.com/voltmotors/be-warranty-claims/internal/repository"
)

// ClaimStore is the persistence surface the claim state machine runs on.
// Implemented by repository.ClaimRepository.
type ClaimStore interface {
	Create(ctx context.Context, claim *repository.Claim) error
	GetByID(ctx context.Context, id string) (*repository.Claim, error)
	List(ctx context.Context, filter repository.ClaimFilter) ([]*repository.Claim, int64, error)
	// Approve resolves a PENDING claim; approvedBy is nil for system
	// auto-approval. Single-winner: a concurrent resolution loses with
	// InvalidTransition or Busy.
	Approve(ctx context.Context, id string, approvedBy *string, notes *string, ptype repository.ProcessingType) error
	Reject(ctx context.Context, id, rejectedBy, reason string) error
	MarkSelfService(ctx context.Context, id, markedBy, reason string) error
}

// TaskStore is the persistence surface the task assignment state machine
// runs on. Implemented by repository.TaskRepository.
type TaskStore interface {
	// Create inserts the assignment and moves its claim to PROCESSING
	// atomically.
	Create(ctx context.Context, task *repository.TaskAssignment) error
	GetByID(ctx context.Context, id string) (*repository.TaskAssignment, error)
	GetOpenByClaimID(ctx context.Context, claimID string) (*repository.TaskAssignment, error)
	ListByTechnician(ctx context.Context, technicianID string) ([]*repository.TaskAssignment, error)
	Start(ctx context.Context, id string, notes *string) error
	// Complete finishes the assignment, consumes part units for every claim
	// line item and completes the claim, all-or-nothing. Returns the
	// consumed serial numbers.
	Complete(ctx context.Context, id string, claim *repository.Claim, actualHours float64, notes *string) ([]string, error)
}

// PartStore is the part ledger surface. Implemented by
// repository.PartRepository.
type PartStore interface {
	MarkDefective(ctx context.Context, serialNumber string) error
	GetBySerial(ctx context.Context, serialNumber string) (*repository.PartUnit, error)
	CountInStock(ctx context.Context, partModelID string) (int, error)
}

// Notifier receives terminal claim transitions. Implementations must never
// fail the calling operation.
type Notifier interface {
	PublishClaimEvent(eventType, claimID, customerID, actorID string, payload map[string]any)
}
