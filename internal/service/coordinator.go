package service

import (
	"context"

	"github.com/voltmotors/be-warranty-claims/internal/identity"
	"github.com/voltmotors/be-warranty-claims/internal/repository"
)

// WorkflowCoordinator is the single entry point the transport layer talks to:
// one method per external workflow event, each dispatched to the state
// machine that owns it.
type WorkflowCoordinator struct {
	claims *ClaimService
	tasks  *TaskService
	parts  *PartLedgerService
}

// NewWorkflowCoordinator creates a new coordinator.
func NewWorkflowCoordinator(claims *ClaimService, tasks *TaskService, parts *PartLedgerService) *WorkflowCoordinator {
	return &WorkflowCoordinator{claims: claims, tasks: tasks, parts: parts}
}

// SubmitClaim handles a claim submission event.
func (c *WorkflowCoordinator) SubmitClaim(ctx context.Context, actor identity.Actor, req *SubmitClaimRequest) (*repository.Claim, error) {
	return c.claims.Submit(ctx, actor, req)
}

// ApproveClaim handles a manual claim approval event.
func (c *WorkflowCoordinator) ApproveClaim(ctx context.Context, actor identity.Actor, claimID string, notes *string) (*repository.Claim, error) {
	return c.claims.Approve(ctx, actor, claimID, notes)
}

// RejectClaim handles a claim rejection event.
func (c *WorkflowCoordinator) RejectClaim(ctx context.Context, actor identity.Actor, claimID, reason string) (*repository.Claim, error) {
	return c.claims.Reject(ctx, actor, claimID, reason)
}

// MarkSelfService handles the self-service resolution event.
func (c *WorkflowCoordinator) MarkSelfService(ctx context.Context, actor identity.Actor, claimID, reason string) (*repository.Claim, error) {
	return c.claims.MarkSelfService(ctx, actor, claimID, reason)
}

// AssignTask handles a task assignment event.
func (c *WorkflowCoordinator) AssignTask(ctx context.Context, actor identity.Actor, req *AssignTaskRequest) (*repository.TaskAssignment, error) {
	return c.tasks.Assign(ctx, actor, req)
}

// StartTask handles a task start event.
func (c *WorkflowCoordinator) StartTask(ctx context.Context, actor identity.Actor, taskID string, notes *string) (*repository.TaskAssignment, error) {
	return c.tasks.Start(ctx, actor, taskID, notes)
}

// CompleteTask handles a task completion event.
func (c *WorkflowCoordinator) CompleteTask(ctx context.Context, actor identity.Actor, taskID string, actualHours float64, notes *string) (*repository.TaskAssignment, error) {
	return c.tasks.Complete(ctx, actor, taskID, actualHours, notes)
}

// MarkDefective handles a warehouse defective-unit event.
func (c *WorkflowCoordinator) MarkDefective(ctx context.Context, actor identity.Actor, serialNumber string) (*repository.PartUnit, error) {
	return c.parts.MarkDefective(ctx, actor, serialNumber)
}

// GetClaim retrieves a claim.
func (c *WorkflowCoordinator) GetClaim(ctx context.Context, claimID string) (*repository.Claim, error) {
	return c.claims.Get(ctx, claimID)
}

// ListClaims retrieves claims with filtering and pagination.
func (c *WorkflowCoordinator) ListClaims(ctx context.Context, filter repository.ClaimFilter) ([]*repository.Claim, int64, error) {
	return c.claims.List(ctx, filter)
}

// GetTask retrieves a task assignment.
func (c *WorkflowCoordinator) GetTask(ctx context.Context, taskID string) (*repository.TaskAssignment, error) {
	return c.tasks.Get(ctx, taskID)
}

// ListTechnicianTasks retrieves a technician's assignments.
func (c *WorkflowCoordinator) ListTechnicianTasks(ctx context.Context, technicianID string) ([]*repository.TaskAssignment, error) {
	return c.tasks.ListForTechnician(ctx, technicianID)
}

// GetPartUnit retrieves a part unit with catalog metadata.
func (c *WorkflowCoordinator) GetPartUnit(ctx context.Context, serialNumber string) (*PartUnitView, error) {
	return c.parts.GetUnit(ctx, serialNumber)
}

// PartStock returns the in-stock count for a part model.
func (c *WorkflowCoordinator) PartStock(ctx context.Context, partModelID string) (int, error) {
	return c.parts.Stock(ctx, partModelID)
}
