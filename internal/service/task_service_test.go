package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/identity"
	"github.com/voltmotors/be-warranty-claims/internal/repository"
	"github.com/voltmotors/be-warranty-claims/internal/rolegate"
)

type workflowFixture struct {
	claims   *fakeClaimStore
	tasks    *fakeTaskStore
	parts    *fakePartStore
	notifier *fakeNotifier
	claimSvc *ClaimService
	taskSvc  *TaskService
}

func newWorkflowFixture() *workflowFixture {
	claims := newFakeClaimStore()
	parts := newFakePartStore()
	tasks := newFakeTaskStore(claims, parts)
	notifier := &fakeNotifier{}
	return &workflowFixture{
		claims:   claims,
		tasks:    tasks,
		parts:    parts,
		notifier: notifier,
		claimSvc: NewClaimService(claims, nil, nil, notifier, zerolog.Nop()),
		taskSvc:  NewTaskService(tasks, claims, notifier, zerolog.Nop()),
	}
}

// approvedClaim submits and manufacturer-approves a claim requesting the
// given lines.
func (f *workflowFixture) approvedClaim(t *testing.T, lines ...SubmitClaimLine) *repository.Claim {
	t.Helper()
	ctx := context.Background()
	req := validSubmit()
	if len(lines) > 0 {
		req.Lines = lines
	}
	claim, err := f.claimSvc.Submit(ctx, scStaff, req)
	require.NoError(t, err)
	claim, err = f.claimSvc.Approve(ctx, evmStaff, claim.ID, nil)
	require.NoError(t, err)
	return claim
}

func (f *workflowFixture) assign(t *testing.T, claimID string) *repository.TaskAssignment {
	t.Helper()
	task, err := f.taskSvc.Assign(context.Background(), scStaff, &AssignTaskRequest{
		ClaimID:        claimID,
		TechnicianID:   technician.ID,
		DueDate:        time.Now().Add(72 * time.Hour),
		EstimatedHours: 4,
	})
	require.NoError(t, err)
	return task
}

func TestAssign(t *testing.T) {
	f := newWorkflowFixture()
	claim := f.approvedClaim(t)

	task := f.assign(t, claim.ID)

	assert.Equal(t, repository.TaskStatusAssigned, task.Status)
	assert.Equal(t, technician.ID, task.AssignedTo)
	assert.Equal(t, scStaff.ID, task.AssignedBy)
	assert.Contains(t, task.WorkDescription, claim.IssueDescription)

	// Assigning moved the claim to PROCESSING.
	reloaded, err := f.claimSvc.Get(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ClaimStatusProcessing, reloaded.Status)
}

func TestAssignRoleGate(t *testing.T) {
	f := newWorkflowFixture()
	claim := f.approvedClaim(t)

	for _, actor := range []identity.Actor{evmStaff, technician, admin} {
		_, err := f.taskSvc.Assign(context.Background(), actor, &AssignTaskRequest{
			ClaimID:        claim.ID,
			TechnicianID:   technician.ID,
			DueDate:        time.Now().Add(time.Hour),
			EstimatedHours: 1,
		})
		assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized), "role=%s", actor.Role)
	}
}

func TestAssignRequiresApprovedActionableClaim(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	// PENDING claim cannot be assigned.
	pending, err := f.claimSvc.Submit(ctx, scStaff, validSubmit())
	require.NoError(t, err)
	_, err = f.taskSvc.Assign(ctx, scStaff, &AssignTaskRequest{
		ClaimID: pending.ID, TechnicianID: technician.ID,
		DueDate: time.Now().Add(time.Hour), EstimatedHours: 1,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))

	// Self-service claims never spawn a manufacturer-tracked task.
	selfService, err := f.claimSvc.Submit(ctx, scStaff, validSubmit())
	require.NoError(t, err)
	_, err = f.claimSvc.MarkSelfService(ctx, scStaff, selfService.ID, "customer repairs locally")
	require.NoError(t, err)
	_, err = f.taskSvc.Assign(ctx, scStaff, &AssignTaskRequest{
		ClaimID: selfService.ID, TechnicianID: technician.ID,
		DueDate: time.Now().Add(time.Hour), EstimatedHours: 1,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
}

func TestAssignSingleOpenAssignment(t *testing.T) {
	f := newWorkflowFixture()
	claim := f.approvedClaim(t)
	f.assign(t, claim.ID)

	_, err := f.taskSvc.Assign(context.Background(), scStaff, &AssignTaskRequest{
		ClaimID:        claim.ID,
		TechnicianID:   "tech-2",
		DueDate:        time.Now().Add(time.Hour),
		EstimatedHours: 2,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
}

func TestAssignValidation(t *testing.T) {
	f := newWorkflowFixture()
	claim := f.approvedClaim(t)
	ctx := context.Background()

	_, err := f.taskSvc.Assign(ctx, scStaff, &AssignTaskRequest{
		ClaimID: claim.ID, TechnicianID: "",
		DueDate: time.Now().Add(time.Hour), EstimatedHours: 1,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindMissingField))

	_, err = f.taskSvc.Assign(ctx, scStaff, &AssignTaskRequest{
		ClaimID: claim.ID, TechnicianID: technician.ID, EstimatedHours: 1,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindMissingField))

	_, err = f.taskSvc.Assign(ctx, scStaff, &AssignTaskRequest{
		ClaimID: claim.ID, TechnicianID: technician.ID,
		DueDate: time.Now().Add(time.Hour), EstimatedHours: 0,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindMissingField))
}

func TestStart(t *testing.T) {
	f := newWorkflowFixture()
	claim := f.approvedClaim(t)
	task := f.assign(t, claim.ID)

	started, err := f.taskSvc.Start(context.Background(), technician, task.ID, nil)

	require.NoError(t, err)
	assert.Equal(t, repository.TaskStatusInProgress, started.Status)
	assert.NotNil(t, started.StartedAt)
}

func TestStartOnlyOwnAssignment(t *testing.T) {
	f := newWorkflowFixture()
	claim := f.approvedClaim(t)
	task := f.assign(t, claim.ID)

	other := identity.Actor{ID: "tech-2", Role: rolegate.RoleTechnician}
	_, err := f.taskSvc.Start(context.Background(), other, task.ID, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestStartTwice(t *testing.T) {
	f := newWorkflowFixture()
	claim := f.approvedClaim(t)
	task := f.assign(t, claim.ID)
	ctx := context.Background()

	_, err := f.taskSvc.Start(ctx, technician, task.ID, nil)
	require.NoError(t, err)
	_, err = f.taskSvc.Start(ctx, technician, task.ID, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
}

func TestCompleteHappyPath(t *testing.T) {
	f := newWorkflowFixture()
	base := time.Now().Add(-48 * time.Hour)
	f.parts.addStock("SN-001", "PM-BATT-75", base)
	f.parts.addStock("SN-002", "PM-BATT-75", base.Add(time.Hour))
	f.parts.addStock("SN-003", "PM-COOL-01", base)

	claim := f.approvedClaim(t,
		SubmitClaimLine{PartModelID: "PM-BATT-75", Quantity: 1},
		SubmitClaimLine{PartModelID: "PM-COOL-01", Quantity: 1},
	)
	task := f.assign(t, claim.ID)
	ctx := context.Background()

	_, err := f.taskSvc.Start(ctx, technician, task.ID, nil)
	require.NoError(t, err)

	completed, err := f.taskSvc.Complete(ctx, technician, task.ID, 3, nil)

	require.NoError(t, err)
	assert.Equal(t, repository.TaskStatusCompleted, completed.Status)
	require.NotNil(t, completed.ActualHours)
	assert.Equal(t, 3.0, *completed.ActualHours)
	assert.NotNil(t, completed.CompletedAt)

	// Claim reached COMPLETED.
	reloaded, err := f.claimSvc.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ClaimStatusCompleted, reloaded.Status)

	// Oldest-received unit was consumed, newer one stayed in stock.
	sn1, err := f.parts.GetBySerial(ctx, "SN-001")
	require.NoError(t, err)
	assert.Equal(t, repository.PartStatusInstalled, sn1.Status)
	require.NotNil(t, sn1.ClaimID)
	assert.Equal(t, claim.ID, *sn1.ClaimID)

	sn2, err := f.parts.GetBySerial(ctx, "SN-002")
	require.NoError(t, err)
	assert.Equal(t, repository.PartStatusInStock, sn2.Status)

	sn3, err := f.parts.GetBySerial(ctx, "SN-003")
	require.NoError(t, err)
	assert.Equal(t, repository.PartStatusInstalled, sn3.Status)

	assert.Contains(t, f.notifier.recorded(), EventClaimCompleted+":"+claim.ID)
}

func TestCompleteInsufficientStockIsAtomic(t *testing.T) {
	f := newWorkflowFixture()
	base := time.Now().Add(-24 * time.Hour)
	f.parts.addStock("SN-010", "PM-BATT-75", base)

	claim := f.approvedClaim(t,
		SubmitClaimLine{PartModelID: "PM-BATT-75", Quantity: 2},
	)
	task := f.assign(t, claim.ID)
	ctx := context.Background()

	_, err := f.taskSvc.Start(ctx, technician, task.ID, nil)
	require.NoError(t, err)

	_, err = f.taskSvc.Complete(ctx, technician, task.ID, 5, nil)

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInsufficientStock))
	assert.Contains(t, err.Error(), "PM-BATT-75")

	// The assignment is still IN_PROGRESS and the one unit still IN_STOCK.
	reloaded, err := f.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.TaskStatusInProgress, reloaded.Status)

	unit, err := f.parts.GetBySerial(ctx, "SN-010")
	require.NoError(t, err)
	assert.Equal(t, repository.PartStatusInStock, unit.Status)

	claimReloaded, err := f.claimSvc.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ClaimStatusProcessing, claimReloaded.Status)
}

func TestCompleteOnlyOwnAssignment(t *testing.T) {
	f := newWorkflowFixture()
	f.parts.addStock("SN-020", "PM-BATT-75", time.Now())
	claim := f.approvedClaim(t)
	task := f.assign(t, claim.ID)
	ctx := context.Background()

	_, err := f.taskSvc.Start(ctx, technician, task.ID, nil)
	require.NoError(t, err)

	other := identity.Actor{ID: "tech-2", Role: rolegate.RoleTechnician}
	_, err = f.taskSvc.Complete(ctx, other, task.ID, 2, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestCompleteRequiresPositiveHours(t *testing.T) {
	f := newWorkflowFixture()
	f.parts.addStock("SN-030", "PM-BATT-75", time.Now())
	claim := f.approvedClaim(t)
	task := f.assign(t, claim.ID)
	ctx := context.Background()

	_, err := f.taskSvc.Start(ctx, technician, task.ID, nil)
	require.NoError(t, err)

	for _, hours := range []float64{0, -1} {
		_, err = f.taskSvc.Complete(ctx, technician, task.ID, hours, nil)
		assert.True(t, apperr.IsKind(err, apperr.KindMissingField), "hours=%v", hours)
	}
}

func TestCompleteBeforeStart(t *testing.T) {
	f := newWorkflowFixture()
	f.parts.addStock("SN-040", "PM-BATT-75", time.Now())
	claim := f.approvedClaim(t)
	task := f.assign(t, claim.ID)

	_, err := f.taskSvc.Complete(context.Background(), technician, task.ID, 2, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
}

func TestClaimStatusNeverMovesBackward(t *testing.T) {
	f := newWorkflowFixture()
	f.parts.addStock("SN-050", "PM-BATT-75", time.Now())
	claim := f.approvedClaim(t)
	task := f.assign(t, claim.ID)
	ctx := context.Background()

	_, err := f.taskSvc.Start(ctx, technician, task.ID, nil)
	require.NoError(t, err)
	_, err = f.taskSvc.Complete(ctx, technician, task.ID, 1, nil)
	require.NoError(t, err)

	// No resolution operation can touch a COMPLETED claim.
	_, err = f.claimSvc.Approve(ctx, evmStaff, claim.ID, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
	_, err = f.claimSvc.Reject(ctx, evmStaff, claim.ID, "late rejection")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
	_, err = f.claimSvc.MarkSelfService(ctx, scStaff, claim.ID, "late switch")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))

	reloaded, err := f.claimSvc.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ClaimStatusCompleted, reloaded.Status)
}

func TestListForTechnician(t *testing.T) {
	f := newWorkflowFixture()
	claim := f.approvedClaim(t)
	task := f.assign(t, claim.ID)

	tasks, err := f.taskSvc.ListForTechnician(context.Background(), technician.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	none, err := f.taskSvc.ListForTechnician(context.Background(), "tech-9")
	require.NoError(t, err)
	assert.Empty(t, none)
}
