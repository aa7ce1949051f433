package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/identity"
	"github.com/voltmotors/be-warranty-claims/internal/repository"
	"github.com/voltmotors/be-warranty-claims/internal/rolegate"
)

// TaskService owns the task assignment state machine
// (ASSIGNED -> IN_PROGRESS -> COMPLETED) and its interlock with the claim
// lifecycle and the part ledger.
type TaskService struct {
	tasks    TaskStore
	claims   ClaimStore
	notifier Notifier
	log      zerolog.Logger
}

// NewTaskService creates a new task service.
func NewTaskService(tasks TaskStore, claims ClaimStore, notifier Notifier, log zerolog.Logger) *TaskService {
	return &TaskService{tasks: tasks, claims: claims, notifier: notifier, log: log}
}

// AssignTaskRequest represents a task assignment request.
type AssignTaskRequest struct {
	ClaimID        string
	TechnicianID   string
	DueDate        time.Time
	EstimatedHours float64
}

// Assign spawns the technician task for an approved, technician-actionable
// claim and moves the claim to PROCESSING. At most one open assignment may
// exist per claim.
func (s *TaskService) Assign(ctx context.Context, actor identity.Actor, req *AssignTaskRequest) (*repository.TaskAssignment, error) {
	if !rolegate.CanPerform(actor.Role, rolegate.ActionAssignTask) {
		return nil, apperr.Unauthorized(string(actor.Role), string(rolegate.ActionAssignTask))
	}

	if strings.TrimSpace(req.TechnicianID) == "" {
		return nil, apperr.MissingField("technician_id", "assigned technician is required")
	}
	if req.DueDate.IsZero() {
		return nil, apperr.MissingField("due_date", "due date is required")
	}
	if req.EstimatedHours <= 0 {
		return nil, apperr.MissingField("estimated_hours", "estimated hours must be positive")
	}

	claim, err := s.claims.GetByID(ctx, req.ClaimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != repository.ClaimStatusApproved {
		return nil, apperr.InvalidTransition("claim", claim.ID,
			"cannot assign a task to a claim with status '"+string(claim.Status)+"'")
	}
	if claim.ProcessingType == nil || !claim.ProcessingType.TechnicianActionable() {
		return nil, apperr.InvalidTransition("claim", claim.ID,
			"claim is not on the technician-actionable path")
	}

	open, err := s.tasks.GetOpenByClaimID(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, apperr.InvalidTransition("claim", claim.ID,
			"an open task assignment already exists")
	}

	workDescription := claim.IssueDescription
	if claim.DiagnosisReport != "" {
		workDescription += "\n\nDiagnosis: " + claim.DiagnosisReport
	}

	task := &repository.TaskAssignment{
		ID:              uuid.NewString(),
		ClaimID:         claim.ID,
		AssignedBy:      actor.ID,
		AssignedTo:      req.TechnicianID,
		WorkDescription: workDescription,
		Status:          repository.TaskStatusAssigned,
		DueDate:         req.DueDate,
		EstimatedHours:  req.EstimatedHours,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("task_id", task.ID).
		Str("claim_id", claim.ID).
		Str("assigned_to", task.AssignedTo).
		Str("assigned_by", actor.ID).
		Msg("Task assigned")

	return task, nil
}

// Start moves the technician's own ASSIGNED task to IN_PROGRESS.
func (s *TaskService) Start(ctx context.Context, actor identity.Actor, taskID string, notes *string) (*repository.TaskAssignment, error) {
	if !rolegate.CanPerform(actor.Role, rolegate.ActionStartTask) {
		return nil, apperr.Unauthorized(string(actor.Role), string(rolegate.ActionStartTask))
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssignedTo != actor.ID {
		return nil, apperr.New(apperr.KindUnauthorized, "assignment belongs to another technician")
	}
	if task.Status != repository.TaskStatusAssigned {
		return nil, apperr.InvalidTransition("task_assignment", taskID,
			"cannot start task with status '"+string(task.Status)+"'")
	}

	if err := s.tasks.Start(ctx, taskID, notes); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("task_id", taskID).
		Str("technician", actor.ID).
		Msg("Task started")

	return s.tasks.GetByID(ctx, taskID)
}

// Complete finishes the technician's own IN_PROGRESS task: part units are
// consumed for every claim line item and the claim moves to COMPLETED, all in
// one atomic unit. Insufficient stock fails the whole operation and leaves the
// assignment IN_PROGRESS.
func (s *TaskService) Complete(ctx context.Context, actor identity.Actor, taskID string, actualHours float64, notes *string) (*repository.TaskAssignment, error) {
	if !rolegate.CanPerform(actor.Role, rolegate.ActionCompleteTask) {
		return nil, apperr.Unauthorized(string(actor.Role), string(rolegate.ActionCompleteTask))
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssignedTo != actor.ID {
		return nil, apperr.New(apperr.KindUnauthorized, "assignment belongs to another technician")
	}
	if task.Status != repository.TaskStatusInProgress {
		return nil, apperr.InvalidTransition("task_assignment", taskID,
			"cannot complete task with status '"+string(task.Status)+"'")
	}
	if actualHours <= 0 {
		return nil, apperr.MissingField("actual_hours", "actual hours must be positive")
	}

	claim, err := s.claims.GetByID(ctx, task.ClaimID)
	if err != nil {
		return nil, err
	}

	consumed, err := s.tasks.Complete(ctx, taskID, claim, actualHours, notes)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("task_id", taskID).
		Str("claim_id", claim.ID).
		Str("technician", actor.ID).
		Float64("actual_hours", actualHours).
		Int("parts_installed", len(consumed)).
		Msg("Task completed")

	if s.notifier != nil {
		s.notifier.PublishClaimEvent(EventClaimCompleted, claim.ID, claim.CustomerID, actor.ID,
			map[string]any{"parts_installed": len(consumed)})
	}

	return s.tasks.GetByID(ctx, taskID)
}

// Get retrieves a task assignment by id.
func (s *TaskService) Get(ctx context.Context, taskID string) (*repository.TaskAssignment, error) {
	return s.tasks.GetByID(ctx, taskID)
}

// ListForTechnician returns a technician's assignments, newest first.
func (s *TaskService) ListForTechnician(ctx context.Context, technicianID string) ([]*repository.TaskAssignment, error) {
	return s.tasks.ListByTechnician(ctx, technicianID)
}
