package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/client"
	"github.com/voltmotors/be-warranty-claims/internal/identity"
	"github.com/voltmotors/be-warranty-claims/internal/repository"
	"github.com/voltmotors/be-warranty-claims/internal/rolegate"
)

// Claim event types published on terminal transitions.
const (
	EventClaimApproved  = "claim_approved"
	EventClaimRejected  = "claim_rejected"
	EventClaimCompleted = "claim_completed"
)

// ClaimService owns the warranty claim state machine: submission, the three
// resolution paths, and the forward-only transition table.
type ClaimService struct {
	claims   ClaimStore
	policy   AutoApprovePolicy
	records  client.ServiceRecordClientInterface
	notifier Notifier
	log      zerolog.Logger
}

// NewClaimService creates a new claim service. policy, records and notifier
// may be nil; the corresponding behavior is then skipped.
func NewClaimService(
	claims ClaimStore,
	policy AutoApprovePolicy,
	records client.ServiceRecordClientInterface,
	notifier Notifier,
	log zerolog.Logger,
) *ClaimService {
	return &ClaimService{
		claims:   claims,
		policy:   policy,
		records:  records,
		notifier: notifier,
		log:      log,
	}
}

// SubmitClaimRequest represents a claim submission.
type SubmitClaimRequest struct {
	CustomerID       string
	VehicleVIN       string
	IssueDescription string
	DiagnosisReport  string
	Lines            []SubmitClaimLine
}

// SubmitClaimLine is one requested part model + quantity.
type SubmitClaimLine struct {
	PartModelID string
	Quantity    int
}

// Submit creates a claim in PENDING and runs the auto-approval policy. When
// the policy matches, the claim is immediately resolved to APPROVED with the
// AUTO_APPROVED processing type and continues down the task-assignment path.
func (s *ClaimService) Submit(ctx context.Context, actor identity.Actor, req *SubmitClaimRequest) (*repository.Claim, error) {
	if !rolegate.CanPerform(actor.Role, rolegate.ActionSubmitClaim) {
		return nil, apperr.Unauthorized(string(actor.Role), string(rolegate.ActionSubmitClaim))
	}

	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, apperr.MissingField("customer_id", "customer reference is required")
	}
	if strings.TrimSpace(req.VehicleVIN) == "" {
		return nil, apperr.MissingField("vehicle_vin", "vehicle VIN is required")
	}
	if strings.TrimSpace(req.IssueDescription) == "" {
		return nil, apperr.MissingField("issue_description", "issue description is required")
	}
	if len(req.Lines) == 0 {
		return nil, apperr.MissingField("line_items", "claim must request at least one part")
	}
	for _, line := range req.Lines {
		if strings.TrimSpace(line.PartModelID) == "" {
			return nil, apperr.MissingField("part_model_id", "part model reference is required")
		}
		if line.Quantity <= 0 {
			return nil, apperr.MissingField("quantity", "requested quantity must be positive")
		}
	}

	claim := &repository.Claim{
		ID:               uuid.NewString(),
		CustomerID:       req.CustomerID,
		VehicleVIN:       req.VehicleVIN,
		IssueDescription: req.IssueDescription,
		DiagnosisReport:  req.DiagnosisReport,
		Status:           repository.ClaimStatusPending,
		RequestedAt:      time.Now().UTC(),
		Lines:            make([]*repository.ClaimLineItem, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		claim.Lines = append(claim.Lines, &repository.ClaimLineItem{
			ID:          uuid.NewString(),
			PartModelID: line.PartModelID,
			Quantity:    line.Quantity,
		})
	}

	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("claim_id", claim.ID).
		Str("customer_id", claim.CustomerID).
		Str("vehicle_vin", claim.VehicleVIN).
		Int("line_count", len(claim.Lines)).
		Str("submitted_by", actor.ID).
		Msg("Claim submitted")

	if s.policy != nil && s.policy.Eligible(claim) {
		// System-initiated, so no actor gate and no resolver id. Failure
		// leaves the claim PENDING for manual resolution.
		if err := s.claims.Approve(ctx, claim.ID, nil, nil, repository.ProcessingAutoApproved); err != nil {
			s.log.Warn().Err(err).Str("claim_id", claim.ID).Msg("Auto-approval failed; claim stays PENDING")
			return claim, nil
		}
		s.log.Info().Str("claim_id", claim.ID).Msg("Claim auto-approved")
		s.notify(EventClaimApproved, claim, "", map[string]any{
			"processing_type": string(repository.ProcessingAutoApproved),
		})
		return s.claims.GetByID(ctx, claim.ID)
	}

	return claim, nil
}

// Approve resolves a PENDING claim to APPROVED with manufacturer tracking.
// The claim then waits for a task assignment.
func (s *ClaimService) Approve(ctx context.Context, actor identity.Actor, claimID string, notes *string) (*repository.Claim, error) {
	if !rolegate.CanPerform(actor.Role, rolegate.ActionApproveClaim) {
		return nil, apperr.Unauthorized(string(actor.Role), string(rolegate.ActionApproveClaim))
	}

	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Resolved() {
		return nil, apperr.InvalidTransition("claim", claimID,
			"cannot approve claim with status '"+string(claim.Status)+"'")
	}
	if len(claim.Lines) == 0 {
		return nil, apperr.InvalidTransition("claim", claimID,
			"claim with no line items cannot leave PENDING")
	}

	if err := s.claims.Approve(ctx, claimID, &actor.ID, notes, repository.ProcessingManufacturerApproval); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("claim_id", claimID).
		Str("approved_by", actor.ID).
		Msg("Claim approved")

	s.notify(EventClaimApproved, claim, actor.ID, map[string]any{
		"processing_type": string(repository.ProcessingManufacturerApproval),
	})

	return s.claims.GetByID(ctx, claimID)
}

// Reject resolves a PENDING claim to the terminal REJECTED state. The reason
// is mandatory.
func (s *ClaimService) Reject(ctx context.Context, actor identity.Actor, claimID, reason string) (*repository.Claim, error) {
	if !rolegate.CanPerform(actor.Role, rolegate.ActionRejectClaim) {
		return nil, apperr.Unauthorized(string(actor.Role), string(rolegate.ActionRejectClaim))
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.MissingField("reason", "rejection reason is required")
	}

	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Resolved() {
		return nil, apperr.InvalidTransition("claim", claimID,
			"cannot reject claim with status '"+string(claim.Status)+"'")
	}

	if err := s.claims.Reject(ctx, claimID, actor.ID, reason); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("claim_id", claimID).
		Str("rejected_by", actor.ID).
		Msg("Claim rejected")

	s.notify(EventClaimRejected, claim, actor.ID, map[string]any{"reason": reason})

	return s.claims.GetByID(ctx, claimID)
}

// MarkSelfService resolves a PENDING claim to APPROVED with the SELF_SERVICE
// processing type. No task assignment is ever spawned; the repair record is
// handed off to the external service records system and the claim is terminal
// from the engine's perspective.
func (s *ClaimService) MarkSelfService(ctx context.Context, actor identity.Actor, claimID, reason string) (*repository.Claim, error) {
	if !rolegate.CanPerform(actor.Role, rolegate.ActionMarkSelfService) {
		return nil, apperr.Unauthorized(string(actor.Role), string(rolegate.ActionMarkSelfService))
	}

	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Resolved() {
		return nil, apperr.InvalidTransition("claim", claimID,
			"cannot mark claim self-service with status '"+string(claim.Status)+"'")
	}
	if len(claim.Lines) == 0 {
		return nil, apperr.InvalidTransition("claim", claimID,
			"claim with no line items cannot leave PENDING")
	}

	if err := s.claims.MarkSelfService(ctx, claimID, actor.ID, reason); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("claim_id", claimID).
		Str("marked_by", actor.ID).
		Msg("Claim marked self-service")

	if s.records != nil {
		// The repair record is owned by the external system; a handoff
		// failure is logged for reconciliation and never rolls the
		// transition back.
		err := s.records.CreateSelfServiceRecord(ctx, &client.SelfServiceRecordRequest{
			ClaimID:    claim.ID,
			CustomerID: claim.CustomerID,
			VehicleVIN: claim.VehicleVIN,
			Reason:     reason,
			MarkedBy:   actor.ID,
			MarkedAt:   time.Now().UTC(),
		})
		if err != nil {
			s.log.Warn().Err(err).Str("claim_id", claimID).Msg("Self-service record handoff failed")
		}
	}

	s.notify(EventClaimApproved, claim, actor.ID, map[string]any{
		"processing_type": string(repository.ProcessingSelfService),
	})

	return s.claims.GetByID(ctx, claimID)
}

// Get retrieves a claim by id.
func (s *ClaimService) Get(ctx context.Context, claimID string) (*repository.Claim, error) {
	return s.claims.GetByID(ctx, claimID)
}

// List retrieves claims with filtering and pagination.
func (s *ClaimService) List(ctx context.Context, filter repository.ClaimFilter) ([]*repository.Claim, int64, error) {
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.claims.List(ctx, filter)
}

func (s *ClaimService) notify(eventType string, claim *repository.Claim, actorID string, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishClaimEvent(eventType, claim.ID, claim.CustomerID, actorID, payload)
}
