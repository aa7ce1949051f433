package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/client"
	"github.com/voltmotors/be-warranty-claims/internal/repository"
)

// In-memory store fakes mirroring the repository semantics: per-entity
// serialization under a mutex, conditional single-winner transitions, and
// all-or-nothing part consumption.

type fakeClaimStore struct {
	mu     sync.Mutex
	claims map[string]*repository.Claim
}

func newFakeClaimStore() *fakeClaimStore {
	return &fakeClaimStore{claims: make(map[string]*repository.Claim)}
}

func copyClaim(c *repository.Claim) *repository.Claim {
	cp := *c
	cp.Lines = append([]*repository.ClaimLineItem(nil), c.Lines...)
	return &cp
}

func (s *fakeClaimStore) Create(_ context.Context, claim *repository.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	claim.CreatedAt = now
	claim.UpdatedAt = now
	s.claims[claim.ID] = copyClaim(claim)
	return nil
}

func (s *fakeClaimStore) GetByID(_ context.Context, id string) (*repository.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[id]
	if !ok {
		return nil, apperr.NotFound("claim", id)
	}
	return copyClaim(claim), nil
}

func (s *fakeClaimStore) List(_ context.Context, filter repository.ClaimFilter) ([]*repository.Claim, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*repository.Claim, 0)
	for _, c := range s.claims {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.CustomerID != nil && c.CustomerID != *filter.CustomerID {
			continue
		}
		out = append(out, copyClaim(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, int64(len(out)), nil
}

func (s *fakeClaimStore) Approve(_ context.Context, id string, approvedBy *string, notes *string, ptype repository.ProcessingType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(id, repository.ClaimStatusApproved, approvedBy, notes, nil, &ptype)
}

func (s *fakeClaimStore) Reject(_ context.Context, id, rejectedBy, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(id, repository.ClaimStatusRejected, &rejectedBy, nil, &reason, nil)
}

func (s *fakeClaimStore) MarkSelfService(_ context.Context, id, markedBy, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ptype := repository.ProcessingSelfService
	return s.resolveLocked(id, repository.ClaimStatusApproved, &markedBy, &reason, nil, &ptype)
}

func (s *fakeClaimStore) resolveLocked(id string, status repository.ClaimStatus, by, notes, reason *string, ptype *repository.ProcessingType) error {
	claim, ok := s.claims[id]
	if !ok {
		return apperr.NotFound("claim", id)
	}
	if claim.Status != repository.ClaimStatusPending || claim.ProcessingType != nil {
		return apperr.InvalidTransition("claim", id, "already resolved")
	}
	now := time.Now().UTC()
	claim.Status = status
	claim.ProcessingType = ptype
	claim.ResolvedBy = by
	claim.ResolvedAt = &now
	claim.ApprovalNotes = notes
	claim.RejectionReason = reason
	claim.UpdatedAt = now
	return nil
}

func (s *fakeClaimStore) markProcessingLocked(id string) error {
	claim, ok := s.claims[id]
	if !ok {
		return apperr.NotFound("claim", id)
	}
	if claim.Status != repository.ClaimStatusApproved ||
		claim.ProcessingType == nil || !claim.ProcessingType.TechnicianActionable() {
		return apperr.InvalidTransition("claim", id, "not in an assignable state")
	}
	claim.Status = repository.ClaimStatusProcessing
	return nil
}

func (s *fakeClaimStore) markCompletedLocked(id string) error {
	claim, ok := s.claims[id]
	if !ok {
		return apperr.NotFound("claim", id)
	}
	if claim.Status != repository.ClaimStatusProcessing {
		return apperr.InvalidTransition("claim", id, "not in PROCESSING")
	}
	claim.Status = repository.ClaimStatusCompleted
	return nil
}

type fakePartStore struct {
	mu    sync.Mutex
	units map[string]*repository.PartUnit
}

func newFakePartStore() *fakePartStore {
	return &fakePartStore{units: make(map[string]*repository.PartUnit)}
}

func (s *fakePartStore) addStock(serial, modelID string, receivedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[serial] = &repository.PartUnit{
		SerialNumber: serial,
		PartModelID:  modelID,
		Status:       repository.PartStatusInStock,
		WarehouseID:  "WH-1",
		ReceivedAt:   receivedAt,
	}
}

func (s *fakePartStore) MarkDefective(_ context.Context, serial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, ok := s.units[serial]
	if !ok {
		return apperr.NotFound("part_unit", serial)
	}
	if unit.Status != repository.PartStatusInStock {
		return apperr.InvalidTransition("part_unit", serial, "not in stock")
	}
	unit.Status = repository.PartStatusDefective
	return nil
}

func (s *fakePartStore) GetBySerial(_ context.Context, serial string) (*repository.PartUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, ok := s.units[serial]
	if !ok {
		return nil, apperr.NotFound("part_unit", serial)
	}
	cp := *unit
	return &cp, nil
}

func (s *fakePartStore) CountInStock(_ context.Context, modelID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countInStockLocked(modelID), nil
}

func (s *fakePartStore) countInStockLocked(modelID string) int {
	n := 0
	for _, u := range s.units {
		if u.PartModelID == modelID && u.Status == repository.PartStatusInStock {
			n++
		}
	}
	return n
}

// consumeLocked installs qty oldest-received IN_STOCK units, all-or-nothing.
// Callers hold s.mu.
func (s *fakePartStore) consumeLocked(modelID string, qty int, claimID, vin string) ([]string, error) {
	candidates := make([]*repository.PartUnit, 0)
	for _, u := range s.units {
		if u.PartModelID == modelID && u.Status == repository.PartStatusInStock {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) < qty {
		return nil, apperr.InsufficientStock(modelID, qty, len(candidates))
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ReceivedAt.Equal(candidates[j].ReceivedAt) {
			return candidates[i].SerialNumber < candidates[j].SerialNumber
		}
		return candidates[i].ReceivedAt.Before(candidates[j].ReceivedAt)
	})

	now := time.Now().UTC()
	serials := make([]string, 0, qty)
	for _, u := range candidates[:qty] {
		u.Status = repository.PartStatusInstalled
		u.ClaimID = &claimID
		u.InstalledAt = &now
		u.InstalledVIN = &vin
		serials = append(serials, u.SerialNumber)
	}
	return serials, nil
}

type fakeTaskStore struct {
	mu     sync.Mutex
	tasks  map[string]*repository.TaskAssignment
	claims *fakeClaimStore
	parts  *fakePartStore
}

func newFakeTaskStore(claims *fakeClaimStore, parts *fakePartStore) *fakeTaskStore {
	return &fakeTaskStore{
		tasks:  make(map[string]*repository.TaskAssignment),
		claims: claims,
		parts:  parts,
	}
}

func copyTask(t *repository.TaskAssignment) *repository.TaskAssignment {
	cp := *t
	return &cp
}

func (s *fakeTaskStore) Create(_ context.Context, task *repository.TaskAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ClaimID == task.ClaimID && t.Status.Open() {
			return apperr.InvalidTransition("claim", task.ClaimID,
				"an open task assignment already exists")
		}
	}

	s.claims.mu.Lock()
	defer s.claims.mu.Unlock()
	if err := s.claims.markProcessingLocked(task.ClaimID); err != nil {
		return err
	}

	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = copyTask(task)
	return nil
}

func (s *fakeTaskStore) GetByID(_ context.Context, id string) (*repository.TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, apperr.NotFound("task_assignment", id)
	}
	return copyTask(task), nil
}

func (s *fakeTaskStore) GetOpenByClaimID(_ context.Context, claimID string) (*repository.TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ClaimID == claimID && t.Status.Open() {
			return copyTask(t), nil
		}
	}
	return nil, nil
}

func (s *fakeTaskStore) ListByTechnician(_ context.Context, technicianID string) ([]*repository.TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*repository.TaskAssignment, 0)
	for _, t := range s.tasks {
		if t.AssignedTo == technicianID {
			out = append(out, copyTask(t))
		}
	}
	return out, nil
}

func (s *fakeTaskStore) Start(_ context.Context, id string, notes *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return apperr.NotFound("task_assignment", id)
	}
	if task.Status != repository.TaskStatusAssigned {
		return apperr.InvalidTransition("task_assignment", id, "not ASSIGNED")
	}
	now := time.Now().UTC()
	task.Status = repository.TaskStatusInProgress
	task.StartedAt = &now
	if notes != nil {
		task.Notes = notes
	}
	task.UpdatedAt = now
	return nil
}

func (s *fakeTaskStore) Complete(_ context.Context, id string, claim *repository.Claim, actualHours float64, notes *string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, apperr.NotFound("task_assignment", id)
	}
	if task.Status != repository.TaskStatusInProgress {
		return nil, apperr.InvalidTransition("task_assignment", id, "not IN_PROGRESS")
	}

	s.parts.mu.Lock()
	defer s.parts.mu.Unlock()
	// All-or-nothing: verify every line has stock before touching anything.
	for _, line := range claim.Lines {
		if available := s.parts.countInStockLocked(line.PartModelID); available < line.Quantity {
			return nil, apperr.InsufficientStock(line.PartModelID, line.Quantity, available)
		}
	}

	consumed := make([]string, 0)
	for _, line := range claim.Lines {
		serials, err := s.parts.consumeLocked(line.PartModelID, line.Quantity, claim.ID, claim.VehicleVIN)
		if err != nil {
			return nil, err
		}
		consumed = append(consumed, serials...)
	}

	s.claims.mu.Lock()
	defer s.claims.mu.Unlock()
	if err := s.claims.markCompletedLocked(claim.ID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task.Status = repository.TaskStatusCompleted
	task.ActualHours = &actualHours
	task.CompletedAt = &now
	if notes != nil {
		task.Notes = notes
	}
	task.UpdatedAt = now
	return consumed, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) PublishClaimEvent(eventType, claimID, _, _ string, _ map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType+":"+claimID)
}

func (n *fakeNotifier) recorded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type fakeServiceRecords struct {
	mu       sync.Mutex
	requests []*client.SelfServiceRecordRequest
	fail     bool
}

func (f *fakeServiceRecords) CreateSelfServiceRecord(_ context.Context, req *client.SelfServiceRecordRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return context.DeadlineExceeded
	}
	f.requests = append(f.requests, req)
	return nil
}
