package repository

import "time"

// ── Domain types for the claim workflow ──────────────────────────────────────

// ClaimStatus is the lifecycle state of a warranty claim. Transitions only
// ever move forward through the table in canTransition; there is exactly one
// authoritative definition here, never ad-hoc string comparison.
type ClaimStatus string

const (
	ClaimStatusPending    ClaimStatus = "PENDING"
	ClaimStatusApproved   ClaimStatus = "APPROVED"
	ClaimStatusRejected   ClaimStatus = "REJECTED"
	ClaimStatusProcessing ClaimStatus = "PROCESSING"
	ClaimStatusCompleted  ClaimStatus = "COMPLETED"
)

var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimStatusPending:    {ClaimStatusApproved, ClaimStatusRejected},
	ClaimStatusApproved:   {ClaimStatusProcessing},
	ClaimStatusProcessing: {ClaimStatusCompleted},
}

// CanTransitionTo reports whether the forward-only transition table permits
// moving from s to next.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	for _, allowed := range claimTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is defined for s. A
// SELF_SERVICE claim is additionally terminal at APPROVED; that rule lives in
// Claim.Resolved since it depends on the processing type.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimStatusRejected || s == ClaimStatusCompleted
}

// ParseClaimStatus maps a stored status string to a ClaimStatus. The legacy
// console emitted both PROCESSING and PROCESS for the same state; PROCESS is
// accepted as an alias on read.
func ParseClaimStatus(s string) (ClaimStatus, bool) {
	if s == "PROCESS" {
		return ClaimStatusProcessing, true
	}
	switch ClaimStatus(s) {
	case ClaimStatusPending, ClaimStatusApproved, ClaimStatusRejected,
		ClaimStatusProcessing, ClaimStatusCompleted:
		return ClaimStatus(s), true
	}
	return "", false
}

// ProcessingType is the resolution path a claim follows. Assigned at most
// once, on the first resolution action, and never changed afterwards.
type ProcessingType string

const (
	ProcessingManufacturerApproval ProcessingType = "MANUFACTURER_APPROVAL"
	ProcessingSelfService          ProcessingType = "SELF_SERVICE"
	ProcessingAutoApproved         ProcessingType = "AUTO_APPROVED"
)

// TechnicianActionable reports whether the processing type routes the claim
// through the technician task-assignment path.
func (p ProcessingType) TechnicianActionable() bool {
	return p == ProcessingManufacturerApproval || p == ProcessingAutoApproved
}

// TaskStatus is the linear lifecycle of a task assignment: no skipping, no
// backward moves.
type TaskStatus string

const (
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
)

// CanTransitionTo reports whether the linear task table permits s -> next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusAssigned:
		return next == TaskStatusInProgress
	case TaskStatusInProgress:
		return next == TaskStatusCompleted
	}
	return false
}

// Open reports whether the assignment still blocks a new assignment on the
// same claim (at most one open assignment per claim).
func (s TaskStatus) Open() bool {
	return s == TaskStatusAssigned || s == TaskStatusInProgress
}

// PartStatus is the state of a single serial-numbered part unit.
type PartStatus string

const (
	PartStatusInStock   PartStatus = "IN_STOCK"
	PartStatusDefective PartStatus = "DEFECTIVE"
	PartStatusInstalled PartStatus = "INSTALLED"
)

// Claim is a customer's warranty repair/replacement request. Claims are never
// physically deleted; terminal rows are retained for audit.
type Claim struct {
	ID               string
	CustomerID       string
	VehicleVIN       string
	IssueDescription string
	DiagnosisReport  string
	Status           ClaimStatus
	ProcessingType   *ProcessingType
	RequestedAt      time.Time
	ResolvedBy       *string
	ResolvedAt       *time.Time
	ApprovalNotes    *string
	RejectionReason  *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Lines            []*ClaimLineItem
}

// Resolved reports whether the claim has had its one terminal resolution
// action (approve, reject or self-service).
func (c *Claim) Resolved() bool {
	return c.Status != ClaimStatusPending
}

// ClaimLineItem is one requested part model + quantity, owned by exactly one
// claim and immutable once the claim leaves PENDING.
type ClaimLineItem struct {
	ID          string
	ClaimID     string
	PartModelID string
	Quantity    int
	CreatedAt   time.Time
}

// TaskAssignment is the unit of technician-facing work spawned from an
// approved, technician-actionable claim.
type TaskAssignment struct {
	ID              string
	ClaimID         string
	AssignedBy      string
	AssignedTo      string
	WorkDescription string
	Status          TaskStatus
	DueDate         time.Time
	EstimatedHours  float64
	ActualHours     *float64
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PartUnit is one physical, serial-numbered instance of a part model. A unit
// never returns to IN_STOCK once INSTALLED or DEFECTIVE, and is consumed by
// at most one claim.
type PartUnit struct {
	SerialNumber string
	PartModelID  string
	Status       PartStatus
	WarehouseID  string
	ClaimID      *string
	InstalledAt  *time.Time
	InstalledVIN *string
	ReceivedAt   time.Time
	UpdatedAt    time.Time
}

// ClaimFilter narrows and pages claim listings.
type ClaimFilter struct {
	CustomerID *string
	VehicleVIN *string
	Status     *ClaimStatus
	Limit      int
	Offset     int
}
