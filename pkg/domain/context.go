package domain

import "time"

// ReporterRole identifies who filed the sighting report.
type ReporterRole string

const (
	ReporterTeacher ReporterRole = "TEACHER"
	ReporterCitizen ReporterRole = "CITIZEN"
)

// ResolutionType records the outcome of a field visit.
type ResolutionType string

const (
	ResolutionCaptured       ResolutionType = "CAPTURED"
	ResolutionUnableToLocate ResolutionType = "UNABLE_TO_LOCATE"
)

// PayoutStatus tracks the settlement of the capture reward.
type PayoutStatus string

const (
	PayoutNone      PayoutStatus = "NONE"
	PayoutPending   PayoutStatus = "PENDING"
	PayoutProcessed PayoutStatus = "PROCESSED"
	PayoutCapped    PayoutStatus = "CAPPED"
	PayoutFailed    PayoutStatus = "FAILED"
	PayoutCompleted PayoutStatus = "COMPLETED"
)

// Payout holds the reward settlement fields of a case.
type Payout struct {
	Eligible      bool         `json:"eligible"`
	Amount        int64        `json:"amount"` // INR
	Status        PayoutStatus `json:"status"`
	DemandOrUTRID string       `json:"demand_or_utr_id,omitempty"`
	RetryCount    int          `json:"retry_count"`
}

// Comment is a clarifying remark added while a case awaits verification.
type Comment struct {
	AuthorID string    `json:"author_id"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

// Feedback is the reporter's rating recorded when a resolved case is closed.
type Feedback struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// CaseContext is the per-case data the workflow reads and writes.
// It is a value: transforms receive a copy and return a new copy,
// so a rejected event can never leave a half-applied context behind.
type CaseContext struct {
	// Identity
	CaseID     string `json:"case_id"`
	TrackingID string `json:"tracking_id"`
	TenantID   string `json:"tenant_id"`

	// Reporter
	ReporterID   string       `json:"reporter_id"`
	ReporterRole ReporterRole `json:"reporter_role"`

	// Validation
	ValidationErrors     []string `json:"validation_errors,omitempty"`
	GPSValidated         bool     `json:"gps_validated"`
	ImageValidated       bool     `json:"image_validated"`
	DuplicateCheckPassed bool     `json:"duplicate_check_passed"`

	// Assignment. AssignedOfficerID is non-empty iff an officer
	// currently holds the case. SupervisorID records who made the
	// assignment and survives reassignments.
	AssignedOfficerID   string `json:"assigned_officer_id,omitempty"`
	AssignedOfficerName string `json:"assigned_officer_name,omitempty"`
	SupervisorID        string `json:"supervisor_id,omitempty"`

	// Verification
	VerifiedBy          string     `json:"verified_by,omitempty"`
	VerifiedAt          *time.Time `json:"verified_at,omitempty"`
	VerificationRemarks string     `json:"verification_remarks,omitempty"`
	Comments            []Comment  `json:"comments,omitempty"`

	// Resolution
	ResolvedBy        string         `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty"`
	ResolutionType    ResolutionType `json:"resolution_type,omitempty"`
	ResolutionRemarks string         `json:"resolution_remarks,omitempty"`

	// Rejection
	RejectionReason  string `json:"rejection_reason,omitempty"`
	RejectionRemarks string `json:"rejection_remarks,omitempty"`

	// Payout
	Payout Payout `json:"payout"`

	// Escalation counts SLA breaches recorded against the case.
	EscalationLevel int `json:"escalation_level"`

	// Feedback is set by the closing RATE event.
	Feedback *Feedback `json:"feedback,omitempty"`
}

// NewCaseContext builds a fresh, independent context for one case.
// Every case gets its own value; there is no shared default.
func NewCaseContext(caseID, trackingID, tenantID string, amount int64) CaseContext {
	return CaseContext{
		CaseID:     caseID,
		TrackingID: trackingID,
		TenantID:   tenantID,
		Payout: Payout{
			Amount: amount,
			Status: PayoutNone,
		},
	}
}

// Clone returns a deep copy. Slices and pointers are duplicated so the
// copy can be mutated without aliasing the original.
func (c CaseContext) Clone() CaseContext {
	out := c
	if c.ValidationErrors != nil {
		out.ValidationErrors = append([]string(nil), c.ValidationErrors...)
	}
	if c.Comments != nil {
		out.Comments = append([]Comment(nil), c.Comments...)
	}
	if c.VerifiedAt != nil {
		t := *c.VerifiedAt
		out.VerifiedAt = &t
	}
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		out.ResolvedAt = &t
	}
	if c.Feedback != nil {
		f := *c.Feedback
		out.Feedback = &f
	}
	return out
}
