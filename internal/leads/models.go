package leads

import (
	"fmt"
	"time"

	"crm-backend/internal/rbac"
)

type PipelineStatus string

const (
	StatusUnassigned    PipelineStatus = "Unassigned"
	StatusEmailSent     PipelineStatus = "Email_Sent"
	StatusClientReplied PipelineStatus = "Client_Replied"
	StatusPlanSent      PipelineStatus = "Plan_Sent"
	StatusRateFinalized PipelineStatus = "Rate_Finalized"
	StatusDocsSigned    PipelineStatus = "Docs_Signed"
	StatusTesting       PipelineStatus = "Testing"
	StatusApproved      PipelineStatus = "Approved"
	StatusRejected      PipelineStatus = "Rejected"
)

var allStatuses = []PipelineStatus{
	StatusUnassigned,
	StatusEmailSent,
	StatusClientReplied,
	StatusPlanSent,
	StatusRateFinalized,
	StatusDocsSigned,
	StatusTesting,
	StatusApproved,
	StatusRejected,
}

// AllStatuses returns every pipeline status in pipeline order.
func AllStatuses() []PipelineStatus {
	out := make([]PipelineStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s PipelineStatus) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ParseStatus matches s exactly against the enumeration. There is no fallback.
func ParseStatus(s string) (PipelineStatus, error) {
	st := PipelineStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: invalid pipeline status %q", ErrValidation, s)
	}
	return st, nil
}

// Lead is a prospective client tracked through the sales pipeline.
//
// Invariants:
// - FRN is unique across all leads and never empty.
// - History is append-only.
// - CreatedAt never changes after insert.
type Lead struct {
	ID          string `json:"id"`
	FRN         string `json:"frn"`
	CompanyName string `json:"company_name"`

	ContactEmail *string `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`
	ServiceType  *string `json:"service_type"`
	Website      *string `json:"website"`
	Notes        *string `json:"notes"`

	PipelineStatus     PipelineStatus `json:"pipelineStatus"`
	AssignedEmployeeID *string        `json:"assignedEmployeeId"`

	History []string `json:"history"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (l Lead) IsAssigned() bool { return l.AssignedEmployeeID != nil }

func (l Lead) AssignedTo(userID string) bool {
	return l.AssignedEmployeeID != nil && *l.AssignedEmployeeID == userID
}

// Clone returns a deep copy so callers cannot alias stored pointers or history.
func (l Lead) Clone() Lead {
	out := l
	out.ContactEmail = cloneStr(l.ContactEmail)
	out.ContactPhone = cloneStr(l.ContactPhone)
	out.ServiceType = cloneStr(l.ServiceType)
	out.Website = cloneStr(l.Website)
	out.Notes = cloneStr(l.Notes)
	out.AssignedEmployeeID = cloneStr(l.AssignedEmployeeID)
	if l.History != nil {
		out.History = append([]string(nil), l.History...)
	}
	return out
}

// Principal is the authenticated actor performing an operation.
type Principal struct {
	ID   string
	Name string
	Role string
}

func (p Principal) IsAdmin() bool { return rbac.IsAdmin(p.Role) }

// TimestampLayout is used for history entries and exports.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

const (
	maxShortField = 255
	maxNotesField = 10000
)

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func strPtr(s string) *string { return &s }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
