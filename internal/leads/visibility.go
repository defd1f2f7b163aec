package leads

import "strings"

// Visibility is the row predicate a principal may list or read.
// Repositories AND it with every ListFilter.
type Visibility struct {
	All        bool
	EmployeeID string
}

func Listable(p Principal) Visibility {
	if p.IsAdmin() {
		return Visibility{All: true}
	}
	return Visibility{EmployeeID: p.ID}
}

func (v Visibility) Allows(l Lead) bool {
	return v.All || l.AssignedEmployeeID == nil || *l.AssignedEmployeeID == v.EmployeeID
}

func Readable(l Lead, p Principal) bool { return Listable(p).Allows(l) }

// Writable holds for admins and for the employee the lead is assigned to.
// Claiming is the only way an employee gains write access to an unassigned lead.
func Writable(l Lead, p Principal) bool {
	return p.IsAdmin() || l.AssignedTo(p.ID)
}

// AssignedToUnassigned is the ListFilter.AssignedTo value selecting unassigned leads.
const AssignedToUnassigned = "unassigned"

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

type ListFilter struct {
	Status     PipelineStatus
	Search     string
	AssignedTo string
	Offset     int
	Limit      int
}

func (f ListFilter) normalize() (ListFilter, error) {
	f.Search = strings.TrimSpace(f.Search)
	f.AssignedTo = strings.TrimSpace(f.AssignedTo)
	if f.Status != "" && !f.Status.Valid() {
		return f, validationErr("invalid pipeline status %q", f.Status)
	}
	if f.Offset < 0 {
		return f, validationErr("skip must not be negative")
	}
	if f.Limit < 0 {
		return f, validationErr("limit must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f, nil
}

// Matches evaluates the filter in memory with the same semantics as the SQL repository.
func (f ListFilter) Matches(l Lead) bool {
	if f.Status != "" && l.PipelineStatus != f.Status {
		return false
	}
	switch {
	case f.AssignedTo == "":
	case f.AssignedTo == AssignedToUnassigned:
		if l.AssignedEmployeeID != nil {
			return false
		}
	default:
		if !l.AssignedTo(f.AssignedTo) {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(l.CompanyName), q) &&
			!strings.Contains(strings.ToLower(l.FRN), q) &&
			!strings.Contains(strings.ToLower(deref(l.ContactEmail)), q) {
			return false
		}
	}
	return true
}
