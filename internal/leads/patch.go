package leads

import (
	"encoding/json"
	"strings"
)

// Optional distinguishes an absent field from a zero value.
// Set is true whenever the JSON key was present, including an explicit null.
type Optional[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Optional[T] { return Optional[T]{Value: v, Set: true} }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	return json.Unmarshal(b, &o.Value)
}

// Patch is a partial lead update. Unset fields are left untouched.
// Nullable fields use a pointer value so an explicit null clears them.
type Patch struct {
	FRN         Optional[string] `json:"frn"`
	CompanyName Optional[string] `json:"company_name"`

	ContactEmail Optional[*string] `json:"contact_email"`
	ContactPhone Optional[*string] `json:"contact_phone"`
	ServiceType  Optional[*string] `json:"service_type"`
	Website      Optional[*string] `json:"website"`
	Notes        Optional[*string] `json:"notes"`

	PipelineStatus     Optional[string]  `json:"pipelineStatus"`
	AssignedEmployeeID Optional[*string] `json:"assignedEmployeeId"`

	// HistoryEntry is appended to history, never stored as a field.
	HistoryEntry Optional[string] `json:"history_entry"`
}

// checkedPatch is a Patch whose row-independent values have been validated.
type checkedPatch struct {
	Patch
	status PipelineStatus
	entry  string
}

// check validates everything that does not depend on the stored lead.
func (p Patch) check(actor Principal) (checkedPatch, error) {
	cp := checkedPatch{Patch: p}

	if p.FRN.Set {
		cp.FRN.Value = strings.TrimSpace(p.FRN.Value)
		if cp.FRN.Value == "" {
			return cp, validationErr("frn must not be empty")
		}
		if len(cp.FRN.Value) > maxShortField {
			return cp, validationErr("frn exceeds %d characters", maxShortField)
		}
	}
	if p.CompanyName.Set {
		cp.CompanyName.Value = strings.TrimSpace(p.CompanyName.Value)
		if cp.CompanyName.Value == "" {
			return cp, validationErr("company_name must not be empty")
		}
		if len(cp.CompanyName.Value) > maxShortField {
			return cp, validationErr("company_name exceeds %d characters", maxShortField)
		}
	}
	for _, f := range []struct {
		name string
		opt  Optional[*string]
		max  int
	}{
		{"contact_email", p.ContactEmail, maxShortField},
		{"contact_phone", p.ContactPhone, maxShortField},
		{"service_type", p.ServiceType, maxShortField},
		{"website", p.Website, maxShortField},
		{"notes", p.Notes, maxNotesField},
	} {
		if f.opt.Set && f.opt.Value != nil && len(*f.opt.Value) > f.max {
			return cp, validationErr("%s exceeds %d characters", f.name, f.max)
		}
	}

	if p.PipelineStatus.Set {
		st, err := ParseStatus(p.PipelineStatus.Value)
		if err != nil {
			return cp, err
		}
		cp.status = st
	}

	if p.AssignedEmployeeID.Set {
		if !actor.IsAdmin() {
			return cp, ErrForbidden
		}
		if v := p.AssignedEmployeeID.Value; v != nil && strings.TrimSpace(*v) == "" {
			cp.AssignedEmployeeID.Value = nil
		}
	}

	if p.HistoryEntry.Set {
		cp.entry = strings.TrimSpace(p.HistoryEntry.Value)
		if cp.entry == "" {
			return cp, validationErr("history_entry must not be empty")
		}
		if len(cp.entry) > maxNotesField {
			return cp, validationErr("history_entry exceeds %d characters", maxNotesField)
		}
	}

	return cp, nil
}

// apply writes the patch onto l and reports whether status or assignment changed.
func (cp checkedPatch) apply(l *Lead) (statusChanged, assignmentChanged bool) {
	if cp.FRN.Set {
		l.FRN = cp.FRN.Value
	}
	if cp.CompanyName.Set {
		l.CompanyName = cp.CompanyName.Value
	}
	setOpt(&l.ContactEmail, cp.ContactEmail)
	setOpt(&l.ContactPhone, cp.ContactPhone)
	setOpt(&l.ServiceType, cp.ServiceType)
	setOpt(&l.Website, cp.Website)
	setOpt(&l.Notes, cp.Notes)

	if cp.PipelineStatus.Set && l.PipelineStatus != cp.status {
		l.PipelineStatus = cp.status
		statusChanged = true
	}
	if cp.AssignedEmployeeID.Set && deref(l.AssignedEmployeeID) != deref(cp.AssignedEmployeeID.Value) {
		l.AssignedEmployeeID = cloneStr(cp.AssignedEmployeeID.Value)
		assignmentChanged = true
	}
	return statusChanged, assignmentChanged
}

func setOpt(dst **string, o Optional[*string]) {
	if !o.Set {
		return
	}
	if o.Value == nil || strings.TrimSpace(*o.Value) == "" {
		*dst = nil
		return
	}
	*dst = strPtr(strings.TrimSpace(*o.Value))
}
