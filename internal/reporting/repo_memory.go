package reporting

import (
	"context"
	"sort"
	"sync"

	"crm-backend/internal/leads"
)

// MemoryRepo computes counts from in-memory leads and user names.
// Useful for tests and early development.
type MemoryRepo struct {
	mu sync.Mutex

	Leads []leads.Lead
	// UserNames maps user id to display name. Leads assigned to an id missing
	// here are skipped, as the SQL join would skip them.
	UserNames map[string]string
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{UserNames: map[string]string{}} }

func (r *MemoryRepo) LeadCounts(ctx context.Context) (LeadCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := LeadCounts{ByStatus: map[string]int{}}
	perUser := map[string]int{}
	for _, l := range r.Leads {
		out.ByStatus[string(l.PipelineStatus)]++
		if l.AssignedEmployeeID == nil {
			out.Unassigned++
			continue
		}
		if _, ok := r.UserNames[*l.AssignedEmployeeID]; ok {
			perUser[*l.AssignedEmployeeID]++
		}
	}
	for id, n := range perUser {
		out.ByEmployee = append(out.ByEmployee, EmployeeCount{UserID: id, Name: r.UserNames[id], Count: n})
	}
	sort.Slice(out.ByEmployee, func(i, j int) bool {
		a, b := out.ByEmployee[i], out.ByEmployee[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.UserID < b.UserID
	})
	return out, nil
}
