package reporting

import (
	"context"
	"errors"

	"crm-backend/internal/leads"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// LeadMetrics groups leads by status and by assignee.
// Every status appears even at zero; statuses outside the enumeration are ignored.
func (s *Service) LeadMetrics(ctx context.Context) (LeadMetrics, error) {
	if s.repo == nil {
		return LeadMetrics{}, errors.New("reporting: repository not configured")
	}
	counts, err := s.repo.LeadCounts(ctx)
	if err != nil {
		return LeadMetrics{}, err
	}

	out := LeadMetrics{
		StatusData:   make([]Bucket, 0, len(leads.AllStatuses())),
		EmployeeData: make([]Bucket, 0, len(counts.ByEmployee)+1),
	}
	for _, st := range leads.AllStatuses() {
		n := counts.ByStatus[string(st)]
		out.TotalLeads += n
		out.StatusData = append(out.StatusData, Bucket{Name: string(st), Value: n})
	}
	for _, ec := range counts.ByEmployee {
		out.EmployeeData = append(out.EmployeeData, Bucket{ID: ec.UserID, Name: ec.Name, Value: ec.Count})
	}
	out.EmployeeData = append(out.EmployeeData, Bucket{Name: UnassignedBucket, Value: counts.Unassigned})
	return out, nil
}
