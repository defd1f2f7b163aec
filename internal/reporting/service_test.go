package reporting

import (
	"context"
	"errors"
	"testing"

	"crm-backend/internal/leads"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestLeadMetrics_EmptyStoreReportsEveryStatus(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	m, err := svc.LeadMetrics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, m.TotalLeads)
	require.Len(t, m.StatusData, len(leads.AllStatuses()))
	for i, st := range leads.AllStatuses() {
		assert.Equal(t, string(st), m.StatusData[i].Name)
		assert.Equal(t, 0, m.StatusData[i].Value)
	}
	assert.Equal(t, []Bucket{{Name: UnassignedBucket, Value: 0}}, m.EmployeeData)
}

func TestLeadMetrics_GroupsByStatusAndEmployee(t *testing.T) {
	repo := NewMemoryRepo()
	repo.UserNames = map[string]string{"u1": "Zed", "u2": "Amy", "u3": "Nobody"}
	repo.Leads = []leads.Lead{
		{PipelineStatus: leads.StatusUnassigned},
		{PipelineStatus: leads.StatusApproved, AssignedEmployeeID: strp("u1")},
		{PipelineStatus: leads.StatusApproved, AssignedEmployeeID: strp("u2")},
		{PipelineStatus: leads.StatusTesting, AssignedEmployeeID: strp("u2")},
	}

	m, err := NewService(repo).LeadMetrics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, m.TotalLeads)
	byName := map[string]int{}
	for _, b := range m.StatusData {
		byName[b.Name] = b.Value
	}
	assert.Equal(t, 1, byName["Unassigned"])
	assert.Equal(t, 2, byName["Approved"])
	assert.Equal(t, 1, byName["Testing"])
	assert.Equal(t, 0, byName["Rejected"])

	assert.Equal(t, []Bucket{
		{ID: "u2", Name: "Amy", Value: 2},
		{ID: "u1", Name: "Zed", Value: 1},
		{Name: UnassignedBucket, Value: 1},
	}, m.EmployeeData)
}

type failingRepo struct{}

func (failingRepo) LeadCounts(context.Context) (LeadCounts, error) {
	return LeadCounts{}, errors.New("db down")
}

func TestLeadMetrics_PropagatesErrors(t *testing.T) {
	_, err := NewService(failingRepo{}).LeadMetrics(context.Background())
	assert.Error(t, err)

	_, err = NewService(nil).LeadMetrics(context.Background())
	assert.Error(t, err)
}
