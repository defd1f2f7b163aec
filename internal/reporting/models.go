package reporting

// Bucket is one labelled count in a metrics series.
type Bucket struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// LeadMetrics is the admin dashboard summary.
//
// StatusData lists every pipeline status in pipeline order, zero included.
// EmployeeData lists users holding at least one lead, ordered by name, followed
// by a final "Unassigned" bucket.
type LeadMetrics struct {
	TotalLeads   int      `json:"totalLeads"`
	StatusData   []Bucket `json:"statusData"`
	EmployeeData []Bucket `json:"employeeData"`
}

// EmployeeCount is the number of leads assigned to one user.
type EmployeeCount struct {
	UserID string
	Name   string
	Count  int
}

// LeadCounts is a consistent snapshot of grouped lead counts.
type LeadCounts struct {
	ByStatus   map[string]int
	ByEmployee []EmployeeCount
	Unassigned int
}

const UnassignedBucket = "Unassigned"
