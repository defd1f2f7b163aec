package leads

import (
	"context"
	"sync"
	"testing"
	"time"

	"crm-backend/internal/audit"
	"crm-backend/internal/events"
	"crm-backend/internal/rbac"

	"github.com/stretchr/testify/require"
)

var (
	admin = Principal{ID: "0b8a6c1e-0000-4000-8000-000000000001", Name: "Admin User", Role: rbac.RoleAdmin}
	alice = Principal{ID: "0b8a6c1e-0000-4000-8000-00000000000a", Name: "Alice", Role: rbac.RoleEmployee}
	bob   = Principal{ID: "0b8a6c1e-0000-4000-8000-00000000000b", Name: "Bob", Role: rbac.RoleEmployee}
)

// stepClock advances one second per call and is safe for concurrent use.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fakeUsers map[string]string

func (u fakeUsers) DisplayName(ctx context.Context, id string) (string, bool, error) {
	name, ok := u[id]
	return name, ok, nil
}

type testEnv struct {
	svc    *Service
	repo   *MemoryRepo
	audit  *audit.MemoryRepo
	events *events.MemoryPublisher
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) testEnv {
	t.Helper()
	repo := NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	pub := events.NewMemoryPublisher()

	deps := Deps{
		Audit:  audit.NewService(auditRepo),
		Events: pub,
		Users: fakeUsers{
			admin.ID: admin.Name,
			alice.ID: alice.Name,
			bob.ID:   bob.Name,
		},
	}
	for _, m := range mutate {
		m(&deps)
	}

	svc := NewService(repo, deps)
	clock := &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc.clock = clock.Now
	return testEnv{svc: svc, repo: repo, audit: auditRepo, events: pub}
}

func (e testEnv) mustCreate(t *testing.T, frn string) Lead {
	t.Helper()
	l, err := e.svc.Create(context.Background(), admin, CreateInput{FRN: frn, CompanyName: "Company " + frn})
	require.NoError(t, err)
	return l
}

func (e testEnv) mustClaim(t *testing.T, p Principal, id string) Lead {
	t.Helper()
	l, err := e.svc.Claim(context.Background(), p, id)
	require.NoError(t, err)
	return l
}

func ptr(s string) *string { return &s }
