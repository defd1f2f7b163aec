package users

import (
	"context"
	"testing"

	"crm-backend/internal/audit"
	"crm-backend/internal/auth"
	"crm-backend/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *audit.MemoryRepo) {
	auditRepo := audit.NewMemoryRepo()
	return NewService(NewMemoryRepo(), audit.NewService(auditRepo)), auditRepo
}

func TestCreate_DefaultsRoleAndHashesPassword(t *testing.T) {
	svc, auditRepo := newTestService()

	u, err := svc.Create(context.Background(), "admin", rbac.RoleAdmin, CreateInput{
		Email:    "  Alice@Example.com ",
		Name:     "Alice",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, rbac.RoleEmployee, u.Role)
	assert.NotEqual(t, "correct-horse", u.PasswordHash)
	assert.Len(t, auditRepo.ByType(audit.EventUserCreated), 1)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := map[string]CreateInput{
		"bad email":      {Email: "nope", Name: "N", Password: "long-enough"},
		"missing name":   {Email: "a@b.co", Password: "long-enough"},
		"short password": {Email: "a@b.co", Name: "N", Password: "short"},
		"unknown role":   {Email: "a@b.co", Name: "N", Password: "long-enough", Role: "owner"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, "", "", in)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "", "", CreateInput{Email: "a@b.co", Name: "A", Password: "long-enough"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "", "", CreateInput{Email: "A@B.CO", Name: "B", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, "", "", CreateInput{Email: "a@b.co", Name: "A", Password: "long-enough"})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "A@b.co", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)

	_, err = svc.Authenticate(ctx, "a@b.co", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@b.co", "long-enough")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestUpdate_PartialFields(t *testing.T) {
	svc, auditRepo := newTestService()
	ctx := context.Background()
	u, err := svc.Create(ctx, "", "", CreateInput{Email: "a@b.co", Name: "A", Password: "long-enough"})
	require.NoError(t, err)

	role := rbac.RoleAdmin
	name := "Alice Admin"
	updated, err := svc.Update(ctx, "root", rbac.RoleAdmin, u.ID, UpdateInput{Role: &role, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, updated.Role)
	assert.Equal(t, "Alice Admin", updated.Name)
	assert.Equal(t, u.Email, updated.Email)
	assert.Equal(t, u.PasswordHash, updated.PasswordHash)
	assert.Len(t, auditRepo.ByType(audit.EventUserUpdated), 1)

	bad := "root"
	_, err = svc.Update(ctx, "", "", u.ID, UpdateInput{Role: &bad})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Update(ctx, "", "", "3f1c2d4e-0000-4000-8000-000000000000", UpdateInput{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureUser_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	in := CreateInput{Email: "admin@crm.com", Name: "Admin User", Password: "admin123456", Role: rbac.RoleAdmin}

	first, created, err := svc.EnsureUser(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.EnsureUser(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestDisplayName(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	u, err := svc.Create(ctx, "", "", CreateInput{Email: "a@b.co", Name: "Alice", Password: "long-enough"})
	require.NoError(t, err)

	name, found, err := svc.DisplayName(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Alice", name)

	_, found, err = svc.DisplayName(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, found)
}
