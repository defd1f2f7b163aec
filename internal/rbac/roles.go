package rbac

// Role names. Keep these stable; they are stored on users and carried in access tokens.
const (
	RoleAdmin    = "ADMIN"
	RoleEmployee = "EMPLOYEE"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleEmployee
}
