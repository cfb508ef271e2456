package models

type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

func IsValidRole(role Role) bool {
	switch role {
	case RoleStudent, RoleLecturer, RoleAdmin:
		return true
	default:
		return false
	}
}

// Caller is the already-authenticated identity a mutating call arrives with.
type Caller struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
