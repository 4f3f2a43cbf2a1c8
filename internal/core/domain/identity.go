package domain

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Identity is the authenticated caller produced by the auth layer.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
