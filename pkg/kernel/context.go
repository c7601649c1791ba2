package kernel

// AuthContext is the per-request authentication context injected by the
// token middleware after access-token validation.
type AuthContext struct {
	UserID UserID   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

// IsValid reports whether the context identifies a user.
func (ac *AuthContext) IsValid() bool {
	return !ac.UserID.IsEmpty()
}

// HasRole reports whether the context carries the given role.
func (ac *AuthContext) HasRole(role string) bool {
	for _, r := range ac.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the context carries the ADMIN role.
func (ac *AuthContext) IsAdmin() bool {
	return ac.HasRole("ADMIN")
}

// ContextKey is the type for request-scoped keys.
type ContextKey string

const (
	// AuthContextKey stores the AuthContext in fiber locals / context.Context
	AuthContextKey ContextKey = "auth_context"

	// RequestIDKey stores the request id
	RequestIDKey ContextKey = "request_id"
)
