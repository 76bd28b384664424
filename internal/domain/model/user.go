package model

// SessionUser is the authenticated identity attached to a request by the
// auth layer. Anonymous callers have no SessionUser at all.
type SessionUser struct {
	ID    string
	Email string
	Role  Role
}

func (u *SessionUser) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
