package model

// Session is the authenticated identity attached to a request.
// It is either a UserSession or an AdminSession; callers type-switch on it.
type Session interface {
	SubjectID() string
	Role() string
	isSession()
}

// UserSession identifies a logged-in customer
type UserSession struct {
	UserID string
}

func (s UserSession) SubjectID() string { return s.UserID }
func (UserSession) Role() string        { return RoleUser }
func (UserSession) isSession()          {}

// AdminSession identifies a logged-in administrator
type AdminSession struct {
	AdminID string
}

func (s AdminSession) SubjectID() string { return s.AdminID }
func (AdminSession) Role() string        { return RoleAdmin }
func (AdminSession) isSession()          {}
