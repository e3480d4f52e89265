package models

import "time"

// Role is the actor role resolved by the identity provider.
type Role string

const (
	RoleCandidate   Role = "candidate"
	RoleEmployer    Role = "employer"
	RoleCompany     Role = "company"
	RoleConsultancy Role = "consultancy"
	RoleAdmin       Role = "admin"
)

// IsCandidate reports whether r comments as a candidate.
func (r Role) IsCandidate() bool {
	return r == RoleCandidate
}

// IsEmployer reports whether r comments as an employer.
func (r Role) IsEmployer() bool {
	return r == RoleEmployer || r == RoleCompany || r == RoleConsultancy
}

// IsAdmin reports whether r carries admin privileges.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// CanAuthorPosts reports whether r may publish to the feed.
func (r Role) CanAuthorPosts() bool {
	return r == RoleCompany || r == RoleConsultancy || r == RoleAdmin
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.IsCandidate() || r.IsEmployer() || r.IsAdmin()
}

// Account is the local projection of an identity: who an actor id is and
// which role it holds.
type Account struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Role        Role      `gorm:"size:32;not null" json:"role"`
	DisplayName string    `gorm:"size:200" json:"display_name"`
	LogoURL     string    `gorm:"size:500" json:"logo_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Actor is an authenticated caller with its resolved role.
type Actor struct {
	ID   uint
	Role Role
}
