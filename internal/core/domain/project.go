package domain

import "time"

// Project groups tasks under a single owner.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EditableBy reports whether u may modify or delete p.
func (p *Project) EditableBy(u *User) bool {
	return u != nil && (u.IsAdmin() || p.Owner == u.ID)
}
