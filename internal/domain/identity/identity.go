package identity

import (
	"errors"
	"time"
)

// Identity is the authenticated principal. Immutable after creation
// except email, which only changes through the auth flow.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile holds the user-facing attributes, kept in a separate table
// 1:1 with the identity and mutable by the owner only.
type Profile struct {
	UserID    string    `json:"userId"`
	FullName  string    `json:"fullName"`
	Username  string    `json:"username"`
	Phone     string    `json:"phone,omitempty"`
	Location  string    `json:"location,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Role      string    `json:"role"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	RoleUser         = "user"
	RoleCreator      = "creator"
	RoleOrganization = "organization"
)

var ErrNotFound = errors.New("user not found")
var ErrEmailAlreadyUsed = errors.New("email already in use")
var ErrUsernameAlreadyUsed = errors.New("username already in use")

// UpdateProfileRequest is a partial update: nil pointers leave the
// stored value untouched. AvatarURL is set by the profile service
// after a successful upload, never bound from the request body.
type UpdateProfileRequest struct {
	FullName  *string `json:"fullName" binding:"omitempty,min=1,max=120"`
	Username  *string `json:"username" binding:"omitempty,min=2,max=40"`
	Phone     *string `json:"phone" binding:"omitempty,max=30"`
	Location  *string `json:"location" binding:"omitempty,max=120"`
	Bio       *string `json:"bio" binding:"omitempty,max=1000"`
	Role      *string `json:"role" binding:"omitempty,oneof=user creator organization"`
	AvatarURL *string `json:"-"`
}

// Empty reports whether the request would change nothing.
func (r UpdateProfileRequest) Empty() bool {
	return r.FullName == nil && r.Username == nil && r.Phone == nil &&
		r.Location == nil && r.Bio == nil && r.Role == nil && r.AvatarURL == nil
}
