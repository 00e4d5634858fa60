package session

import "github.com/stagehubhq/stagehub/internal/domain/identity"

// FormState is the editable copy of the profile handed to clients.
// Edits live here until committed through the profile service, so a
// half-filled form never leaks into the session snapshot.
type FormState struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Bio      string `json:"bio"`
}

// FormFromSnapshot seeds the form from the current session state.
func FormFromSnapshot(snap Snapshot) FormState {
	return FormState{
		FullName: snap.Profile.FullName,
		Username: snap.Profile.Username,
		Email:    snap.Identity.Email,
		Phone:    snap.Profile.Phone,
		Location: snap.Profile.Location,
		Bio:      snap.Profile.Bio,
	}
}

// Apply turns the form into the partial update the repo understands.
// Every editable field is submitted; email changes go through the auth
// flow, never through here.
func (f FormState) Apply() identity.UpdateProfileRequest {
	return identity.UpdateProfileRequest{
		FullName: &f.FullName,
		Username: &f.Username,
		Phone:    &f.Phone,
		Location: &f.Location,
		Bio:      &f.Bio,
	}
}
