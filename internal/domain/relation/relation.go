package relation

import (
	"errors"
	"time"

	"github.com/stagehubhq/stagehub/internal/domain/event"
)

// Kind names one of the user/event many-to-many relations.
type Kind string

const (
	KindWishlist Kind = "wishlist"
	KindBooked   Kind = "booked"
	KindLiked    Kind = "liked"
)

var ErrAlreadySaved = errors.New("event already saved")
var ErrNotSaved = errors.New("event not saved")
var ErrUnknownKind = errors.New("unknown relation kind")

// ParseKind validates a kind coming off the wire (route param).
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindWishlist, KindBooked, KindLiked:
		return Kind(raw), nil
	}
	return "", ErrUnknownKind
}

// Entry is one saved-event row: (user, event, kind), timestamped at creation.
// Uniqueness is enforced per (user_id, event_id, kind).
type Entry struct {
	UserID    string    `json:"userId"`
	EventID   string    `json:"eventId"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// SavedEvent is a relation entry resolved into its full event record.
type SavedEvent struct {
	Event   event.Event `json:"event"`
	SavedAt time.Time   `json:"savedAt"`
}
