package event

import (
	"errors"
	"time"
)

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Price       float64   `json:"price"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// with pointers if optional, it will be nil
type ListEventsFilter struct {
	Location *string
	From     *time.Time
	To       *time.Time
	Query    *string
	Limit    int
}

var ErrNotFound = errors.New("event not found")

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required,min=3,max=120"`
	Description string    `json:"description" binding:"omitempty,max=1000"`
	Date        time.Time `json:"date" binding:"required"`
	Location    string    `json:"location" binding:"omitempty,min=2,max=120"`
	ImageURL    string    `json:"imageUrl" binding:"omitempty,url,max=500"`
	Price       float64   `json:"price" binding:"omitempty,min=0"`
}

// a full update payload, might switch to a patch which optionally provides means for partial updates.
type UpdateEventRequest struct {
	Title       string    `json:"title" binding:"required,min=3,max=120"`
	Description string    `json:"description" binding:"omitempty,max=1000"`
	Date        time.Time `json:"date" binding:"required"`
	Location    string    `json:"location" binding:"omitempty,min=2,max=120"`
	ImageURL    string    `json:"imageUrl" binding:"omitempty,url,max=500"`
	Price       float64   `json:"price" binding:"omitempty,min=0"`
}
