package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	TypeTheater    EventType = "THEATER"
	TypeConcert    EventType = "CONCERT"
	TypeConference EventType = "CONFERENCE"
)

func (t EventType) IsValid() bool {
	switch t {
	case TypeTheater, TypeConcert, TypeConference:
		return true
	}
	return false
}

type Event struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Title         string    `json:"title" gorm:"not null;size:255"`
	Description   string    `json:"description" gorm:"type:text"`
	Type          EventType `json:"type" gorm:"type:varchar(20);not null"`
	StartDateTime time.Time `json:"start_date_time" gorm:"not null"`
	EndDateTime   time.Time `json:"end_date_time" gorm:"not null"`
	Status        Status    `json:"status" gorm:"type:varchar(20);default:'SCHEDULED'"`

	// Ticket options are owned exclusively by their event
	TicketOptions []TicketOption `json:"ticket_options" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE;"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type TicketOption struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	EventID  uuid.UUID `json:"event_id" gorm:"type:uuid;index;not null"`
	Name     string    `json:"name" gorm:"not null;size:255"`
	Price    float64   `json:"price" gorm:"not null;check:price >= 0"`
	Capacity int       `json:"capacity" gorm:"not null;check:capacity >= 1"`
	Sold     int       `json:"sold" gorm:"default:0;check:sold >= 0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Remaining is derived, never stored, and never negative.
func (t *TicketOption) Remaining() int {
	remaining := t.Capacity - t.Sold
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// IsReservable checks the requested quantity against remaining capacity
func (t *TicketOption) IsReservable(quantity int) bool {
	return t.Remaining() >= quantity
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}

// TableName specifies the table name for GORM
func (TicketOption) TableName() string {
	return "ticket_options"
}

type EventResponse struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Type          EventType              `json:"type"`
	StartDateTime time.Time              `json:"start_date_time"`
	EndDateTime   time.Time              `json:"end_date_time"`
	Status        Status                 `json:"status"`
	TicketOptions []TicketOptionResponse `json:"ticket_options"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

type TicketOptionResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Capacity  int     `json:"capacity"`
	Sold      int     `json:"sold"`
	Remaining int     `json:"remaining"`
}

type TicketOptionRequest struct {
	ID       string  `json:"id" binding:"omitempty,uuid"`
	Name     string  `json:"name" binding:"required,min=1,max=255"`
	Price    float64 `json:"price" binding:"min=0"`
	Capacity int     `json:"capacity" binding:"required,min=1"`
}

type CreateEventRequest struct {
	Title         string                `json:"title" binding:"required,min=3,max=255"`
	Description   string                `json:"description" binding:"max=2000"`
	Type          EventType             `json:"type" binding:"required,oneof=THEATER CONCERT CONFERENCE"`
	StartDateTime time.Time             `json:"start_date_time" binding:"required"`
	EndDateTime   time.Time             `json:"end_date_time" binding:"required"`
	TicketOptions []TicketOptionRequest `json:"ticket_options" binding:"required,min=1,dive"`
}

type UpdateEventRequest struct {
	Title         string                `json:"title" binding:"required,min=3,max=255"`
	Description   string                `json:"description" binding:"max=2000"`
	Type          EventType             `json:"type" binding:"required,oneof=THEATER CONCERT CONFERENCE"`
	StartDateTime time.Time             `json:"start_date_time" binding:"required"`
	EndDateTime   time.Time             `json:"end_date_time" binding:"required"`
	TicketOptions []TicketOptionRequest `json:"ticket_options" binding:"omitempty,dive"`
}

type UpdateEventStatusRequest struct {
	Status Status `json:"status" binding:"required,oneof=SCHEDULED CANCELLED FINISHED"`
}

// ToResponse converts an Event to its API representation
func (e *Event) ToResponse() EventResponse {
	options := make([]TicketOptionResponse, 0, len(e.TicketOptions))
	for i := range e.TicketOptions {
		opt := &e.TicketOptions[i]
		options = append(options, TicketOptionResponse{
			ID:        opt.ID.String(),
			Name:      opt.Name,
			Price:     opt.Price,
			Capacity:  opt.Capacity,
			Sold:      opt.Sold,
			Remaining: opt.Remaining(),
		})
	}

	return EventResponse{
		ID:            e.ID.String(),
		Title:         e.Title,
		Description:   e.Description,
		Type:          e.Type,
		StartDateTime: e.StartDateTime,
		EndDateTime:   e.EndDateTime,
		Status:        e.Status,
		TicketOptions: options,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
