package reservations

import (
	"time"

	"github.com/google/uuid"
)

// Reservation holds a customer's claim on event inventory. CustomerID is a
// weak reference: the customer may be deactivated later and the reservation
// stays valid. Total is cached from the item snapshots at write time.
type Reservation struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	CustomerID   uuid.UUID `json:"customer_id" gorm:"type:uuid;not null;index"`
	EventID      uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	Status       Status    `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`
	AttendeeName string    `json:"attendee_name" gorm:"size:200"`
	AttendedBy   string    `json:"attended_by" gorm:"size:200"`
	LoyaltyFree  bool      `json:"loyalty_free" gorm:"default:false"`
	Total        float64   `json:"total" gorm:"type:decimal(12,2);not null"`
	Active       bool      `json:"active" gorm:"default:true"`

	Items []ReservationItem `json:"items" gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// TableName specifies the table name for GORM
func (Reservation) TableName() string {
	return "reservations"
}

// ReservationItem is one line of a reservation. UnitPrice is the snapshot
// taken when the line was added; later catalog price changes never touch it.
// Loyalty marks the zero-price unit granted by the free-ticket perk.
type ReservationItem struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	ReservationID  uuid.UUID `json:"reservation_id" gorm:"type:uuid;not null;index"`
	TicketOptionID uuid.UUID `json:"ticket_option_id" gorm:"type:uuid;not null;index"`
	Quantity       int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	UnitPrice      float64   `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	Loyalty        bool      `json:"loyalty" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (ReservationItem) TableName() string {
	return "reservation_items"
}

type ReservationItemResponse struct {
	ID             string  `json:"id"`
	TicketOptionID string  `json:"ticket_option_id"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	Loyalty        bool    `json:"loyalty,omitempty"`
}

type ReservationResponse struct {
	ID           string                    `json:"id"`
	CustomerID   string                    `json:"customer_id"`
	EventID      string                    `json:"event_id"`
	Status       Status                    `json:"status"`
	AttendeeName string                    `json:"attendee_name,omitempty"`
	AttendedBy   string                    `json:"attended_by,omitempty"`
	LoyaltyFree  bool                      `json:"loyalty_free"`
	Total        float64                   `json:"total"`
	Items        []ReservationItemResponse `json:"items"`
	CreatedAt    time.Time                 `json:"created_at"`
	PaidAt       *time.Time                `json:"paid_at,omitempty"`
}

type ReservationItemRequest struct {
	TicketOptionID string `json:"ticket_option_id" binding:"required,uuid"`
	Quantity       int    `json:"quantity" binding:"required,min=1"`
}

type CreateReservationRequest struct {
	CustomerID   string                   `json:"customer_id" binding:"required,uuid"`
	EventID      string                   `json:"event_id" binding:"required,uuid"`
	AttendeeName string                   `json:"attendee_name" binding:"omitempty,max=200"`
	Items        []ReservationItemRequest `json:"items" binding:"required,min=1,dive"`
}

type UpdateReservationItemsRequest struct {
	Items []ReservationItemRequest `json:"items" binding:"required,min=1,dive"`
}

type MarkPaidRequest struct {
	AttendedBy string `json:"attended_by" binding:"omitempty,max=200"`
}

// ToResponse converts a Reservation to its API representation
func (r *Reservation) ToResponse() ReservationResponse {
	items := make([]ReservationItemResponse, 0, len(r.Items))
	for i := range r.Items {
		item := &r.Items[i]
		items = append(items, ReservationItemResponse{
			ID:             item.ID.String(),
			TicketOptionID: item.TicketOptionID.String(),
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			Loyalty:        item.Loyalty,
		})
	}
	return ReservationResponse{
		ID:           r.ID.String(),
		CustomerID:   r.CustomerID.String(),
		EventID:      r.EventID.String(),
		Status:       r.Status,
		AttendeeName: r.AttendeeName,
		AttendedBy:   r.AttendedBy,
		LoyaltyFree:  r.LoyaltyFree,
		Total:        r.Total,
		Items:        items,
		CreatedAt:    r.CreatedAt,
		PaidAt:       r.PaidAt,
	}
}
