package customers

import (
	"time"

	"github.com/google/uuid"
)

// Customer is referenced by reservations by id only; deactivating a
// customer never touches their reservations.
type Customer struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	FirstName   string    `json:"first_name" gorm:"not null;size:100"`
	LastName    string    `json:"last_name" gorm:"not null;size:100"`
	Email       string    `json:"email" gorm:"unique;not null;size:255"`
	LoyaltyFree bool      `json:"loyalty_free" gorm:"default:false"`
	Active      bool      `json:"active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// FullName returns the customer's display name
func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

type CustomerResponse struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	LoyaltyFree bool      `json:"loyalty_free"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateCustomerRequest struct {
	FirstName string `json:"first_name" binding:"required,min=1,max=100"`
	LastName  string `json:"last_name" binding:"required,min=1,max=100"`
	Email     string `json:"email" binding:"required,email"`
}

type UpdateCustomerRequest struct {
	FirstName   string `json:"first_name" binding:"required,min=1,max=100"`
	LastName    string `json:"last_name" binding:"required,min=1,max=100"`
	Email       string `json:"email" binding:"required,email"`
	LoyaltyFree *bool  `json:"loyalty_free"`
}

// ToResponse converts a Customer to its API representation
func (c *Customer) ToResponse() CustomerResponse {
	return CustomerResponse{
		ID:          c.ID.String(),
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		LoyaltyFree: c.LoyaltyFree,
		CreatedAt:   c.CreatedAt,
	}
}
