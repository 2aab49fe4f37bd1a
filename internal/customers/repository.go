package customers

import (
	"context"
	"errors"
	"time"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, customer *Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	ListActive(ctx context.Context) ([]Customer, error)
	Update(ctx context.Context, customer *Customer) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ConsumeLoyaltyCredit(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, customer *Customer) error {
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Validation("a customer with email %s already exists", customer.Email)
		}
		return apperrors.Unavailable(err, "failed to create customer")
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	var customer Customer
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("customer not found with id: %s", id)
		}
		return nil, apperrors.Unavailable(err, "failed to load customer")
	}
	return &customer, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*Customer, error) {
	var customer Customer
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("customer not found with email: %s", email)
		}
		return nil, apperrors.Unavailable(err, "failed to load customer")
	}
	return &customer, nil
}

func (r *repository) ListActive(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("last_name ASC, first_name ASC").
		Find(&customers).Error
	if err != nil {
		return nil, apperrors.Unavailable(err, "failed to list customers")
	}
	return customers, nil
}

func (r *repository) Update(ctx context.Context, customer *Customer) error {
	err := r.db.WithContext(ctx).
		Model(&Customer{}).
		Where("id = ?", customer.ID).
		Updates(map[string]interface{}{
			"first_name":   customer.FirstName,
			"last_name":    customer.LastName,
			"email":        customer.Email,
			"loyalty_free": customer.LoyaltyFree,
			"updated_at":   time.Now(),
		}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Validation("a customer with email %s already exists", customer.Email)
		}
		return apperrors.Unavailable(err, "failed to update customer")
	}
	return nil
}

// Deactivate soft-deletes: reservations keep referencing the id and the UI
// falls back to a "deleted customer" label.
func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&Customer{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return apperrors.Unavailable(result.Error, "failed to deactivate customer")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("customer not found with id: %s", id)
	}
	return nil
}

// ConsumeLoyaltyCredit atomically claims the customer's free-ticket perk.
// Returns false when there was no credit to consume.
func (r *repository) ConsumeLoyaltyCredit(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Customer{}).
		Where("id = ? AND active = ? AND loyalty_free = ?", id, true, true).
		Updates(map[string]interface{}{
			"loyalty_free": false,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return false, apperrors.Unavailable(result.Error, "failed to consume loyalty credit")
	}
	return result.RowsAffected > 0, nil
}
