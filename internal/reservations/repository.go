package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, reservation *Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	List(ctx context.Context) ([]Reservation, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Reservation, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, attendedBy string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	ReplaceItems(ctx context.Context, reservationID uuid.UUID, items []ReservationItem, total float64) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, reservation *Reservation) error {
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return apperrors.Unavailable(err, "failed to create reservation")
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	var reservation Reservation
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("reservation_items.created_at ASC")
		}).
		Where("id = ? AND active = ?", id, true).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("reservation not found with id: %s", id)
		}
		return nil, apperrors.Unavailable(err, "failed to load reservation")
	}
	return &reservation, nil
}

func (r *repository) List(ctx context.Context) ([]Reservation, error) {
	var reservations []Reservation
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("active = ?", true).
		Order("created_at DESC").
		Find(&reservations).Error
	if err != nil {
		return nil, apperrors.Unavailable(err, "failed to list reservations")
	}
	return reservations, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Reservation, error) {
	var reservations []Reservation
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ? AND active = ?", customerID, true).
		Order("created_at DESC").
		Find(&reservations).Error
	if err != nil {
		return nil, apperrors.Unavailable(err, "failed to list reservations")
	}
	return reservations, nil
}

// MarkPaid flips PENDING to PAID with a guarded update so two concurrent
// payments cannot both succeed.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, attendedBy string) error {
	updates := map[string]interface{}{
		"status":     StatusPaid,
		"paid_at":    paidAt,
		"updated_at": time.Now(),
	}
	if attendedBy != "" {
		updates["attended_by"] = attendedBy
	}

	result := r.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ? AND status = ? AND active = ?", id, StatusPending, true).
		Updates(updates)
	if result.Error != nil {
		return apperrors.Unavailable(result.Error, "failed to mark reservation paid")
	}
	if result.RowsAffected == 0 {
		return apperrors.InvalidTransition("reservation %s is not pending", id)
	}
	return nil
}

// UpdateStatus transitions guarded on the current status; zero rows means
// another writer got there first.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	result := r.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ? AND status = ? AND active = ?", id, from, true).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return apperrors.Unavailable(result.Error, "failed to update reservation status")
	}
	if result.RowsAffected == 0 {
		return apperrors.InvalidTransition("reservation %s is not %s", id, from)
	}
	return nil
}

// ReplaceItems swaps the priced lines of a reservation and its cached total
// in one transaction. Loyalty perk lines are kept untouched.
func (r *repository) ReplaceItems(ctx context.Context, reservationID uuid.UUID, items []ReservationItem, total float64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("reservation_id = ? AND loyalty = ?", reservationID, false).
			Delete(&ReservationItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ID = uuid.Nil
			items[i].ReservationID = reservationID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return tx.Model(&Reservation{}).
			Where("id = ?", reservationID).
			Updates(map[string]interface{}{
				"total":      total,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return apperrors.Unavailable(err, "failed to update reservation items")
	}
	return nil
}

// Deactivate soft-deletes a reservation; it disappears from listings but
// the row stays for bookkeeping.
func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return apperrors.Unavailable(result.Error, "failed to delete reservation")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("reservation not found with id: %s", id)
	}
	return nil
}
