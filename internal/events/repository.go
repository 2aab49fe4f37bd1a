package events

import (
	"context"
	"errors"
	"time"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	List(ctx context.Context) ([]Event, error)
	ListScheduledAfter(ctx context.Context, after time.Time) ([]Event, error)
	Update(ctx context.Context, event *Event) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	FinishDue(ctx context.Context, now time.Time) (int64, error)
	GetTicketOption(ctx context.Context, eventID, ticketOptionID uuid.UUID) (*TicketOption, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, event *Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return apperrors.Unavailable(err, "failed to create event")
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := r.db.WithContext(ctx).
		Preload("TicketOptions", func(db *gorm.DB) *gorm.DB {
			return db.Order("ticket_options.created_at ASC")
		}).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("event not found with id: %s", id)
		}
		return nil, apperrors.Unavailable(err, "failed to load event")
	}
	return &event, nil
}

func (r *repository) List(ctx context.Context) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Preload("TicketOptions", func(db *gorm.DB) *gorm.DB {
			return db.Order("ticket_options.created_at ASC")
		}).
		Order("start_date_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, apperrors.Unavailable(err, "failed to list events")
	}
	return events, nil
}

func (r *repository) ListScheduledAfter(ctx context.Context, after time.Time) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Preload("TicketOptions", func(db *gorm.DB) *gorm.DB {
			return db.Order("ticket_options.created_at ASC")
		}).
		Where("status = ?", StatusScheduled).
		Where("start_date_time > ?", after).
		Order("start_date_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, apperrors.Unavailable(err, "failed to list scheduled events")
	}
	return events, nil
}

func (r *repository) Update(ctx context.Context, event *Event) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Event{}).
			Where("id = ?", event.ID).
			Updates(map[string]interface{}{
				"title":           event.Title,
				"description":     event.Description,
				"type":            event.Type,
				"start_date_time": event.StartDateTime,
				"end_date_time":   event.EndDateTime,
				"updated_at":      time.Now(),
			}).Error; err != nil {
			return err
		}

		// Ticket option counters (sold) are owned by the inventory
		// allocator; only the descriptive fields are written here.
		for i := range event.TicketOptions {
			opt := &event.TicketOptions[i]
			if opt.ID == uuid.Nil {
				opt.EventID = event.ID
				if err := tx.Create(opt).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&TicketOption{}).
				Where("id = ? AND event_id = ?", opt.ID, event.ID).
				Updates(map[string]interface{}{
					"name":       opt.Name,
					"price":      opt.Price,
					"capacity":   opt.Capacity,
					"updated_at": time.Now(),
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Unavailable(err, "failed to update event")
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	result := r.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return apperrors.Unavailable(result.Error, "failed to update event status")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("event not found with id: %s", id)
	}
	return nil
}

// FinishDue flips every scheduled event past its end time to FINISHED in a
// single statement, so repeated invocations are no-ops.
func (r *repository) FinishDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&Event{}).
		Where("status = ?", StatusScheduled).
		Where("end_date_time < ?", now).
		Updates(map[string]interface{}{
			"status":     StatusFinished,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, apperrors.Unavailable(result.Error, "failed to finish due events")
	}
	return result.RowsAffected, nil
}

func (r *repository) GetTicketOption(ctx context.Context, eventID, ticketOptionID uuid.UUID) (*TicketOption, error) {
	var option TicketOption
	err := r.db.WithContext(ctx).
		Where("id = ? AND event_id = ?", ticketOptionID, eventID).
		First(&option).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("ticket option not found with id: %s", ticketOptionID)
		}
		return nil, apperrors.Unavailable(err, "failed to load ticket option")
	}
	return &option, nil
}
