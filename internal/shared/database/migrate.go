package database

import (
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/customers"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/events"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/reservations"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&customers.Customer{},
		&events.Event{},
		&events.TicketOption{},
		&reservations.Reservation{},
		&reservations.ReservationItem{},
	)
}
