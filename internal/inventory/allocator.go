package inventory

import (
	"context"
	"sort"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/events"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/apperrors"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Line is one capacity claim against a ticket option.
type Line struct {
	TicketOptionID uuid.UUID
	Quantity       int
}

// Allocator is the single choke point through which every mutation of the
// sold counters passes. Reserve and Release are all-or-nothing across the
// lines of one call; no reader ever observes a partially-applied batch.
type Allocator interface {
	Reserve(ctx context.Context, lines []Line) error
	Release(ctx context.Context, lines []Line) error
}

type allocator struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewAllocator creates the database-backed allocator. Serialization is per
// ticket-option row: the batch locks all referenced rows FOR UPDATE in id
// order, re-reads the counters under the lock, and commits or rejects as a
// unit.
func NewAllocator(db *gorm.DB, log *logger.Logger) Allocator {
	return &allocator{db: db, log: log}
}

func (a *allocator) Reserve(ctx context.Context, lines []Line) error {
	merged, ids, err := mergeLines(lines)
	if err != nil {
		return err
	}

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		options, err := lockOptions(tx, ids)
		if err != nil {
			return err
		}

		// Authoritative check happens here, under the row locks; the
		// caller's earlier reads of remaining are only advisory.
		for _, opt := range options {
			requested := merged[opt.ID]
			if !opt.IsReservable(requested) {
				a.log.LogCapacityRejected(ctx, opt.ID.String(), requested, opt.Remaining())
				return apperrors.InsufficientCapacity(
					"not enough tickets available for %q: requested %d, remaining %d",
					opt.Name, requested, opt.Remaining())
			}
		}

		for _, opt := range options {
			if err := tx.Model(&events.TicketOption{}).
				Where("id = ?", opt.ID).
				UpdateColumn("sold", gorm.Expr("sold + ?", merged[opt.ID])).Error; err != nil {
				return err
			}
		}
		return nil
	})

	return wrapAllocatorErr(err, "inventory reserve failed")
}

func (a *allocator) Release(ctx context.Context, lines []Line) error {
	merged, ids, err := mergeLines(lines)
	if err != nil {
		return err
	}

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		options, err := lockOptions(tx, ids)
		if err != nil {
			return err
		}

		for _, opt := range options {
			release := merged[opt.ID]
			newSold := opt.Sold - release
			if newSold < 0 {
				// Clamp instead of going negative; reaching this
				// branch means a bookkeeping bug upstream.
				a.log.LogInvariantViolation(ctx, opt.ID.String(), opt.Sold, release)
				newSold = 0
			}
			if err := tx.Model(&events.TicketOption{}).
				Where("id = ?", opt.ID).
				UpdateColumn("sold", newSold).Error; err != nil {
				return err
			}
		}
		return nil
	})

	return wrapAllocatorErr(err, "inventory release failed")
}

// lockOptions loads all referenced ticket option rows FOR UPDATE, in a
// deterministic order so concurrent batches cannot deadlock.
func lockOptions(tx *gorm.DB, ids []uuid.UUID) ([]events.TicketOption, error) {
	var options []events.TicketOption
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&options).Error
	if err != nil {
		return nil, err
	}

	if len(options) != len(ids) {
		found := make(map[uuid.UUID]bool, len(options))
		for _, opt := range options {
			found[opt.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, apperrors.NotFound("ticket option not found with id: %s", id)
			}
		}
	}
	return options, nil
}

// mergeLines folds duplicate ticket option references into one claim each
// and returns the ids sorted for deterministic lock ordering.
func mergeLines(lines []Line) (map[uuid.UUID]int, []uuid.UUID, error) {
	if len(lines) == 0 {
		return nil, nil, apperrors.Validation("at least one line item is required")
	}

	merged := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, nil, apperrors.Validation("quantity must be positive for ticket option %s", line.TicketOptionID)
		}
		merged[line.TicketOptionID] += line.Quantity
	}

	ids := make([]uuid.UUID, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return merged, ids, nil
}

// wrapAllocatorErr keeps domain errors intact and classifies everything
// else (driver failures, timeouts) as UnavailableError so callers never
// mistake a storage fault for capacity exhaustion.
func wrapAllocatorErr(err error, message string) error {
	if err == nil {
		return nil
	}
	if apperrors.KindOf(err) != apperrors.KindUnknown {
		return err
	}
	return apperrors.Unavailable(err, message)
}
