package events

import (
	"context"
	"fmt"
	"time"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/clock"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/apperrors"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/cache"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/logger"

	"github.com/google/uuid"
)

// MaxEventDuration caps a single event; anything longer is a data-entry error.
const MaxEventDuration = 24 * time.Hour

const (
	cacheKeyEventList   = "teatro:events:list"
	cacheKeyEventFormat = "teatro:events:%s"
)

// Service interface defines the contract for the event catalog
type Service interface {
	CreateEvent(ctx context.Context, req CreateEventRequest) (*EventResponse, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, req UpdateEventRequest) (*EventResponse, error)
	SetStatus(ctx context.Context, id uuid.UUID, next Status) (*EventResponse, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	ListEvents(ctx context.Context) ([]EventResponse, error)
	ListScheduledEvents(ctx context.Context) ([]EventResponse, error)

	// Record-level reads for the reservation ledger
	GetEventRecord(ctx context.Context, id uuid.UUID) (*Event, error)
	GetTicketOption(ctx context.Context, eventID, ticketOptionID uuid.UUID) (*TicketOption, error)

	// FinishDueEvents is invoked by the lifecycle scheduler
	FinishDueEvents(ctx context.Context, now time.Time) (int, error)

	// SetCache enables cached display reads (dependency injection)
	SetCache(c cache.Service, ttl time.Duration)
}

type service struct {
	repo     Repository
	clk      clock.Clock
	log      *logger.Logger
	cache    cache.Service
	cacheTTL time.Duration
}

// NewService creates a new event catalog service
func NewService(repo Repository, clk clock.Clock, log *logger.Logger) Service {
	return &service{
		repo: repo,
		clk:  clk,
		log:  log,
	}
}

// SetCache enables eventually-consistent display reads through the given
// cache. Authoritative capacity checks never go through here.
func (s *service) SetCache(c cache.Service, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

func (s *service) CreateEvent(ctx context.Context, req CreateEventRequest) (*EventResponse, error) {
	if err := s.validateSchedule(req.StartDateTime, req.EndDateTime); err != nil {
		return nil, err
	}
	if !req.Type.IsValid() {
		return nil, apperrors.Validation("unknown event type: %s", req.Type)
	}

	event := &Event{
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		StartDateTime: req.StartDateTime,
		EndDateTime:   req.EndDateTime,
		Status:        StatusScheduled,
	}

	for _, optReq := range req.TicketOptions {
		if err := validateTicketOption(optReq); err != nil {
			return nil, err
		}
		event.TicketOptions = append(event.TicketOptions, TicketOption{
			Name:     optReq.Name,
			Price:    optReq.Price,
			Capacity: optReq.Capacity,
			Sold:     0,
		})
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, event.ID)
	resp := event.ToResponse()
	return &resp, nil
}

func (s *service) UpdateEvent(ctx context.Context, id uuid.UUID, req UpdateEventRequest) (*EventResponse, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if event.Status != StatusScheduled {
		return nil, apperrors.InvalidState("cannot update event in %s state", event.Status)
	}

	if err := s.validateSchedule(req.StartDateTime, req.EndDateTime); err != nil {
		return nil, err
	}
	if !req.Type.IsValid() {
		return nil, apperrors.Validation("unknown event type: %s", req.Type)
	}

	event.Title = req.Title
	event.Description = req.Description
	event.Type = req.Type
	event.StartDateTime = req.StartDateTime
	event.EndDateTime = req.EndDateTime

	// Match incoming ticket options against existing ones by id; unknown
	// ids are rejected, missing ids create new options with sold = 0.
	existing := make(map[uuid.UUID]*TicketOption, len(event.TicketOptions))
	for i := range event.TicketOptions {
		existing[event.TicketOptions[i].ID] = &event.TicketOptions[i]
	}

	updated := make([]TicketOption, 0, len(req.TicketOptions))
	for _, optReq := range req.TicketOptions {
		if err := validateTicketOption(optReq); err != nil {
			return nil, err
		}

		if optReq.ID == "" {
			updated = append(updated, TicketOption{
				EventID:  event.ID,
				Name:     optReq.Name,
				Price:    optReq.Price,
				Capacity: optReq.Capacity,
				Sold:     0,
			})
			continue
		}

		optID, err := uuid.Parse(optReq.ID)
		if err != nil {
			return nil, apperrors.Validation("invalid ticket option id: %s", optReq.ID)
		}
		current, ok := existing[optID]
		if !ok {
			return nil, apperrors.NotFound("ticket option not found with id: %s", optID)
		}
		if optReq.Capacity < current.Sold {
			return nil, apperrors.Validation(
				"capacity %d for %q is below the %d tickets already sold",
				optReq.Capacity, optReq.Name, current.Sold)
		}

		current.Name = optReq.Name
		current.Price = optReq.Price
		current.Capacity = optReq.Capacity
		updated = append(updated, *current)
	}

	if len(req.TicketOptions) > 0 {
		event.TicketOptions = updated
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, event.ID)
	return s.GetEvent(ctx, id)
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, next Status) (*EventResponse, error) {
	if !next.IsValid() {
		return nil, apperrors.Validation("unknown event status: %s", next)
	}

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if event.Status == next {
		// Idempotent no-op; the scheduler relies on this
		resp := event.ToResponse()
		return &resp, nil
	}

	if !event.Status.CanTransitionTo(next) {
		return nil, apperrors.InvalidTransition("cannot transition event from %s to %s", event.Status, next)
	}

	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, id)
	event.Status = next
	resp := event.ToResponse()
	return &resp, nil
}

func (s *service) GetEvent(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	if s.cache != nil {
		var cached EventResponse
		key := fmt.Sprintf(cacheKeyEventFormat, id)
		err := s.cache.GetOrSet(ctx, key, s.cacheTTL, func() (interface{}, error) {
			event, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			return event.ToResponse(), nil
		}, &cached)
		if err != nil {
			return nil, err
		}
		return &cached, nil
	}

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := event.ToResponse()
	return &resp, nil
}

func (s *service) ListEvents(ctx context.Context) ([]EventResponse, error) {
	if s.cache != nil {
		var cached []EventResponse
		err := s.cache.GetOrSet(ctx, cacheKeyEventList, s.cacheTTL, func() (interface{}, error) {
			return s.listResponses(ctx)
		}, &cached)
		if err != nil {
			return nil, err
		}
		return cached, nil
	}
	return s.listResponses(ctx)
}

func (s *service) listResponses(ctx context.Context) ([]EventResponse, error) {
	events, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]EventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, events[i].ToResponse())
	}
	return responses, nil
}

func (s *service) ListScheduledEvents(ctx context.Context) ([]EventResponse, error) {
	events, err := s.repo.ListScheduledAfter(ctx, s.clk.Now())
	if err != nil {
		return nil, err
	}
	responses := make([]EventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, events[i].ToResponse())
	}
	return responses, nil
}

func (s *service) GetEventRecord(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetTicketOption(ctx context.Context, eventID, ticketOptionID uuid.UUID) (*TicketOption, error) {
	return s.repo.GetTicketOption(ctx, eventID, ticketOptionID)
}

func (s *service) FinishDueEvents(ctx context.Context, now time.Time) (int, error) {
	finished, err := s.repo.FinishDue(ctx, now)
	if err != nil {
		return 0, err
	}
	if finished > 0 {
		s.log.LogEventFinished(ctx, int(finished))
		s.invalidateCache(ctx, uuid.Nil)
	}
	return int(finished), nil
}

func (s *service) validateSchedule(start, end time.Time) error {
	if !end.After(start) {
		return apperrors.Validation("event end must be after start")
	}
	if end.Sub(start) > MaxEventDuration {
		return apperrors.Validation("event duration cannot exceed %s", MaxEventDuration)
	}
	if start.Before(s.clk.Now()) {
		return apperrors.Validation("event start cannot be in the past")
	}
	return nil
}

func validateTicketOption(req TicketOptionRequest) error {
	if req.Price < 0 {
		return apperrors.Validation("ticket option %q price must not be negative", req.Name)
	}
	if req.Capacity < 1 {
		return apperrors.Validation("ticket option %q capacity must be at least 1", req.Name)
	}
	return nil
}

func (s *service) invalidateCache(ctx context.Context, eventID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, cacheKeyEventList)
	if eventID != uuid.Nil {
		_ = s.cache.Delete(ctx, fmt.Sprintf(cacheKeyEventFormat, eventID))
	}
}
