package reservations

import (
	"context"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/clock"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/customers"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/events"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/inventory"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/pricing"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/apperrors"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/logger"

	"github.com/google/uuid"
)

// Catalog is the slice of the event service the ledger needs.
type Catalog interface {
	GetEventRecord(ctx context.Context, id uuid.UUID) (*events.Event, error)
}

// Directory is the slice of the customer service the ledger needs.
type Directory interface {
	GetCustomerRecord(ctx context.Context, id uuid.UUID) (*customers.Customer, error)
	ConsumeLoyaltyCredit(ctx context.Context, id uuid.UUID) (bool, error)
}

// Publisher receives reservation lifecycle notifications. Implementations
// must be best-effort: they never block or fail the operation.
type Publisher interface {
	ReservationCreated(ctx context.Context, r *Reservation)
	ReservationPaid(ctx context.Context, r *Reservation)
	ReservationCancelled(ctx context.Context, r *Reservation)
}

// Service interface defines the contract for the reservation ledger
type Service interface {
	CreateReservation(ctx context.Context, req CreateReservationRequest) (*ReservationResponse, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*ReservationResponse, error)
	ListReservations(ctx context.Context) ([]ReservationResponse, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]ReservationResponse, error)
	MarkPaid(ctx context.Context, id uuid.UUID, req MarkPaidRequest) (*ReservationResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) (*ReservationResponse, error)
	UpdateItems(ctx context.Context, id uuid.UUID, req UpdateReservationItemsRequest) (*ReservationResponse, error)
	DeleteReservation(ctx context.Context, id uuid.UUID) error

	// SetPublisher enables lifecycle notifications (dependency injection)
	SetPublisher(p Publisher)
}

type service struct {
	repo      Repository
	catalog   Catalog
	directory Directory
	allocator inventory.Allocator
	clk       clock.Clock
	log       *logger.Logger
	publisher Publisher
}

// NewService creates a new reservation ledger service
func NewService(repo Repository, catalog Catalog, directory Directory, allocator inventory.Allocator, clk clock.Clock, log *logger.Logger) Service {
	return &service{
		repo:      repo,
		catalog:   catalog,
		directory: directory,
		allocator: allocator,
		clk:       clk,
		log:       log,
	}
}

func (s *service) SetPublisher(p Publisher) {
	s.publisher = p
}

func (s *service) CreateReservation(ctx context.Context, req CreateReservationRequest) (*ReservationResponse, error) {
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, apperrors.Validation("invalid customer id: %s", req.CustomerID)
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, apperrors.Validation("invalid event id: %s", req.EventID)
	}

	customer, err := s.directory.GetCustomerRecord(ctx, customerID)
	if err != nil {
		return nil, err
	}

	event, err := s.catalog.GetEventRecord(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.checkEventOpen(event); err != nil {
		return nil, err
	}

	lines, items, err := buildLines(event, req.Items)
	if err != nil {
		return nil, err
	}

	if err := s.allocator.Reserve(ctx, lines); err != nil {
		return nil, err
	}

	// Loyalty perk: one unit of the first line becomes free when the
	// customer holds an unused credit. The seat count does not change,
	// the unit just stops costing anything.
	loyaltyApplied := false
	if customer.LoyaltyFree {
		consumed, cerr := s.directory.ConsumeLoyaltyCredit(ctx, customer.ID)
		if cerr != nil {
			s.log.ErrorWithContext(ctx, "failed to consume loyalty credit", cerr, map[string]interface{}{
				"customer_id": customer.ID.String(),
			})
		}
		loyaltyApplied = consumed
	}
	if loyaltyApplied {
		items = applyLoyalty(items)
	}

	attendee := req.AttendeeName
	if attendee == "" {
		attendee = customer.FullName()
	}

	reservation := &Reservation{
		CustomerID:   customer.ID,
		EventID:      event.ID,
		Status:       StatusPending,
		AttendeeName: attendee,
		LoyaltyFree:  loyaltyApplied,
		Total:        totalOf(items),
		Active:       true,
		Items:        items,
	}

	if err := s.repo.Create(ctx, reservation); err != nil {
		// Give the capacity back so a failed write never strands seats.
		if relErr := s.allocator.Release(ctx, lines); relErr != nil {
			s.log.ErrorWithContext(ctx, "failed to release inventory after create failure", relErr, map[string]interface{}{
				"event_id": event.ID.String(),
			})
		}
		return nil, err
	}

	s.log.LogReservationCreated(ctx, reservation.ID.String(), event.ID.String(), customer.ID.String())
	if s.publisher != nil {
		s.publisher.ReservationCreated(ctx, reservation)
	}

	resp := reservation.ToResponse()
	return &resp, nil
}

func (s *service) GetReservation(ctx context.Context, id uuid.UUID) (*ReservationResponse, error) {
	reservation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := reservation.ToResponse()
	return &resp, nil
}

func (s *service) ListReservations(ctx context.Context) ([]ReservationResponse, error) {
	reservations, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return toResponses(reservations), nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]ReservationResponse, error) {
	reservations, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return toResponses(reservations), nil
}

func (s *service) MarkPaid(ctx context.Context, id uuid.UUID, req MarkPaidRequest) (*ReservationResponse, error) {
	reservation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !reservation.Status.CanTransitionTo(StatusPaid) {
		return nil, apperrors.InvalidTransition("cannot transition reservation from %s to %s", reservation.Status, StatusPaid)
	}

	paidAt := s.clk.Now()
	if err := s.repo.MarkPaid(ctx, id, paidAt, req.AttendedBy); err != nil {
		return nil, err
	}

	reservation.Status = StatusPaid
	reservation.PaidAt = &paidAt
	if req.AttendedBy != "" {
		reservation.AttendedBy = req.AttendedBy
	}

	if s.publisher != nil {
		s.publisher.ReservationPaid(ctx, reservation)
	}

	resp := reservation.ToResponse()
	return &resp, nil
}

// Cancel flips the status first with a guarded update, then releases the
// held inventory before returning. Whoever wins the PENDING -> CANCELLED
// edge owns the release, so the seats go back into the pool exactly once
// and a lost race never touches the counters.
func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*ReservationResponse, error) {
	reservation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !reservation.Status.CanTransitionTo(StatusCancelled) {
		return nil, apperrors.InvalidTransition("cannot transition reservation from %s to %s", reservation.Status, StatusCancelled)
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusPending, StatusCancelled); err != nil {
		return nil, err
	}

	lines := heldLines(reservation.Items)
	if err := s.allocator.Release(ctx, lines); err != nil {
		s.log.ErrorWithContext(ctx, "failed to release inventory for cancelled reservation", err, map[string]interface{}{
			"reservation_id": id.String(),
		})
		return nil, err
	}

	reservation.Status = StatusCancelled

	s.log.LogReservationCancelled(ctx, reservation.ID.String(), reservation.EventID.String())
	if s.publisher != nil {
		s.publisher.ReservationCancelled(ctx, reservation)
	}

	resp := reservation.ToResponse()
	return &resp, nil
}

// UpdateItems amends a pending reservation by delta: only the net increase
// per ticket option is reserved and only the net decrease released, so an
// unchanged line never risks a capacity rejection. A rejected delta leaves
// the reservation exactly as it was.
func (s *service) UpdateItems(ctx context.Context, id uuid.UUID, req UpdateReservationItemsRequest) (*ReservationResponse, error) {
	reservation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.Status != StatusPending {
		return nil, apperrors.InvalidState("cannot amend a %s reservation", reservation.Status)
	}

	event, err := s.catalog.GetEventRecord(ctx, reservation.EventID)
	if err != nil {
		return nil, err
	}
	if err := s.checkEventOpen(event); err != nil {
		return nil, err
	}

	_, newItems, err := buildLines(event, req.Items)
	if err != nil {
		return nil, err
	}

	held := make(map[uuid.UUID]int)
	snapshots := make(map[uuid.UUID]float64)
	loyalty := make([]ReservationItem, 0, 1)
	for _, item := range reservation.Items {
		if item.Loyalty {
			loyalty = append(loyalty, item)
			continue
		}
		held[item.TicketOptionID] += item.Quantity
		snapshots[item.TicketOptionID] = item.UnitPrice
	}

	requested := make(map[uuid.UUID]int, len(newItems))
	for i := range newItems {
		requested[newItems[i].TicketOptionID] += newItems[i].Quantity
		// Keep the original snapshot for options already on the
		// reservation; only net-new options take the live price.
		if price, ok := snapshots[newItems[i].TicketOptionID]; ok {
			newItems[i].UnitPrice = price
		}
	}

	var increases, decreases []inventory.Line
	for optID, qty := range requested {
		if delta := qty - held[optID]; delta > 0 {
			increases = append(increases, inventory.Line{TicketOptionID: optID, Quantity: delta})
		}
	}
	for optID, qty := range held {
		if delta := qty - requested[optID]; delta > 0 {
			decreases = append(decreases, inventory.Line{TicketOptionID: optID, Quantity: delta})
		}
	}

	if len(increases) > 0 {
		if err := s.allocator.Reserve(ctx, increases); err != nil {
			return nil, err
		}
	}
	if len(decreases) > 0 {
		if err := s.allocator.Release(ctx, decreases); err != nil {
			if len(increases) > 0 {
				if relErr := s.allocator.Release(ctx, increases); relErr != nil {
					s.log.ErrorWithContext(ctx, "failed to roll back reserve after release failure", relErr, map[string]interface{}{
						"reservation_id": id.String(),
					})
				}
			}
			return nil, err
		}
	}

	total := totalOf(append(append([]ReservationItem{}, newItems...), loyalty...))

	if err := s.repo.ReplaceItems(ctx, id, newItems, total); err != nil {
		// Put the counters back where they were; the reservation still
		// holds its old items.
		if len(increases) > 0 {
			if relErr := s.allocator.Release(ctx, increases); relErr != nil {
				s.log.ErrorWithContext(ctx, "failed to roll back reserve after item update failure", relErr, map[string]interface{}{
					"reservation_id": id.String(),
				})
			}
		}
		if len(decreases) > 0 {
			if resErr := s.allocator.Reserve(ctx, decreases); resErr != nil {
				s.log.ErrorWithContext(ctx, "failed to re-reserve after item update failure", resErr, map[string]interface{}{
					"reservation_id": id.String(),
				})
			}
		}
		return nil, err
	}

	return s.GetReservation(ctx, id)
}

// DeleteReservation soft-deletes a terminal reservation. Pending
// reservations still hold inventory and must be cancelled first.
func (s *service) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	reservation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !reservation.Status.IsTerminal() {
		return apperrors.InvalidState("cannot delete a %s reservation", reservation.Status)
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *service) checkEventOpen(event *events.Event) error {
	if event.Status != events.StatusScheduled {
		return apperrors.InvalidState("cannot reserve for event in %s state", event.Status)
	}
	if !event.EndDateTime.After(s.clk.Now()) {
		return apperrors.InvalidState("event %q has already ended", event.Title)
	}
	return nil
}

// applyLoyalty makes one unit of the first line free: the line loses one
// paid unit and a zero-price item takes its place, so the customer holds
// the same number of seats but pays for one fewer.
func applyLoyalty(items []ReservationItem) []ReservationItem {
	free := ReservationItem{
		TicketOptionID: items[0].TicketOptionID,
		Quantity:       1,
		UnitPrice:      0,
		Loyalty:        true,
	}
	items[0].Quantity--
	if items[0].Quantity == 0 {
		items = items[1:]
	}
	return append(items, free)
}

// buildLines validates the requested items against the event's ticket
// options and returns both the allocator lines and the priced reservation
// items, with unit prices snapshotted from the catalog.
func buildLines(event *events.Event, reqs []ReservationItemRequest) ([]inventory.Line, []ReservationItem, error) {
	if len(reqs) == 0 {
		return nil, nil, apperrors.Validation("at least one line item is required")
	}

	options := make(map[uuid.UUID]*events.TicketOption, len(event.TicketOptions))
	for i := range event.TicketOptions {
		options[event.TicketOptions[i].ID] = &event.TicketOptions[i]
	}

	merged := make(map[uuid.UUID]int, len(reqs))
	order := make([]uuid.UUID, 0, len(reqs))
	for _, req := range reqs {
		optID, err := uuid.Parse(req.TicketOptionID)
		if err != nil {
			return nil, nil, apperrors.Validation("invalid ticket option id: %s", req.TicketOptionID)
		}
		if req.Quantity < 1 {
			return nil, nil, apperrors.Validation("quantity must be positive for ticket option %s", optID)
		}
		if _, ok := options[optID]; !ok {
			return nil, nil, apperrors.NotFound("ticket option %s does not belong to event %s", optID, event.ID)
		}
		if _, seen := merged[optID]; !seen {
			order = append(order, optID)
		}
		merged[optID] += req.Quantity
	}

	lines := make([]inventory.Line, 0, len(order))
	items := make([]ReservationItem, 0, len(order))
	for _, optID := range order {
		lines = append(lines, inventory.Line{TicketOptionID: optID, Quantity: merged[optID]})
		items = append(items, ReservationItem{
			TicketOptionID: optID,
			Quantity:       merged[optID],
			UnitPrice:      options[optID].Price,
		})
	}
	return lines, items, nil
}

func heldLines(items []ReservationItem) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{TicketOptionID: item.TicketOptionID, Quantity: item.Quantity})
	}
	return lines
}

func totalOf(items []ReservationItem) float64 {
	priced := make([]pricing.Item, 0, len(items))
	for _, item := range items {
		priced = append(priced, pricing.Item{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return pricing.Total(priced)
}

func toResponses(reservations []Reservation) []ReservationResponse {
	responses := make([]ReservationResponse, 0, len(reservations))
	for i := range reservations {
		responses = append(responses, reservations[i].ToResponse())
	}
	return responses
}
