package reservations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/clock"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/customers"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/events"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/inventory"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/apperrors"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeLedgerRepo struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*Reservation
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{reservations: make(map[uuid.UUID]*Reservation)}
}

func (f *fakeLedgerRepo) Create(ctx context.Context, r *Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	for i := range r.Items {
		r.Items[i].ID = uuid.New()
		r.Items[i].ReservationID = r.ID
	}
	f.reservations[r.ID] = copyReservation(r)
	return nil
}

func (f *fakeLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || !r.Active {
		return nil, apperrors.NotFound("reservation not found with id: %s", id)
	}
	return copyReservation(r), nil
}

func (f *fakeLedgerRepo) List(ctx context.Context) ([]Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Reservation
	for _, r := range f.reservations {
		if r.Active {
			out = append(out, *copyReservation(r))
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Reservation
	for _, r := range f.reservations {
		if r.Active && r.CustomerID == customerID {
			out = append(out, *copyReservation(r))
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, attendedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || !r.Active || r.Status != StatusPending {
		return apperrors.InvalidTransition("reservation %s is not pending", id)
	}
	r.Status = StatusPaid
	r.PaidAt = &paidAt
	if attendedBy != "" {
		r.AttendedBy = attendedBy
	}
	return nil
}

func (f *fakeLedgerRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || !r.Active || r.Status != from {
		return apperrors.InvalidTransition("reservation %s is not %s", id, from)
	}
	r.Status = to
	return nil
}

func (f *fakeLedgerRepo) ReplaceItems(ctx context.Context, reservationID uuid.UUID, items []ReservationItem, total float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[reservationID]
	if !ok {
		return apperrors.NotFound("reservation not found with id: %s", reservationID)
	}
	var kept []ReservationItem
	for _, item := range r.Items {
		if item.Loyalty {
			kept = append(kept, item)
		}
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].ReservationID = reservationID
	}
	r.Items = append(items, kept...)
	r.Total = total
	return nil
}

func (f *fakeLedgerRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || !r.Active {
		return apperrors.NotFound("reservation not found with id: %s", id)
	}
	r.Active = false
	return nil
}

// failingReplaceRepo simulates a store fault on the item swap.
type failingReplaceRepo struct {
	*fakeLedgerRepo
}

func (f *failingReplaceRepo) ReplaceItems(ctx context.Context, reservationID uuid.UUID, items []ReservationItem, total float64) error {
	return apperrors.Unavailable(errors.New("connection reset"), "failed to update reservation items")
}

// contestedCancelRepo simulates losing the cancel race to another writer.
type contestedCancelRepo struct {
	*fakeLedgerRepo
}

func (f *contestedCancelRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	return apperrors.InvalidTransition("reservation %s is not %s", id, from)
}

func copyReservation(r *Reservation) *Reservation {
	dup := *r
	dup.Items = append([]ReservationItem(nil), r.Items...)
	return &dup
}

type fakeCatalog struct {
	mu     sync.Mutex
	events map[uuid.UUID]*events.Event
}

func (f *fakeCatalog) GetEventRecord(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return nil, apperrors.NotFound("event not found with id: %s", id)
	}
	dup := *event
	dup.TicketOptions = append([]events.TicketOption(nil), event.TicketOptions...)
	return &dup, nil
}

type fakeDirectory struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*customers.Customer
}

func (f *fakeDirectory) GetCustomerRecord(ctx context.Context, id uuid.UUID) (*customers.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	customer, ok := f.customers[id]
	if !ok || !customer.Active {
		return nil, apperrors.NotFound("customer not found with id: %s", id)
	}
	dup := *customer
	return &dup, nil
}

func (f *fakeDirectory) ConsumeLoyaltyCredit(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	customer, ok := f.customers[id]
	if !ok || !customer.Active || !customer.LoyaltyFree {
		return false, nil
	}
	customer.LoyaltyFree = false
	return true, nil
}

// fakeAllocator mirrors the real allocator's contract: all-or-nothing
// batches, capacity checked under one lock, release clamped at zero.
type fakeAllocator struct {
	mu      sync.Mutex
	options map[uuid.UUID]*events.TicketOption
}

func (a *fakeAllocator) Reserve(ctx context.Context, lines []inventory.Line) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(lines) == 0 {
		return apperrors.Validation("at least one line item is required")
	}
	merged := make(map[uuid.UUID]int)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return apperrors.Validation("quantity must be positive for ticket option %s", line.TicketOptionID)
		}
		merged[line.TicketOptionID] += line.Quantity
	}
	for id, qty := range merged {
		opt, ok := a.options[id]
		if !ok {
			return apperrors.NotFound("ticket option not found with id: %s", id)
		}
		if !opt.IsReservable(qty) {
			return apperrors.InsufficientCapacity(
				"not enough tickets available for %q: requested %d, remaining %d",
				opt.Name, qty, opt.Remaining())
		}
	}
	for id, qty := range merged {
		a.options[id].Sold += qty
	}
	return nil
}

func (a *fakeAllocator) Release(ctx context.Context, lines []inventory.Line) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, line := range lines {
		opt, ok := a.options[line.TicketOptionID]
		if !ok {
			return apperrors.NotFound("ticket option not found with id: %s", line.TicketOptionID)
		}
		opt.Sold -= line.Quantity
		if opt.Sold < 0 {
			opt.Sold = 0
		}
	}
	return nil
}

func (a *fakeAllocator) sold(id uuid.UUID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.options[id].Sold
}

// --- fixture ---

var ledgerNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo      *fakeLedgerRepo
	catalog   *fakeCatalog
	directory *fakeDirectory
	alloc     *fakeAllocator
	svc       Service

	event    *events.Event
	general  uuid.UUID
	vip      uuid.UUID
	customer *customers.Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	event := &events.Event{
		ID:            uuid.New(),
		Title:         "Concert X",
		Type:          events.TypeConcert,
		StartDateTime: ledgerNow.Add(24 * time.Hour),
		EndDateTime:   ledgerNow.Add(27 * time.Hour),
		Status:        events.StatusScheduled,
		TicketOptions: []events.TicketOption{
			{ID: uuid.New(), Name: "General", Price: 50, Capacity: 100},
			{ID: uuid.New(), Name: "VIP", Price: 150, Capacity: 10},
		},
	}
	for i := range event.TicketOptions {
		event.TicketOptions[i].EventID = event.ID
	}

	customer := &customers.Customer{
		ID:        uuid.New(),
		FirstName: "Ada",
		LastName:  "Rivera",
		Email:     "ada@example.com",
		Active:    true,
	}

	catalog := &fakeCatalog{events: map[uuid.UUID]*events.Event{event.ID: event}}
	directory := &fakeDirectory{customers: map[uuid.UUID]*customers.Customer{customer.ID: customer}}
	alloc := &fakeAllocator{options: make(map[uuid.UUID]*events.TicketOption)}
	for i := range event.TicketOptions {
		alloc.options[event.TicketOptions[i].ID] = &event.TicketOptions[i]
	}

	repo := newFakeLedgerRepo()
	svc := NewService(repo, catalog, directory, alloc, clock.NewFixed(ledgerNow), logger.GetDefault())

	return &fixture{
		repo:      repo,
		catalog:   catalog,
		directory: directory,
		alloc:     alloc,
		svc:       svc,
		event:     event,
		general:   event.TicketOptions[0].ID,
		vip:       event.TicketOptions[1].ID,
		customer:  customer,
	}
}

func (f *fixture) createRequest(lines ...ReservationItemRequest) CreateReservationRequest {
	return CreateReservationRequest{
		CustomerID: f.customer.ID.String(),
		EventID:    f.event.ID.String(),
		Items:      lines,
	}
}

// --- tests ---

func TestCreateReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("snapshots prices and holds inventory", func(t *testing.T) {
		f := newFixture(t)

		resp, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 2},
			ReservationItemRequest{TicketOptionID: f.vip.String(), Quantity: 1},
		))
		require.NoError(t, err)

		assert.Equal(t, StatusPending, resp.Status)
		assert.InDelta(t, 250, resp.Total, 0.001)
		assert.Equal(t, "Ada Rivera", resp.AttendeeName)
		assert.Equal(t, 2, f.alloc.sold(f.general))
		assert.Equal(t, 1, f.alloc.sold(f.vip))
	})

	t.Run("merges duplicate lines for the same option", func(t *testing.T) {
		f := newFixture(t)

		resp, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 2},
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 3},
		))
		require.NoError(t, err)

		require.Len(t, resp.Items, 1)
		assert.Equal(t, 5, resp.Items[0].Quantity)
		assert.Equal(t, 5, f.alloc.sold(f.general))
	})

	t.Run("later price change never alters the total", func(t *testing.T) {
		f := newFixture(t)

		resp, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 2},
		))
		require.NoError(t, err)

		f.catalog.mu.Lock()
		f.event.TicketOptions[0].Price = 999
		f.catalog.mu.Unlock()

		reloaded, err := f.svc.GetReservation(ctx, uuid.MustParse(resp.ID))
		require.NoError(t, err)
		assert.InDelta(t, 100, reloaded.Total, 0.001)
		assert.InDelta(t, 50, reloaded.Items[0].UnitPrice, 0.001)
	})

	t.Run("unknown customer", func(t *testing.T) {
		f := newFixture(t)

		req := f.createRequest(ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 1})
		req.CustomerID = uuid.NewString()
		_, err := f.svc.CreateReservation(ctx, req)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture(t)

		req := f.createRequest(ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 1})
		req.EventID = uuid.NewString()
		_, err := f.svc.CreateReservation(ctx, req)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("cancelled event rejects new reservations", func(t *testing.T) {
		f := newFixture(t)
		f.event.Status = events.StatusCancelled

		_, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 1},
		))
		assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	})

	t.Run("ended event rejects new reservations", func(t *testing.T) {
		f := newFixture(t)
		f.event.EndDateTime = ledgerNow.Add(-time.Hour)

		_, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 1},
		))
		assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	})

	t.Run("option from another event", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: uuid.NewString(), Quantity: 1},
		))
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("insufficient capacity rejects the whole batch", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 1},
			ReservationItemRequest{TicketOptionID: f.vip.String(), Quantity: 11},
		))
		assert.Equal(t, apperrors.KindInsufficientCapacity, apperrors.KindOf(err))

		// Nothing partially applied.
		assert.Equal(t, 0, f.alloc.sold(f.general))
		assert.Equal(t, 0, f.alloc.sold(f.vip))
	})
}

func TestLoyaltyPerk(t *testing.T) {
	ctx := context.Background()

	t.Run("makes one purchased unit free", func(t *testing.T) {
		f := newFixture(t)
		f.customer.LoyaltyFree = true

		resp, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 2},
		))
		require.NoError(t, err)

		assert.True(t, resp.LoyaltyFree)
		require.Len(t, resp.Items, 2)
		paid, free := resp.Items[0], resp.Items[1]
		assert.Equal(t, 1, paid.Quantity)
		assert.InDelta(t, 50, paid.UnitPrice, 0.001)
		assert.True(t, free.Loyalty)
		assert.Equal(t, 1, free.Quantity)
		assert.Equal(t, 0.0, free.UnitPrice)

		// Two seats held, one of them paid. No extra seat is taken.
		assert.InDelta(t, 50, resp.Total, 0.001)
		assert.Equal(t, 2, f.alloc.sold(f.general))
		assert.False(t, f.directory.customers[f.customer.ID].LoyaltyFree)

		// Cancelling gives both units back.
		_, err = f.svc.Cancel(ctx, uuid.MustParse(resp.ID))
		require.NoError(t, err)
		assert.Equal(t, 0, f.alloc.sold(f.general))
	})

	t.Run("single ticket becomes fully free", func(t *testing.T) {
		f := newFixture(t)
		f.customer.LoyaltyFree = true

		resp, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.vip.String(), Quantity: 1},
		))
		require.NoError(t, err)

		require.Len(t, resp.Items, 1)
		assert.True(t, resp.Items[0].Loyalty)
		assert.Equal(t, 0.0, resp.Total)
		assert.Equal(t, 1, f.alloc.sold(f.vip))
	})

	t.Run("credit is spent only once", func(t *testing.T) {
		f := newFixture(t)
		f.customer.LoyaltyFree = true

		first, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 2},
		))
		require.NoError(t, err)
		assert.InDelta(t, 50, first.Total, 0.001)

		second, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 2},
		))
		require.NoError(t, err)
		assert.False(t, second.LoyaltyFree)
		assert.InDelta(t, 100, second.Total, 0.001)
	})
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()

	t.Run("pending to paid", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 1},
		))
		require.NoError(t, err)

		resp, err := f.svc.MarkPaid(ctx, uuid.MustParse(created.ID), MarkPaidRequest{AttendedBy: "Ada Rivera"})
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, resp.Status)
		require.NotNil(t, resp.PaidAt)
		assert.Equal(t, ledgerNow, *resp.PaidAt)
		assert.Equal(t, "Ada Rivera", resp.AttendedBy)
	})

	t.Run("paying twice is rejected", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 1},
		))
		require.NoError(t, err)
		id := uuid.MustParse(created.ID)

		_, err = f.svc.MarkPaid(ctx, id, MarkPaidRequest{})
		require.NoError(t, err)

		_, err = f.svc.MarkPaid(ctx, id, MarkPaidRequest{})
		assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	})

	t.Run("cancelled reservation cannot be paid", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 1},
		))
		require.NoError(t, err)
		id := uuid.MustParse(created.ID)

		_, err = f.svc.Cancel(ctx, id)
		require.NoError(t, err)

		_, err = f.svc.MarkPaid(ctx, id, MarkPaidRequest{})
		assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("releases held inventory exactly once", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 3},
		))
		require.NoError(t, err)
		id := uuid.MustParse(created.ID)
		require.Equal(t, 3, f.alloc.sold(f.general))

		resp, err := f.svc.Cancel(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, resp.Status)
		assert.Equal(t, 0, f.alloc.sold(f.general))

		// Second cancel is rejected by the transition guard and must not
		// release again.
		_, err = f.svc.Cancel(ctx, id)
		assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
		assert.Equal(t, 0, f.alloc.sold(f.general))
	})

	t.Run("lost race leaves the counters untouched", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 2},
		))
		require.NoError(t, err)
		id := uuid.MustParse(created.ID)

		contested := &contestedCancelRepo{f.repo}
		svc := NewService(contested, f.catalog, f.directory, f.alloc, clock.NewFixed(ledgerNow), logger.GetDefault())

		// The guarded status update loses to another writer; no release
		// may have happened.
		_, err = svc.Cancel(ctx, id)
		assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
		assert.Equal(t, 2, f.alloc.sold(f.general))

		reloaded, err := f.svc.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, reloaded.Status)
	})

	t.Run("paid reservation cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 2},
		))
		require.NoError(t, err)
		id := uuid.MustParse(created.ID)

		_, err = f.svc.MarkPaid(ctx, id, MarkPaidRequest{})
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, id)
		assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
		assert.Equal(t, 2, f.alloc.sold(f.general))
	})
}

func TestUpdateItems(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, uuid.UUID) {
		f := newFixture(t)
		created, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 2},
		))
		require.NoError(t, err)
		return f, uuid.MustParse(created.ID)
	}

	t.Run("reserves only the net increase", func(t *testing.T) {
		f, id := setup(t)

		resp, err := f.svc.UpdateItems(ctx, id, UpdateReservationItemsRequest{
			Items: []ReservationItemRequest{
				{TicketOptionID: f.general.String(), Quantity: 5},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 5, f.alloc.sold(f.general))
		assert.InDelta(t, 250, resp.Total, 0.001)
	})

	t.Run("releases only the net decrease", func(t *testing.T) {
		f, id := setup(t)

		resp, err := f.svc.UpdateItems(ctx, id, UpdateReservationItemsRequest{
			Items: []ReservationItemRequest{
				{TicketOptionID: f.general.String(), Quantity: 1},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, f.alloc.sold(f.general))
		assert.InDelta(t, 50, resp.Total, 0.001)
	})

	t.Run("keeps the original snapshot for held options", func(t *testing.T) {
		f, id := setup(t)

		f.catalog.mu.Lock()
		f.event.TicketOptions[0].Price = 80
		f.catalog.mu.Unlock()

		resp, err := f.svc.UpdateItems(ctx, id, UpdateReservationItemsRequest{
			Items: []ReservationItemRequest{
				{TicketOptionID: f.general.String(), Quantity: 3},
				{TicketOptionID: f.vip.String(), Quantity: 1},
			},
		})
		require.NoError(t, err)

		byOption := make(map[string]ReservationItemResponse)
		for _, item := range resp.Items {
			byOption[item.TicketOptionID] = item
		}
		// Held option keeps its 50 snapshot despite the live price of 80;
		// the net-new VIP line takes the live price.
		assert.InDelta(t, 50, byOption[f.general.String()].UnitPrice, 0.001)
		assert.InDelta(t, 150, byOption[f.vip.String()].UnitPrice, 0.001)
		assert.InDelta(t, 300, resp.Total, 0.001)
	})

	t.Run("rejected increase changes nothing", func(t *testing.T) {
		f, id := setup(t)

		_, err := f.svc.UpdateItems(ctx, id, UpdateReservationItemsRequest{
			Items: []ReservationItemRequest{
				{TicketOptionID: f.general.String(), Quantity: 2},
				{TicketOptionID: f.vip.String(), Quantity: 11},
			},
		})
		assert.Equal(t, apperrors.KindInsufficientCapacity, apperrors.KindOf(err))

		assert.Equal(t, 2, f.alloc.sold(f.general))
		assert.Equal(t, 0, f.alloc.sold(f.vip))

		reloaded, err := f.svc.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.InDelta(t, 100, reloaded.Total, 0.001)
		require.Len(t, reloaded.Items, 1)
		assert.Equal(t, 2, reloaded.Items[0].Quantity)
	})

	t.Run("failed write rolls the counters back", func(t *testing.T) {
		f, id := setup(t)

		failing := &failingReplaceRepo{f.repo}
		svc := NewService(failing, f.catalog, f.directory, f.alloc, clock.NewFixed(ledgerNow), logger.GetDefault())

		// A net increase that reserved +3 must be released again when
		// the item swap fails.
		_, err := svc.UpdateItems(ctx, id, UpdateReservationItemsRequest{
			Items: []ReservationItemRequest{
				{TicketOptionID: f.general.String(), Quantity: 5},
			},
		})
		assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))
		assert.Equal(t, 2, f.alloc.sold(f.general))

		// A net decrease that released -1 must be re-reserved.
		_, err = svc.UpdateItems(ctx, id, UpdateReservationItemsRequest{
			Items: []ReservationItemRequest{
				{TicketOptionID: f.general.String(), Quantity: 1},
			},
		})
		assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))
		assert.Equal(t, 2, f.alloc.sold(f.general))

		reloaded, err := f.svc.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.InDelta(t, 100, reloaded.Total, 0.001)
		require.Len(t, reloaded.Items, 1)
		assert.Equal(t, 2, reloaded.Items[0].Quantity)
	})

	t.Run("only pending reservations can be amended", func(t *testing.T) {
		f, id := setup(t)

		_, err := f.svc.MarkPaid(ctx, id, MarkPaidRequest{})
		require.NoError(t, err)

		_, err = f.svc.UpdateItems(ctx, id, UpdateReservationItemsRequest{
			Items: []ReservationItemRequest{
				{TicketOptionID: f.general.String(), Quantity: 1},
			},
		})
		assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	})
}

func TestDeleteReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("pending reservations cannot be deleted", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 1},
		))
		require.NoError(t, err)

		err = f.svc.DeleteReservation(ctx, uuid.MustParse(created.ID))
		assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	})

	t.Run("cancelled reservation disappears from listings", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: 1},
		))
		require.NoError(t, err)
		id := uuid.MustParse(created.ID)

		_, err = f.svc.Cancel(ctx, id)
		require.NoError(t, err)

		require.NoError(t, f.svc.DeleteReservation(ctx, id))

		_, err = f.svc.GetReservation(ctx, id)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

		list, err := f.svc.ListReservations(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

// Concurrent creates against a small option: exactly capacity many succeed
// and sold never exceeds capacity.
func TestConcurrentCreatesNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const capacity = 5
	const attempts = 20
	f.event.TicketOptions[1].Capacity = capacity

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateReservation(ctx, f.createRequest(
				ReservationItemRequest{TicketOptionID: f.vip.String(), Quantity: 1},
			))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.Equal(t, apperrors.KindInsufficientCapacity, apperrors.KindOf(err))
		rejected++
	}

	assert.Equal(t, capacity, succeeded)
	assert.Equal(t, attempts-capacity, rejected)
	assert.Equal(t, capacity, f.alloc.sold(f.vip))
}

// The end-to-end flow over a 3-seat option: a hold, a rejected oversell, a
// smaller hold that fits, and a cancel that frees the seats for reuse.
func TestSmallVenueFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.event.TicketOptions[0].Capacity = 3

	reserveB := func(qty int) (*ReservationResponse, error) {
		return f.svc.CreateReservation(ctx, f.createRequest(
			ReservationItemRequest{TicketOptionID: f.general.String(), Quantity: qty},
		))
	}

	// First customer holds two of the three seats.
	first, err := reserveB(2)
	require.NoError(t, err)
	assert.Equal(t, 2, f.alloc.sold(f.general))

	// Two more don't fit, one does.
	_, err = reserveB(2)
	assert.Equal(t, apperrors.KindInsufficientCapacity, apperrors.KindOf(err))

	_, err = reserveB(1)
	require.NoError(t, err)
	assert.Equal(t, 3, f.alloc.sold(f.general))

	// Cancelling the first hold frees its two seats for a new hold.
	_, err = f.svc.Cancel(ctx, uuid.MustParse(first.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, f.alloc.sold(f.general))

	_, err = reserveB(2)
	require.NoError(t, err)
	assert.Equal(t, 3, f.alloc.sold(f.general))
}
