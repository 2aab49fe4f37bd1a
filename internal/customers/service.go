package customers

import (
	"context"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/apperrors"

	"github.com/google/uuid"
)

// Service interface defines the contract for customer management
type Service interface {
	ListCustomers(ctx context.Context) ([]CustomerResponse, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*CustomerResponse, error)
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*CustomerResponse, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, req UpdateCustomerRequest) (*CustomerResponse, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error

	// Record-level reads for the reservation ledger
	GetCustomerRecord(ctx context.Context, id uuid.UUID) (*Customer, error)
	ConsumeLoyaltyCredit(ctx context.Context, id uuid.UUID) (bool, error)
}

type service struct {
	repo Repository
}

// NewService creates a new customer service instance
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListCustomers(ctx context.Context) ([]CustomerResponse, error) {
	customers, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]CustomerResponse, 0, len(customers))
	for i := range customers {
		responses = append(responses, customers[i].ToResponse())
	}
	return responses, nil
}

func (s *service) GetCustomer(ctx context.Context, id uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := customer.ToResponse()
	return &resp, nil
}

func (s *service) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*CustomerResponse, error) {
	// The unique index is authoritative; this pre-check just produces a
	// friendlier error for the common case.
	if existing, err := s.repo.GetByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, apperrors.Validation("a customer with email %s already exists", req.Email)
	}

	customer := &Customer{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		LoyaltyFree: false,
		Active:      true,
	}

	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, err
	}

	resp := customer.ToResponse()
	return &resp, nil
}

func (s *service) UpdateCustomer(ctx context.Context, id uuid.UUID, req UpdateCustomerRequest) (*CustomerResponse, error) {
	customer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != customer.Email {
		if existing, err := s.repo.GetByEmail(ctx, req.Email); err == nil && existing != nil {
			return nil, apperrors.Validation("a customer with email %s already exists", req.Email)
		}
	}

	customer.FirstName = req.FirstName
	customer.LastName = req.LastName
	customer.Email = req.Email
	if req.LoyaltyFree != nil {
		customer.LoyaltyFree = *req.LoyaltyFree
	}

	if err := s.repo.Update(ctx, customer); err != nil {
		return nil, err
	}

	resp := customer.ToResponse()
	return &resp, nil
}

func (s *service) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}

func (s *service) GetCustomerRecord(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ConsumeLoyaltyCredit(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.ConsumeLoyaltyCredit(ctx, id)
}
