package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/core2cover/api/internal/repositories"
)

var (
	// ErrStoreCreditInvalidInput indicates a missing customer id.
	ErrStoreCreditInvalidInput = errors.New("store credit: invalid input")
	// ErrStoreCreditUnavailable indicates persistence is currently unavailable.
	ErrStoreCreditUnavailable = errors.New("store credit: unavailable")
)

// StoreCreditServiceDeps bundles collaborators required by the store credit service.
type StoreCreditServiceDeps struct {
	StoreCredits repositories.StoreCreditRepository
}

type storeCreditService struct {
	credits repositories.StoreCreditRepository
}

// NewStoreCreditService constructs a read-only StoreCreditService. Balances change only inside
// the checkout and refund transactions.
func NewStoreCreditService(deps StoreCreditServiceDeps) (StoreCreditService, error) {
	if deps.StoreCredits == nil {
		return nil, errors.New("store credit service: repository is required")
	}
	return &storeCreditService{credits: deps.StoreCredits}, nil
}

func (s *storeCreditService) Balance(ctx context.Context, customerID string) (StoreCreditAccount, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return StoreCreditAccount{}, ErrStoreCreditInvalidInput
	}
	account, err := s.credits.Get(ctx, customerID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			return StoreCreditAccount{}, fmt.Errorf("%w: %v", ErrStoreCreditUnavailable, err)
		}
		return StoreCreditAccount{}, err
	}
	account.CustomerID = customerID
	account.Balance = account.Balance.Round(2)
	return account, nil
}
