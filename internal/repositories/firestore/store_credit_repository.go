package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	pfirestore "github.com/core2cover/api/internal/platform/firestore"
)

// StoreCreditRepository reads balances. Writes happen inside order and refund transactions.
type StoreCreditRepository struct {
	credits *pfirestore.Collection[domain.StoreCreditAccount]
}

// NewStoreCreditRepository constructs a Firestore-backed store credit repository.
func NewStoreCreditRepository(provider *pfirestore.Provider) (*StoreCreditRepository, error) {
	if provider == nil {
		return nil, errors.New("store credit repository requires firestore provider")
	}
	return &StoreCreditRepository{credits: newStoreCreditCollection(provider)}, nil
}

func newStoreCreditCollection(provider *pfirestore.Provider) *pfirestore.Collection[domain.StoreCreditAccount] {
	encode := func(account domain.StoreCreditAccount) (any, error) {
		return storeCreditDocument{Balance: amount(account.Balance), UpdatedAt: storedTime(account.UpdatedAt)}, nil
	}
	decode := func(snap *firestore.DocumentSnapshot) (domain.StoreCreditAccount, error) {
		var doc storeCreditDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.StoreCreditAccount{}, err
		}
		return domain.StoreCreditAccount{CustomerID: snap.Ref.ID, Balance: parseAmount(doc.Balance), UpdatedAt: doc.UpdatedAt.UTC()}, nil
	}
	return pfirestore.NewCollection[domain.StoreCreditAccount](provider, storeCreditsCollection, encode, decode)
}

// Get returns the balance, treating a missing account as zero.
func (r *StoreCreditRepository) Get(ctx context.Context, customerID string) (domain.StoreCreditAccount, error) {
	if r == nil || r.credits == nil {
		return domain.StoreCreditAccount{}, errors.New("store credit repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	account, err := r.credits.Get(ctx, customerID)
	if pfirestore.IsNotFound(err) {
		return domain.StoreCreditAccount{CustomerID: customerID, Balance: decimal.Zero}, nil
	}
	return account, err
}

func readStoreCredit(tx *firestore.Transaction, credits *pfirestore.Collection[domain.StoreCreditAccount], ref *firestore.DocumentRef) (domain.StoreCreditAccount, error) {
	snap, err := tx.Get(ref)
	if pfirestore.IsNotFound(err) {
		return domain.StoreCreditAccount{CustomerID: ref.ID, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return domain.StoreCreditAccount{}, err
	}
	return credits.Decode(snap)
}
