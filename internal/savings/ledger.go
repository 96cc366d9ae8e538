package savings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/lock"
	"github.com/moneo-app/moneo/internal/store"
)

// Recompute derives a saving's current balance by replaying its transaction
// history in date order, starting from the initial amount. It is a pure
// function of its inputs: replaying the same list always yields the same
// value.
func Recompute(saving *entity.Record, txs []*entity.Record) decimal.Decimal {
	amount, _ := entity.Decimal(saving.Data, "initialAmount")

	ordered := make([]*entity.Record, len(txs))
	copy(ordered, txs)

	// Stable sort so transactions on the same date keep their input order.
	sort.SliceStable(ordered, func(i, j int) bool {
		return txDate(ordered[i]).Before(txDate(ordered[j]))
	})

	for _, tx := range ordered {
		value, _ := entity.Decimal(tx.Data, "amount")

		switch entity.String(tx.Data, "type") {
		case entity.TxDeposit:
			amount = amount.Add(value)

		case entity.TxWithdrawal:
			amount = amount.Sub(value)

		case entity.TxValueUpdate:
			// An absolute replacement: quantity times unit price when both
			// are present, plain amount otherwise.
			q, qok := entity.Decimal(tx.Data, "quantity")
			p, pok := entity.Decimal(tx.Data, "pricePerUnit")

			if qok && pok {
				amount = q.Mul(p)
			} else {
				amount = value
			}
		}
	}

	return amount
}

func txDate(tx *entity.Record) time.Time {
	if t, ok := entity.Time(tx.Data, "date"); ok {
		return t
	}

	return tx.CreatedAt
}

// Ledger recomputes and persists saving balances. Runs per (user, saving)
// under a keyed lock: two concurrent recomputes for the same saving would
// otherwise interleave their read and write and leave a stale balance.
type Ledger struct {
	store store.EntityStore
	locks *lock.Keyed
}

func NewLedger(st store.EntityStore, locks *lock.Keyed) *Ledger {
	return &Ledger{store: st, locks: locks}
}

// Apply re-reads the saving's full current transaction set, recomputes the
// balance, and patches currentAmount. Reading the whole set rather than a
// delta keeps the balance correct under out-of-order edits and deletions.
// Must be called after every create, update or delete of a savings
// transaction.
func (l *Ledger) Apply(ctx context.Context, userID, savingID uuid.UUID) (decimal.Decimal, error) {
	unlock := l.locks.Lock(fmt.Sprintf("saving:%s:%s", userID, savingID))
	defer unlock()

	saving, err := l.store.FindOne(ctx, userID, entity.TypeSaving, savingID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading saving: %w", err)
	}

	all, err := l.store.FindByUser(ctx, userID, entity.TypeSavingsTransaction)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading savings transactions: %w", err)
	}

	var txs []*entity.Record

	for _, tx := range all {
		if entity.String(tx.Data, "savingsId") == savingID.String() {
			txs = append(txs, tx)
		}
	}

	amount := Recompute(saving, txs)

	patch := map[string]any{"currentAmount": amount.InexactFloat64()}
	if _, err := l.store.Update(ctx, userID, entity.TypeSaving, savingID, patch); err != nil {
		return decimal.Zero, fmt.Errorf("updating saving balance: %w", err)
	}

	return amount, nil
}
