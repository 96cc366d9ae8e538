package entity

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies one of the twelve entity kinds a user's dataset is made of.
type Type string

const (
	TypeClient             Type = "client"
	TypeIncome             Type = "income"
	TypeExpense            Type = "expense"
	TypeDebt               Type = "debt"
	TypeGoal               Type = "goal"
	TypeInvoice            Type = "invoice"
	TypeList               Type = "list"
	TypeTodo               Type = "todo"
	TypeSaving             Type = "saving"
	TypeSavingsTransaction Type = "savings_transaction"
	TypeOpeningBalance     Type = "opening_balance"
	TypeExpectedIncome     Type = "expected_income"
)

// All lists every entity type. The order matters for bulk deletion reports and
// mirrors the import order (referenced types before referencing ones).
var All = []Type{
	TypeList,
	TypeClient,
	TypeIncome,
	TypeExpense,
	TypeInvoice,
	TypeExpectedIncome,
	TypeDebt,
	TypeGoal,
	TypeTodo,
	TypeSaving,
	TypeSavingsTransaction,
	TypeOpeningBalance,
}

var collections = map[Type]string{
	TypeClient:             "clients",
	TypeIncome:             "income",
	TypeExpense:            "expenses",
	TypeDebt:               "debts",
	TypeGoal:               "goals",
	TypeInvoice:            "invoices",
	TypeList:               "lists",
	TypeTodo:               "todos",
	TypeSaving:             "savings",
	TypeSavingsTransaction: "savingsTransactions",
	TypeOpeningBalance:     "openingBalances",
	TypeExpectedIncome:     "expectedIncome",
}

// Collection returns the pluralized name used as the JSON key for this type in
// export payloads and local snapshots.
func (t Type) Collection() string {
	return collections[t]
}

// TypeForCollection resolves a payload key back to its entity type.
func TypeForCollection(name string) (Type, bool) {
	for t, c := range collections {
		if c == name {
			return t, true
		}
	}

	return "", false
}

// PaymentMethod values accepted on Income records.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentCheck    = "check"
	PaymentOther    = "other"
)

// Period values accepted on Goals, OpeningBalances and ExpectedIncome.
const (
	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodYearly    = "yearly"
)

// SavingsTransaction types.
const (
	TxDeposit     = "deposit"
	TxWithdrawal  = "withdrawal"
	TxValueUpdate = "value_update"
)

// Record is one document owned by exactly one user. Data holds the
// JSON-shaped entity body; identity and timestamps live outside it.
type Record struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"userId"`
	Type      Type           `json:"type"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the record. Nested maps and slices inside Data
// are copied recursively so mutations of the clone never leak back.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	c := *r
	c.Data = cloneMap(r.Data)

	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return cloneMap(vv)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = cloneValue(e)
		}

		return out
	default:
		return v
	}
}
