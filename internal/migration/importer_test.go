package migration_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneo-app/moneo/internal/cache"
	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/lock"
	"github.com/moneo-app/moneo/internal/migration"
	"github.com/moneo-app/moneo/internal/notify"
	"github.com/moneo-app/moneo/internal/savings"
	"github.com/moneo-app/moneo/internal/store/memstore"
)

func newImporter(st *memstore.Store) *migration.Importer {
	locks := lock.NewKeyed()
	ledger := savings.NewLedger(st, lock.NewKeyed())

	return migration.NewImporter(st, ledger, locks, cache.New(time.Minute), notify.New(""))
}

// fullPayload builds a payload exercising every type and every cross
// reference.
func fullPayload() migration.Payload {
	return migration.Payload{
		"lists": {
			{"id": "l1", "name": "Default"},
			{"id": "l2", "name": "Work"},
		},
		"clients": {
			{"id": "c1", "name": "Acme"},
			{"id": "c2", "name": "Globex"},
		},
		"income": {
			{"id": "i1", "description": "retainer", "amount": 1200.0, "clientId": "c1", "paymentMethod": "card"},
			{"id": "i2", "description": "one-off", "amount": 300.0, "clientId": "missing", "paymentMethod": "iou"},
		},
		"expenses": {
			{"id": "e1", "description": "rent", "amount": 900.0},
			{"id": "e2", "description": "rent feb", "amount": 900.0, "parentRecurringId": "e1"},
		},
		"invoices": {
			{"id": "inv1", "invoiceNumber": "2024-001", "clientId": "c1", "amount": 1200.0},
		},
		"expectedIncome": {
			{"id": "ei1", "clientId": "c2", "period": "2024-05", "amount": 500.0},
		},
		"debts": {
			{"id": "d1", "name": "car loan", "amount": 8000.0},
		},
		"goals": {
			{"id": "g1", "name": "vacation", "period": "yearly", "createdAt": "2024-06-15T00:00:00Z"},
		},
		"todos": {
			{"id": "t1", "title": "send invoice", "listId": "l2"},
			{"id": "t2", "title": "orphan", "listId": "gone"},
		},
		"savings": {
			{"id": "s1", "name": "emergency fund", "initialAmount": 0.0, "currentAmount": 9999.0},
		},
		"savingsTransactions": {
			{"id": "st1", "savingsId": "s1", "type": "deposit", "date": "2024-01-01", "amount": 100.0},
			{"id": "st2", "savingsId": "s1", "type": "withdrawal", "date": "2024-01-02", "amount": 30.0},
			{"id": "st3", "savingsId": "s1", "type": "value_update", "date": "2024-01-03", "quantity": 2.0, "pricePerUnit": 40.0},
		},
		"openingBalances": {
			{"id": "ob1", "periodType": "weekly", "period": "2024-01", "amount": 50.0},
		},
	}
}

func TestImporter_Run_FullGraph(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	im := newImporter(st)
	userID := uuid.New()

	result, err := im.Run(ctx, userID, fullPayload())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 19, result.Summary.Imported)
	assert.Equal(t, 0, result.Summary.Errors)

	t.Run("default list is reused, not duplicated", func(t *testing.T) {
		lists, err := st.FindByUser(ctx, userID, entity.TypeList)
		require.NoError(t, err)
		require.Len(t, lists, 2)

		names := map[string]int{}
		for _, l := range lists {
			names[entity.String(l.Data, "name")]++
		}

		assert.Equal(t, 1, names["Default"])
		assert.Equal(t, 1, names["Work"])
	})

	t.Run("optional client reference degrades to null", func(t *testing.T) {
		incomes, err := st.FindByUser(ctx, userID, entity.TypeIncome)
		require.NoError(t, err)
		require.Len(t, incomes, 2)

		for _, inc := range incomes {
			switch entity.String(inc.Data, "description") {
			case "retainer":
				// Resolved to the client's canonical id.
				ref := entity.String(inc.Data, "clientId")
				_, err := uuid.Parse(ref)
				assert.NoError(t, err)
				assert.Equal(t, "card", entity.String(inc.Data, "paymentMethod"))
			case "one-off":
				assert.Nil(t, inc.Data["clientId"])
				assert.Equal(t, entity.PaymentCash, entity.String(inc.Data, "paymentMethod"))
			}
		}
	})

	t.Run("forward recurring reference is patched in second pass", func(t *testing.T) {
		expenses, err := st.FindByUser(ctx, userID, entity.TypeExpense)
		require.NoError(t, err)
		require.Len(t, expenses, 2)

		var parent, child *entity.Record

		for _, e := range expenses {
			if entity.String(e.Data, "description") == "rent" {
				parent = e
			} else {
				child = e
			}
		}

		require.NotNil(t, parent)
		require.NotNil(t, child)
		assert.Equal(t, parent.ID.String(), entity.String(child.Data, "parentRecurringId"))
	})

	t.Run("goal periodValue is synthesized", func(t *testing.T) {
		goals, err := st.FindByUser(ctx, userID, entity.TypeGoal)
		require.NoError(t, err)
		require.Len(t, goals, 1)

		assert.Equal(t, "2024", entity.String(goals[0].Data, "periodValue"))
	})

	t.Run("todo with missing list falls back to default", func(t *testing.T) {
		todos, err := st.FindByUser(ctx, userID, entity.TypeTodo)
		require.NoError(t, err)

		lists, err := st.FindByUser(ctx, userID, entity.TypeList)
		require.NoError(t, err)

		var defaultID, workID string

		for _, l := range lists {
			if entity.String(l.Data, "name") == "Default" {
				defaultID = l.ID.String()
			} else {
				workID = l.ID.String()
			}
		}

		for _, todo := range todos {
			switch entity.String(todo.Data, "title") {
			case "send invoice":
				assert.Equal(t, workID, entity.String(todo.Data, "listId"))
			case "orphan":
				assert.Equal(t, defaultID, entity.String(todo.Data, "listId"))
			}
		}
	})

	t.Run("saving balance is recomputed from transactions", func(t *testing.T) {
		savs, err := st.FindByUser(ctx, userID, entity.TypeSaving)
		require.NoError(t, err)
		require.Len(t, savs, 1)

		current, ok := entity.Decimal(savs[0].Data, "currentAmount")
		require.True(t, ok)
		assert.True(t, current.Equal(decimal.NewFromInt(80)), "got %s", current)
	})

	t.Run("opening balance period type is normalized", func(t *testing.T) {
		obs, err := st.FindByUser(ctx, userID, entity.TypeOpeningBalance)
		require.NoError(t, err)
		require.Len(t, obs, 1)

		assert.Equal(t, entity.PeriodMonthly, entity.String(obs[0].Data, "periodType"))
	})
}

func TestImporter_Run_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	im := newImporter(st)
	userID := uuid.New()

	first, err := im.Run(ctx, userID, fullPayload())
	require.NoError(t, err)

	second, err := im.Run(ctx, userID, fullPayload())
	require.NoError(t, err)

	assert.Equal(t, first.Summary, second.Summary)

	for name, tr := range first.Details {
		assert.Equal(t, tr.Imported, second.Details[name].Imported, "type %s", name)
	}

	// And the store holds exactly one import's worth of data.
	for _, typ := range entity.All {
		recs, err := st.FindByUser(ctx, userID, typ)
		require.NoError(t, err)
		assert.Len(t, recs, second.Details[typ.Collection()].Imported, "type %s", typ)
	}
}

func TestImporter_Run_CleanSlate(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	im := newImporter(st)
	userID := uuid.New()

	// Leftovers from a previous failed run.
	leftover := &entity.Record{UserID: userID, Type: entity.TypeClient, Data: map[string]any{"name": "stale"}}
	require.NoError(t, st.Create(ctx, leftover))

	// Another user's data must survive untouched.
	otherUser := uuid.New()
	other := &entity.Record{UserID: otherUser, Type: entity.TypeClient, Data: map[string]any{"name": "keep"}}
	require.NoError(t, st.Create(ctx, other))

	result, err := im.Run(ctx, userID, migration.Payload{
		"clients": {{"id": "c1", "name": "Acme"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted["clients"])

	clients, err := st.FindByUser(ctx, userID, entity.TypeClient)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Acme", entity.String(clients[0].Data, "name"))

	kept, err := st.FindByUser(ctx, otherUser, entity.TypeClient)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "keep", entity.String(kept[0].Data, "name"))
}

func TestImporter_Run_PerRecordIsolation(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	im := newImporter(st)
	userID := uuid.New()

	// One of the two clients fails validation; the other must land.
	result, err := im.Run(ctx, userID, migration.Payload{
		"clients": {
			{"id": "c1", "name": "Acme"},
			{"id": "c2"},
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)

	details := result.Details["clients"]
	assert.Equal(t, 1, details.Imported)
	require.Len(t, details.Errors, 1)
	assert.Equal(t, "c2", details.Errors[0].ID)
	assert.NotEmpty(t, details.Errors[0].Error)

	clients, err := st.FindByUser(ctx, userID, entity.TypeClient)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Acme", entity.String(clients[0].Data, "name"))
}

func TestImporter_Run_RequiredReferencesSkipRecord(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	im := newImporter(st)
	userID := uuid.New()

	result, err := im.Run(ctx, userID, migration.Payload{
		"clients": {{"id": "c1", "name": "Acme"}},
		"invoices": {
			{"id": "inv1", "invoiceNumber": "2024-001", "clientId": "c1"},
			{"id": "inv2", "invoiceNumber": "2024-002", "clientId": "nope"},
		},
		"expectedIncome": {
			{"id": "ei1", "period": "2024-01"},
		},
		"savingsTransactions": {
			{"id": "st1", "savingsId": "ghost", "type": "deposit", "amount": 10.0},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Details["invoices"].Imported)
	require.Len(t, result.Details["invoices"].Errors, 1)
	assert.Equal(t, "inv2", result.Details["invoices"].Errors[0].ID)

	assert.Equal(t, 0, result.Details["expectedIncome"].Imported)
	require.Len(t, result.Details["expectedIncome"].Errors, 1)

	assert.Equal(t, 0, result.Details["savingsTransactions"].Imported)
	require.Len(t, result.Details["savingsTransactions"].Errors, 1)
	assert.Equal(t, "st1", result.Details["savingsTransactions"].Errors[0].ID)
}

func TestImporter_Run_StoreFailureIsIsolatedPerRecord(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.FailCreate = func(rec *entity.Record) error {
		if entity.String(rec.Data, "name") == "Globex" {
			return errors.New("write refused")
		}

		return nil
	}

	im := newImporter(st)

	result, err := im.Run(ctx, uuid.New(), migration.Payload{
		"clients": {
			{"id": "c1", "name": "Acme"},
			{"id": "c2", "name": "Globex"},
			{"id": "c3", "name": "Initech"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Details["clients"].Imported)
	require.Len(t, result.Details["clients"].Errors, 1)
	assert.Equal(t, "c2", result.Details["clients"].Errors[0].ID)
}

func TestImporter_Run_DuplicateNaturalKeys(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	im := newImporter(st)
	userID := uuid.New()

	result, err := im.Run(ctx, userID, migration.Payload{
		"clients": {
			{"id": "c1", "name": "Acme"},
			{"id": "c2", "name": "Globex"},
		},
		"invoices": {
			{"id": "inv1", "invoiceNumber": "2024-001", "clientId": "c1", "amount": 100.0},
			{"id": "inv2", "invoiceNumber": "2024-001", "clientId": "c2", "amount": 200.0},
			{"id": "inv3", "invoiceNumber": "2024-002", "clientId": "c1", "amount": 300.0},
		},
		"expectedIncome": {
			{"id": "ei1", "clientId": "c1", "period": "2024-05", "amount": 500.0},
			{"id": "ei2", "clientId": "c1", "period": "2024-05", "amount": 600.0},
			{"id": "ei3", "clientId": "c2", "period": "2024-05", "amount": 700.0},
		},
		"openingBalances": {
			{"id": "ob1", "periodType": "monthly", "period": "2024-01", "amount": 50.0},
			{"id": "ob2", "periodType": "monthly", "period": "2024-01", "amount": 60.0},
			{"id": "ob3", "periodType": "yearly", "period": "2024", "amount": 70.0},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Details["invoices"].Imported)
	require.Len(t, result.Details["invoices"].Errors, 1)
	assert.Equal(t, "inv2", result.Details["invoices"].Errors[0].ID)

	assert.Equal(t, 2, result.Details["expectedIncome"].Imported)
	require.Len(t, result.Details["expectedIncome"].Errors, 1)
	assert.Equal(t, "ei2", result.Details["expectedIncome"].Errors[0].ID)

	assert.Equal(t, 2, result.Details["openingBalances"].Imported)
	require.Len(t, result.Details["openingBalances"].Errors, 1)
	assert.Equal(t, "ob2", result.Details["openingBalances"].Errors[0].ID)
}

func TestImporter_Run_ConcurrentUsers(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	im := newImporter(st)

	const users = 8

	var wg sync.WaitGroup

	results := make([]*migration.Result, users)
	errs := make([]error, users)
	userIDs := make([]uuid.UUID, users)

	for i := 0; i < users; i++ {
		userIDs[i] = uuid.New()
	}

	for i := 0; i < users; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = im.Run(ctx, userIDs[i], fullPayload())
		}(i)
	}

	wg.Wait()

	for i := 0; i < users; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Success)
		assert.Equal(t, 19, results[i].Summary.Imported, "user %d", i)
	}

	// Each user's dataset is complete and isolated from the others.
	for i := 0; i < users; i++ {
		clients, err := st.FindByUser(ctx, userIDs[i], entity.TypeClient)
		require.NoError(t, err)
		assert.Len(t, clients, 2, "user %d", i)
	}

	assert.Equal(t, migration.StateDone, im.State())
}

func TestImporter_Run_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := memstore.New()
	im := newImporter(st)

	_, err := im.Run(ctx, uuid.New(), fullPayload())
	assert.Error(t, err)
}

func TestImporter_Run_Preconditions(t *testing.T) {
	im := newImporter(memstore.New())

	_, err := im.Run(context.Background(), uuid.Nil, migration.Payload{})
	assert.Error(t, err)

	_, err = im.Run(context.Background(), uuid.New(), nil)
	assert.Error(t, err)
}

func TestImporter_Wipe(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	im := newImporter(st)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, st.Create(ctx, &entity.Record{
			UserID: userID,
			Type:   entity.TypeClient,
			Data:   map[string]any{"name": fmt.Sprintf("c%d", i)},
		}))
	}

	require.NoError(t, st.Create(ctx, &entity.Record{
		UserID: userID,
		Type:   entity.TypeDebt,
		Data:   map[string]any{"name": "loan"},
	}))

	counts, total, err := im.Wipe(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, 3, counts["clients"])
	assert.Equal(t, 1, counts["debts"])
	assert.Equal(t, 4, total)

	// Wiping an already-empty user is a no-op with zero counts.
	counts, total, err = im.Wipe(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, counts["clients"])
}
