package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/moneo-app/moneo/internal/entity"
)

// prepareFunc normalizes and remaps one payload row into the document body to
// persist. A returned error is recorded against the record and skips it; the
// batch continues.
type prepareFunc func(run *runState, row map[string]any) (map[string]any, error)

// afterFunc runs once a record has been created, with the stored record and
// the original payload row.
type afterFunc func(ctx context.Context, run *runState, rec *entity.Record, row map[string]any)

// importType drives one entity type through the shared per-record loop:
// prepare, create, extend the remap table, collect errors. Cancellation is
// honored between records only, so an interrupted run never leaves a
// half-written record.
func (im *Importer) importType(ctx context.Context, run *runState, typ entity.Type, prepare prepareFunc, after afterFunc) error {
	rows := run.payload[typ.Collection()]
	res := run.result.Details[typ.Collection()]

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import cancelled during %s: %w", typ.Collection(), err)
		}

		tid := transientID(row)

		data, err := prepare(run, cloneRow(row))
		if err != nil {
			res.Errors = append(res.Errors, RecordError{ID: tid, Error: err.Error()})
			continue
		}

		// The transient id is only meaningful inside this payload.
		delete(data, "id")

		rec := &entity.Record{UserID: run.userID, Type: typ, Data: data}

		if err := im.store.Create(ctx, rec); err != nil {
			res.Errors = append(res.Errors, RecordError{ID: tid, Error: err.Error()})
			continue
		}

		if tid != "" {
			run.remap.add(typ, tid, rec.ID)
		}

		res.Imported++

		if after != nil {
			after(ctx, run, rec, row)
		}
	}

	return nil
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}

	return out
}

func defaultListKey(userID uuid.UUID) string {
	return "default-list:" + userID.String()
}

// ensureDefaultList finds or lazily creates the user's "Default" list and
// caches its id for the rest of the run.
func (im *Importer) ensureDefaultList(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	if v, ok := im.cache.Get(defaultListKey(userID)); ok {
		return v.(uuid.UUID), nil
	}

	lists, err := im.store.FindByUser(ctx, userID, entity.TypeList)
	if err != nil {
		return uuid.Nil, fmt.Errorf("loading lists: %w", err)
	}

	for _, l := range lists {
		if entity.String(l.Data, "name") == "Default" {
			im.cache.Set(defaultListKey(userID), l.ID)
			return l.ID, nil
		}
	}

	rec := &entity.Record{
		UserID: userID,
		Type:   entity.TypeList,
		Data:   map[string]any{"name": "Default"},
	}

	if err := im.store.Create(ctx, rec); err != nil {
		return uuid.Nil, fmt.Errorf("creating default list: %w", err)
	}

	im.cache.Set(defaultListKey(userID), rec.ID)

	return rec.ID, nil
}

// importLists creates the Default list first, then imports the payload's
// lists. A payload list literally named "Default" is mapped onto the existing
// one instead of being duplicated.
func (im *Importer) importLists(ctx context.Context, run *runState) error {
	defaultID, err := im.ensureDefaultList(ctx, run.userID)
	if err != nil {
		return err
	}

	rows := run.payload[entity.TypeList.Collection()]
	res := run.result.Details[entity.TypeList.Collection()]

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import cancelled during lists: %w", err)
		}

		tid := transientID(row)

		if entity.String(row, "name") == "Default" {
			if tid != "" {
				run.remap.add(entity.TypeList, tid, defaultID)
			}

			res.Imported++

			continue
		}

		data := cloneRow(row)
		delete(data, "id")

		rec := &entity.Record{UserID: run.userID, Type: entity.TypeList, Data: data}

		if err := im.store.Create(ctx, rec); err != nil {
			res.Errors = append(res.Errors, RecordError{ID: tid, Error: err.Error()})
			continue
		}

		if tid != "" {
			run.remap.add(entity.TypeList, tid, rec.ID)
		}

		res.Imported++
	}

	return nil
}

func (im *Importer) importClients(ctx context.Context, run *runState) error {
	return im.importType(ctx, run, entity.TypeClient,
		func(_ *runState, row map[string]any) (map[string]any, error) {
			if entity.String(row, "name") == "" {
				return nil, fmt.Errorf("client name is required")
			}

			return row, nil
		}, nil)
}

func (im *Importer) importIncome(ctx context.Context, run *runState) error {
	return im.importType(ctx, run, entity.TypeIncome,
		func(run *runState, row map[string]any) (map[string]any, error) {
			normalizePaymentMethod(row)

			if err := resolveClient(run, row, false); err != nil {
				return nil, err
			}

			return row, nil
		}, nil)
}

func (im *Importer) importExpenses(ctx context.Context, run *runState) error {
	return im.importType(ctx, run, entity.TypeExpense,
		func(run *runState, row map[string]any) (map[string]any, error) {
			if err := resolveClient(run, row, false); err != nil {
				return nil, err
			}

			// Payload-local recurring references are patched in the
			// reconcile pass; until then the link is null.
			if entity.Has(row, "parentRecurringId") {
				row["parentRecurringId"] = nil
			}

			return row, nil
		},
		func(_ context.Context, run *runState, rec *entity.Record, row map[string]any) {
			if ref := refString(row["parentRecurringId"]); ref != "" {
				run.pendingRecurring = append(run.pendingRecurring, pendingRecurring{
					expenseID: rec.ID,
					parentRef: ref,
				})
			}
		})
}

func (im *Importer) importInvoices(ctx context.Context, run *runState) error {
	return im.importType(ctx, run, entity.TypeInvoice,
		func(run *runState, row map[string]any) (map[string]any, error) {
			if err := resolveClient(run, row, true); err != nil {
				return nil, err
			}

			// Invoice numbers are unique per user.
			if num := entity.String(row, "invoiceNumber"); num != "" {
				if run.dup("invoice:" + num) {
					return nil, fmt.Errorf("duplicate invoice number %q", num)
				}
			}

			return row, nil
		}, nil)
}

func (im *Importer) importExpectedIncome(ctx context.Context, run *runState) error {
	return im.importType(ctx, run, entity.TypeExpectedIncome,
		func(run *runState, row map[string]any) (map[string]any, error) {
			if err := resolveClient(run, row, true); err != nil {
				return nil, err
			}

			// One expectation per client and period.
			period := entity.String(row, "period")
			if run.dup("expectedIncome:" + entity.String(row, "clientId") + ":" + period) {
				return nil, fmt.Errorf("duplicate expected income for client in period %q", period)
			}

			return row, nil
		}, nil)
}

func (im *Importer) importDebts(ctx context.Context, run *runState) error {
	return im.importType(ctx, run, entity.TypeDebt,
		func(_ *runState, row map[string]any) (map[string]any, error) {
			return row, nil
		}, nil)
}

func (im *Importer) importGoals(ctx context.Context, run *runState) error {
	return im.importType(ctx, run, entity.TypeGoal,
		func(_ *runState, row map[string]any) (map[string]any, error) {
			normalizeGoal(row)
			return row, nil
		}, nil)
}

func (im *Importer) importTodos(ctx context.Context, run *runState) error {
	defaultID, err := im.ensureDefaultList(ctx, run.userID)
	if err != nil {
		return err
	}

	return im.importType(ctx, run, entity.TypeTodo,
		func(run *runState, row map[string]any) (map[string]any, error) {
			// A todo whose target list is missing falls back to Default.
			listID := defaultID
			if ref := refString(row["listId"]); ref != "" {
				if id, ok := run.remap.resolve(entity.TypeList, ref); ok {
					listID = id
				}
			}

			row["listId"] = listID.String()

			return row, nil
		}, nil)
}

func (im *Importer) importSavings(ctx context.Context, run *runState) error {
	return im.importType(ctx, run, entity.TypeSaving,
		func(_ *runState, row map[string]any) (map[string]any, error) {
			// currentAmount is derived; whatever the payload claims is
			// discarded and recomputed from the transaction history.
			initial, _ := entity.Decimal(row, "initialAmount")
			row["currentAmount"] = initial.InexactFloat64()

			return row, nil
		}, nil)
}

func (im *Importer) importSavingsTransactions(ctx context.Context, run *runState) error {
	return im.importType(ctx, run, entity.TypeSavingsTransaction,
		func(run *runState, row map[string]any) (map[string]any, error) {
			ref := refString(row["savingsId"])
			if ref == "" {
				return nil, fmt.Errorf("savings reference is required")
			}

			id, ok := run.remap.resolve(entity.TypeSaving, ref)
			if !ok {
				return nil, fmt.Errorf("savings reference %q not found in payload", ref)
			}

			row["savingsId"] = id.String()

			return row, nil
		},
		func(ctx context.Context, run *runState, rec *entity.Record, _ map[string]any) {
			savingID, err := uuid.Parse(entity.String(rec.Data, "savingsId"))
			if err != nil {
				return
			}

			if _, err := im.ledger.Apply(ctx, run.userID, savingID); err != nil {
				slog.Warn("failed to recompute saving balance",
					"user_id", run.userID,
					"saving_id", savingID,
					"error", err,
				)
			}
		})
}

func (im *Importer) importOpeningBalances(ctx context.Context, run *runState) error {
	return im.importType(ctx, run, entity.TypeOpeningBalance,
		func(run *runState, row map[string]any) (map[string]any, error) {
			normalizePeriodType(row)

			// One opening balance per period type and period.
			pt, period := entity.String(row, "periodType"), entity.String(row, "period")
			if run.dup("openingBalance:" + pt + ":" + period) {
				return nil, fmt.Errorf("duplicate opening balance for %s period %q", pt, period)
			}

			return row, nil
		}, nil)
}
