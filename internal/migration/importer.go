// Package migration implements the clean-slate bulk import pipeline: it
// replaces a user's entire remote dataset from a previously exported entity
// graph, remapping payload-local ids to canonical ids and recomputing derived
// values along the way.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/moneo-app/moneo/internal/cache"
	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/lock"
	"github.com/moneo-app/moneo/internal/notify"
	"github.com/moneo-app/moneo/internal/savings"
	"github.com/moneo-app/moneo/internal/store"
)

// State tracks the importer's progress through a run.
type State string

const (
	StateIdle        State = "IDLE"
	StateDeleting    State = "DELETING"
	StateImporting   State = "IMPORTING"
	StateReconciling State = "RECONCILING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// Payload is a decoded export: one JSON object keyed by pluralized entity
// names, each holding an array of records. Records may carry a transient `id`
// used only for cross-referencing inside the payload.
type Payload map[string][]map[string]any

// RecordError ties a failed record's transient id to what went wrong.
type RecordError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// TypeResult reports one entity type's import outcome.
type TypeResult struct {
	Imported int           `json:"imported"`
	Errors   []RecordError `json:"errors"`
}

// Result is the full import report.
type Result struct {
	Success bool                   `json:"success"`
	Summary Summary                `json:"summary"`
	Details map[string]*TypeResult `json:"details"`
	Deleted map[string]int         `json:"deleted"`
}

type Summary struct {
	Imported int `json:"imported"`
	Errors   int `json:"errors"`
}

// Importer orchestrates delete-then-reimport of a user's full entity graph.
// A single record's failure never aborts the batch; only systemic failures
// (store unreachable, cancelled context) do.
type Importer struct {
	store    store.EntityStore
	ledger   *savings.Ledger
	users    *lock.Keyed
	cache    *cache.Cache
	notifier notify.Notifier

	mu    sync.Mutex
	state State
}

func NewImporter(st store.EntityStore, ledger *savings.Ledger, users *lock.Keyed, c *cache.Cache, n notify.Notifier) *Importer {
	return &Importer{
		store:    st,
		ledger:   ledger,
		users:    users,
		cache:    c,
		notifier: n,
		state:    StateIdle,
	}
}

// State reports the most recent phase written by any run. One Importer serves
// every user, so runs for different users proceed concurrently and the value
// reflects whichever run wrote last.
func (im *Importer) State() State {
	im.mu.Lock()
	defer im.mu.Unlock()

	return im.state
}

func (im *Importer) setState(s State) {
	im.mu.Lock()
	im.state = s
	im.mu.Unlock()
}

// Run executes the full pipeline for one user. It holds the per-user lock for
// the whole run so ordinary writes cannot land between the delete and the
// import. A returned error is systemic; the Result still carries whatever
// counts were reached.
func (im *Importer) Run(ctx context.Context, userID uuid.UUID, payload Payload) (*Result, error) {
	if userID == uuid.Nil {
		im.setState(StateFailed)
		return nil, fmt.Errorf("migration requires an authenticated user")
	}

	if payload == nil {
		im.setState(StateFailed)
		return nil, fmt.Errorf("migration payload is empty")
	}

	unlock := im.users.Lock("user:" + userID.String())
	defer unlock()

	result := &Result{
		Details: make(map[string]*TypeResult, len(entity.All)),
		Deleted: make(map[string]int, len(entity.All)),
	}

	for _, typ := range entity.All {
		result.Details[typ.Collection()] = &TypeResult{Errors: []RecordError{}}
	}

	im.setState(StateDeleting)

	deleted, _, err := im.wipe(ctx, userID)
	if err != nil {
		im.setState(StateFailed)
		return result, fmt.Errorf("delete phase: %w", err)
	}

	result.Deleted = deleted

	im.setState(StateImporting)

	run := &runState{
		userID:  userID,
		payload: payload,
		remap:   newRemap(),
		result:  result,
		seen:    make(map[string]struct{}),
	}

	if err := im.importAll(ctx, run); err != nil {
		im.setState(StateFailed)
		im.finish(result)

		return result, err
	}

	im.setState(StateReconciling)
	im.reconcileRecurring(ctx, run)

	im.setState(StateDone)
	im.finish(result)

	result.Success = true

	im.notifier.MigrationCompleted(ctx, userID, result.Summary.Imported, result.Summary.Errors)
	slog.Info("migration finished",
		"user_id", userID,
		"imported", result.Summary.Imported,
		"errors", result.Summary.Errors,
	)

	return result, nil
}

func (im *Importer) finish(result *Result) {
	for _, tr := range result.Details {
		result.Summary.Imported += tr.Imported
		result.Summary.Errors += len(tr.Errors)
	}
}

// Wipe runs the delete phase alone: every record of all twelve types owned by
// the user is removed. Idempotent; an already-empty user yields zero counts.
func (im *Importer) Wipe(ctx context.Context, userID uuid.UUID) (map[string]int, int, error) {
	unlock := im.users.Lock("user:" + userID.String())
	defer unlock()

	return im.wipe(ctx, userID)
}

func (im *Importer) wipe(ctx context.Context, userID uuid.UUID) (map[string]int, int, error) {
	counts := make(map[string]int, len(entity.All))
	total := 0

	for _, typ := range entity.All {
		n, err := im.store.DeleteAllByUser(ctx, userID, typ)
		if err != nil {
			return counts, total, fmt.Errorf("deleting %s: %w", typ.Collection(), err)
		}

		counts[typ.Collection()] = n
		total += n
	}

	im.cache.Delete(defaultListKey(userID))

	return counts, total, nil
}

// runState carries the per-run tables through the import phases.
type runState struct {
	userID  uuid.UUID
	payload Payload
	remap   *remapTable
	result  *Result

	// composite uniqueness keys already imported this run
	seen map[string]struct{}

	// expenses whose parentRecurringId was a payload-local reference,
	// patched in the reconcile pass
	pendingRecurring []pendingRecurring
}

// dup records the key and reports whether it was already taken. Uniqueness
// only has to hold within one run: the delete phase empties the user's dataset
// before anything is imported.
func (r *runState) dup(key string) bool {
	if _, ok := r.seen[key]; ok {
		return true
	}

	r.seen[key] = struct{}{}

	return false
}

type pendingRecurring struct {
	expenseID uuid.UUID
	parentRef string
}

// importAll walks the types in dependency order: later types resolve foreign
// keys through the remap tables built by earlier ones.
func (im *Importer) importAll(ctx context.Context, run *runState) error {
	steps := []func(context.Context, *runState) error{
		im.importLists,
		im.importClients,
		im.importIncome,
		im.importExpenses,
		im.importInvoices,
		im.importExpectedIncome,
		im.importDebts,
		im.importGoals,
		im.importTodos,
		im.importSavings,
		im.importSavingsTransactions,
		im.importOpeningBalances,
	}

	for _, step := range steps {
		if err := step(ctx, run); err != nil {
			return err
		}
	}

	return nil
}

// reconcileRecurring is the second pass over expenses: payload-local
// parentRecurringId references are resolved through the expense remap table
// and patched onto the stored records. Best-effort per record -- a failed
// patch leaves the expense imported, just without its parent link.
func (im *Importer) reconcileRecurring(ctx context.Context, run *runState) {
	for _, p := range run.pendingRecurring {
		parentID, ok := run.remap.resolve(entity.TypeExpense, p.parentRef)
		if !ok {
			continue
		}

		patch := map[string]any{"parentRecurringId": parentID.String()}

		if _, err := im.store.Update(ctx, run.userID, entity.TypeExpense, p.expenseID, patch); err != nil {
			slog.Warn("failed to link recurring expense",
				"user_id", run.userID,
				"expense_id", p.expenseID,
				"error", err,
			)
		}
	}
}
