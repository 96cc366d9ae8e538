package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/syncer"
)

const dbTimeout = 5 * time.Second

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

// FormatDiff renders a conflict's field differences line by line, local value
// against remote value.
func FormatDiff(c syncer.ManualConflict) string {
	var b strings.Builder

	for _, field := range c.Diff.Changed {
		fmt.Fprintf(&b, "  %s: %v -> %v\n", field, fieldValue(c.Remote, field), fieldValue(c.Local, field))
	}

	for _, field := range c.Diff.LocalOnly {
		fmt.Fprintf(&b, "  %s: (remote unset) -> %v\n", field, fieldValue(c.Local, field))
	}

	for _, field := range c.Diff.RemoteOnly {
		fmt.Fprintf(&b, "  %s: %v -> (local unset)\n", field, fieldValue(c.Remote, field))
	}

	return b.String()
}

func fieldValue(rec *entity.Record, field string) any {
	if rec == nil || rec.Data == nil {
		return "<nil>"
	}

	v, ok := rec.Data[field]
	if !ok || v == nil {
		return "<nil>"
	}

	return v
}

// RecordLabel names a record for list display, preferring human fields.
func RecordLabel(rec *entity.Record) string {
	if rec == nil {
		return "?"
	}

	for _, key := range []string{"name", "title", "description", "invoiceNumber"} {
		if s := entity.String(rec.Data, key); s != "" {
			return s
		}
	}

	return rec.ID.String()[:8]
}
