package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Notifier is the capability interface for user-facing notifications (push,
// email). The service runs fine without a backing provider; callers never
// check for nil.
type Notifier interface {
	MigrationCompleted(ctx context.Context, userID uuid.UUID, imported, failed int)
}

// New returns a no-op notifier unless a provider is configured. Only the
// logging provider ships in this repository; push and email backends plug in
// here when their credentials are present.
func New(provider string) Notifier {
	if provider == "log" {
		return logNotifier{}
	}

	return noop{}
}

type noop struct{}

func (noop) MigrationCompleted(context.Context, uuid.UUID, int, int) {}

type logNotifier struct{}

func (logNotifier) MigrationCompleted(_ context.Context, userID uuid.UUID, imported, failed int) {
	slog.Info("migration completed", "user_id", userID, "imported", imported, "failed", failed)
}
