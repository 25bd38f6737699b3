package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/identity"
)

// AuditRecorder appends audit entries inside the caller's transaction, so an
// entry exists exactly when the change it describes was committed.
type AuditRecorder struct{}

// NewAuditRecorder creates an AuditRecorder
func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{}
}

// Record writes one entry through the transactional audit repository.
// The actor's role and username are stored alongside the details.
func (r *AuditRecorder) Record(
	ctx context.Context,
	repos TransactionalRepositories,
	actor identity.Actor,
	schoolID uuid.UUID,
	action audit.Action,
	entityType string,
	entityID uuid.UUID,
	details map[string]any,
) error {
	if details == nil {
		details = make(map[string]any, 2)
	}
	details["actor_role"] = string(actor.Role)
	if actor.Username != "" {
		details["actor"] = actor.Username
	}

	entry, err := audit.NewEntry(schoolID, actor.UserID, action, entityType, entityID, details)
	if err != nil {
		return err
	}
	if err := repos.Audit().Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry %s: %w", action, err)
	}
	return nil
}
