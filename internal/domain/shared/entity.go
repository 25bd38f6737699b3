package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is anything in the ledger with a stable identity
type Entity interface {
	GetID() uuid.UUID
}

// BaseEntity carries identity and bookkeeping timestamps.
// Timestamps are UTC at microsecond precision, the resolution postgres
// keeps, so a reloaded entity compares equal to the one that was saved.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// Touch records a modification
func (e *BaseEntity) Touch() {
	e.UpdatedAt = ledgerNow()
}

// NewBaseEntity creates an entity with a fresh ID
func NewBaseEntity() BaseEntity {
	now := ledgerNow()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// RestoreBaseEntity rebuilds an entity loaded from storage
func RestoreBaseEntity(id uuid.UUID, createdAt, updatedAt time.Time) BaseEntity {
	return BaseEntity{
		ID:        id,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}
}

func ledgerNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
