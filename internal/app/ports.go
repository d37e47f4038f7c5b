package app

import (
	"context"

	"github.com/hylla/sectboard/internal/domain"
)

// Persistence loads the initial table and durably records committed mutations.
type Persistence interface {
	LoadRecords(context.Context) ([]domain.Record, error)
	Persist(context.Context, domain.Mutation) error
}

// ChangeLog exposes the ledger of persisted mutations, newest first.
type ChangeLog interface {
	ListChangeEvents(context.Context, int) ([]domain.ChangeEvent, error)
}
