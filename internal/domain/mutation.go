package domain

import "time"

// MutationOp describes what a committed table mutation did.
type MutationOp string

// MutationOp values recorded in the change ledger.
const (
	MutationInsert  MutationOp = "insert"
	MutationUpdate  MutationOp = "update"
	MutationReorder MutationOp = "reorder"
	MutationRemove  MutationOp = "remove"
	// MutationImport upserts Records and then applies Order in one step.
	MutationImport  MutationOp = "import"
)

// ActorType identifies who made a change.
type ActorType string

// ActorType values.
const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAgent  ActorType = "agent"
	ActorTypeSystem ActorType = "system"
)

// Mutation is the persistence description of one committed store change.
// Records carries the post-mutation state of inserted or updated rows and
// Order the full canonical order after the change.
type Mutation struct {
	ID         string
	Op         MutationOp
	RecordIDs  []int
	Fields     []Field
	Records    []Record
	Order      []int
	ActorID    string
	ActorType  ActorType
	OccurredAt time.Time
}

// ChangeEvent is one persisted entry of the mutation ledger.
type ChangeEvent struct {
	Seq        int64
	MutationID string
	Op         MutationOp
	RecordIDs  []int
	Fields     []Field
	ActorID    string
	ActorType  ActorType
	OccurredAt time.Time
}
