package app

import (
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/hylla/sectboard/internal/domain"
)

// SaveHandle identifies one in-flight delayed save.
type SaveHandle struct {
	RecordID  int
	Token     string
	Edits     []domain.Edit
	StartedAt time.Time
}

// SaveTracker keeps at most one in-flight save per record. Starting a save
// supersedes the previous one for the same record, whose completion is then
// ignored.
type SaveTracker struct {
	mu       sync.Mutex
	idGen    IDGenerator
	clock    Clock
	inflight map[int]SaveHandle
}

// NewSaveTracker constructs an empty tracker.
func NewSaveTracker(idGen IDGenerator, clock Clock) *SaveTracker {
	if idGen == nil {
		var seq int
		idGen = func() string {
			seq++
			return strconv.Itoa(seq)
		}
	}
	if clock == nil {
		clock = time.Now
	}
	return &SaveTracker{idGen: idGen, clock: clock, inflight: map[int]SaveHandle{}}
}

// Begin registers a save for recordID and reports whether it superseded one.
func (t *SaveTracker) Begin(recordID int, edits ...domain.Edit) (SaveHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, superseded := t.inflight[recordID]
	h := SaveHandle{
		RecordID:  recordID,
		Token:     t.idGen(),
		Edits:     slices.Clone(edits),
		StartedAt: t.clock(),
	}
	t.inflight[recordID] = h
	return h, superseded
}

// Finish retires h. It returns false when h was superseded or cancelled, in
// which case its effect must not be applied.
func (t *SaveTracker) Finish(h SaveHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.inflight[h.RecordID]
	if !ok || current.Token != h.Token {
		return false
	}
	delete(t.inflight, h.RecordID)
	return true
}

// Cancel drops the in-flight save of a record.
func (t *SaveTracker) Cancel(recordID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[recordID]
	delete(t.inflight, recordID)
	return ok
}

// Pending reports whether a record has a save in flight.
func (t *SaveTracker) Pending(recordID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[recordID]
	return ok
}

// PendingIDs lists records with a save in flight in ascending order.
func (t *SaveTracker) PendingIDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int, 0, len(t.inflight))
	for id := range t.inflight {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
