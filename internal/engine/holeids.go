package engine

import (
	"sync/atomic"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/schema"
)

// HoleIDs allocates identities for new editor slots.
//
// Ids only ever increase, so a slot id is never reused within a catalog.
// Thread-safety: HoleIDs is safe for concurrent use.
type HoleIDs struct {
	last atomic.Int64
}

// NewHoleIDs creates an allocator whose first id is 1.
func NewHoleIDs() *HoleIDs {
	return &HoleIDs{}
}

// NewHoleIDsAt creates an allocator that resumes after start.
func NewHoleIDsAt(start dval.HoleID) *HoleIDs {
	h := &HoleIDs{}
	h.last.Store(int64(start))
	return h
}

// Next returns a fresh id.
func (h *HoleIDs) Next() dval.HoleID {
	return dval.HoleID(h.last.Add(1))
}

// Current returns the last id handed out without allocating.
func (h *HoleIDs) Current() dval.HoleID {
	return dval.HoleID(h.last.Load())
}

// MaxHoleID returns the largest slot id used anywhere in tables, including
// migration slots and targets.
func MaxHoleID(tables []schema.Table) dval.HoleID {
	var max dval.HoleID
	see := func(id dval.HoleID) {
		if id > max {
			max = id
		}
	}
	seeMigration := func(m schema.Migration) {
		see(m.Rollback.ID())
		see(m.Rollforward.ID())
		see(m.Target)
	}
	for _, t := range tables {
		for _, c := range t.Columns {
			see(c.Name.ID())
			see(c.Type.ID())
		}
		for _, m := range t.PastMigrations {
			seeMigration(m)
		}
		if t.ActiveMigration != nil {
			seeMigration(*t.ActiveMigration)
		}
	}
	return max
}

// Advance moves the allocator forward so that Next never returns id or
// anything below it.
func (h *HoleIDs) Advance(id dval.HoleID) {
	for {
		cur := h.last.Load()
		if int64(id) <= cur || h.last.CompareAndSwap(cur, int64(id)) {
			return
		}
	}
}
