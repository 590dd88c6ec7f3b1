package ring

import (
	"fmt"
	"sync"

	"discofabric/internal/logger"
)

// fingerEntry is a single slot of the finger table. The table is built once
// at construction from the static manifest and never repaired at runtime
// (there is no join/leave/failure-recovery protocol), but reads still go
// through a lock so a Table can be shared safely across request goroutines.
type fingerEntry struct {
	mu   sync.RWMutex
	node Node
}

// Table is a node's view of the ring: its own identity, its immediate
// predecessor, and its Bits-sized finger table, computed once from the
// manifest that Load produced.
//
// Finger i points to the first node succeeding self.ID + 2^i (mod 2^Bits).
// Finger 0 is therefore always the node's immediate successor.
type Table struct {
	logger  logger.Logger
	self    Node
	members []Node // sorted by ID, full ring membership

	predecessor fingerEntry
	fingers     []*fingerEntry
}

// Option customizes Table construction.
type Option func(*Table)

// WithLogger attaches a structured logger to the table.
func WithLogger(l logger.Logger) Option {
	return func(t *Table) { t.logger = l }
}

// NewTable builds the finger table and predecessor pointer for self out of
// the given (sorted, deduplicated) ring membership.
func NewTable(self Node, members []Node, opts ...Option) (*Table, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("ring: cannot build table from empty membership")
	}

	t := &Table{
		self:    self,
		members: members,
		fingers: make([]*fingerEntry, Bits),
		logger:  &logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}

	for i := 0; i < Bits; i++ {
		start := FingerStart(self.ID, i)
		succ := t.successorOf(start)
		t.fingers[i] = &fingerEntry{node: succ}
	}

	pred := t.predecessorOf(self.ID)
	t.predecessor.node = pred

	t.logger.Debug("finger table built",
		logger.F("self", self.Name),
		logger.F("members", len(members)),
	)
	return t, nil
}

// successorOf returns the first member whose ID is >= from, wrapping around
// to the lowest member when none is. This is a pure scan over the static membership
// list (no dynamic routing needed to compute it: the full list is known).
func (t *Table) successorOf(from ID) Node {
	for _, m := range t.members {
		if m.ID.Cmp(from) >= 0 {
			return m
		}
	}
	return t.members[0]
}

// predecessorOf returns the member immediately preceding id on the ring.
func (t *Table) predecessorOf(id ID) Node {
	for i := len(t.members) - 1; i >= 0; i-- {
		if t.members[i].ID.Cmp(id) < 0 {
			return t.members[i]
		}
	}
	return t.members[len(t.members)-1]
}

// Self returns the node that owns this table.
func (t *Table) Self() Node { return t.self }

// Members returns the full, sorted ring membership.
func (t *Table) Members() []Node {
	out := make([]Node, len(t.members))
	copy(out, t.members)
	return out
}

// Successor returns finger 0, the node's immediate successor.
func (t *Table) Successor() Node {
	return t.Finger(0)
}

// Predecessor returns the node's immediate predecessor.
func (t *Table) Predecessor() Node {
	t.predecessor.mu.RLock()
	defer t.predecessor.mu.RUnlock()
	return t.predecessor.node
}

// Finger returns the i-th finger table entry.
func (t *Table) Finger(i int) Node {
	if i < 0 || i >= len(t.fingers) {
		t.logger.Warn("Finger: index out of range", logger.F("requested", i))
		return t.self
	}
	e := t.fingers[i]
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.node
}

// InRange reports whether key falls in the half-open interval this node is
// responsible for: (predecessor.ID, self.ID].
func (t *Table) InRange(key ID) bool {
	return key.Between(t.Predecessor().ID, t.self.ID)
}

// ClosestPrecedingFinger returns the finger table entry that most closely
// precedes key without passing it, searching from the highest-order finger
// down to finger 0 (the classic Chord routing step). If no finger qualifies,
// the node's own successor is returned so the caller forwards to it.
func (t *Table) ClosestPrecedingFinger(key ID) Node {
	for i := len(t.fingers) - 1; i >= 0; i-- {
		f := t.Finger(i)
		if f.ID.Between(t.self.ID, key) && !f.ID.Equal(key) {
			return f
		}
	}
	return t.Successor()
}

// DebugLog emits a single structured snapshot of the table's contents.
func (t *Table) DebugLog() {
	fingers := make([]map[string]any, 0, len(t.fingers))
	for i, e := range t.fingers {
		e.mu.RLock()
		n := e.node
		e.mu.RUnlock()
		fingers = append(fingers, map[string]any{"i": i, "node": n.Name, "id": n.ID.ToHexString()})
	}
	t.logger.Debug("finger table snapshot",
		logger.FNode("self", t.self),
		logger.FNode("predecessor", t.Predecessor()),
		logger.F("fingers", fingers),
	)
}
