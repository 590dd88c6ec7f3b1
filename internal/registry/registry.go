// Package registry holds a directory node's local view of registrants: the
// publishers, subscribers, and (at most one) broker owned by this node's
// range of the ring, plus the topic index and readiness counters used to
// answer lookup and readiness queries.
package registry

import (
	"errors"
	"sort"
	"sync"

	"discofabric/internal/logger"
	"discofabric/internal/wire"
)

var (
	// ErrNameCollision is returned when an id already owns a record, in any role.
	ErrNameCollision = errors.New("name already exists")
	// ErrBrokerCollision is returned when a second broker tries to register.
	ErrBrokerCollision = errors.New("broker already exists")
	// ErrNotAllowed is returned by LookupAll in direct dissemination mode.
	ErrNotAllowed = errors.New("lookall not permitted in direct mode")
)

// Dissemination selects how LookupByTopic/LookupAll assemble their results.
type Dissemination byte

const (
	Direct Dissemination = iota
	Broker
)

// ParseDissemination converts config.ini's Dissemination.Strategy value.
func ParseDissemination(s string) (Dissemination, error) {
	switch s {
	case "Direct":
		return Direct, nil
	case "Broker":
		return Broker, nil
	default:
		return 0, errors.New("registry: unknown dissemination strategy " + s)
	}
}

// State is the per-node lifecycle: INITIALIZE -> CONFIGURE -> PENDING -> READY.
type State byte

const (
	StateInitialize State = iota
	StateConfigure
	StatePending
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitialize:
		return "INITIALIZE"
	case StateConfigure:
		return "CONFIGURE"
	case StatePending:
		return "PENDING"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// record is a single locally-owned registrant entry.
type record struct {
	role   wire.Role
	id     string
	addr   string
	port   int
	topics []string
}

// recordKey identifies a publisher/subscriber record by id alone: the
// NAME_COLLISION domain spans roles (scenario 5, spec.md §8 — a publisher
// "p1" and a later subscriber registration for the same id collide), so a
// given id owns at most one non-broker record regardless of role. The
// broker record is stored under brokerRecordKey, apart from these ids.
type recordKey string

// brokerRecordKey is the records-map key of the broker slot; the "broker:"
// prefix keeps it from colliding with a publisher or subscriber id.
func brokerRecordKey(id string) recordKey { return recordKey("broker:" + id) }

// Store is a single directory node's local registrant state: records keyed
// by id, a topic index for fast LookupByTopic scans, the broker slot,
// readiness counters, and the node's own lifecycle state.
//
// All mutation happens under mu, matching spec.md §5's single-writer
// discipline for the registry map and topic index.
type Store struct {
	mu sync.RWMutex

	logger        logger.Logger
	dissemination Dissemination

	records   map[recordKey]*record
	topics    map[string]map[recordKey]struct{}
	brokerID  string
	hasBroker bool

	expPub, expSub int
	curPub, curSub int
	pubSeen        map[string]struct{}
	subSeen        map[string]struct{}

	state State
}

// Option customizes Store construction.
type Option func(*Store)

// WithLogger attaches a structured logger to the store.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty store for the given dissemination strategy and
// expected publisher/subscriber totals.
func New(dissemination Dissemination, expPub, expSub int, opts ...Option) *Store {
	s := &Store{
		logger:        &logger.NopLogger{},
		dissemination: dissemination,
		records:       make(map[recordKey]*record),
		topics:        make(map[string]map[recordKey]struct{}),
		pubSeen:       make(map[string]struct{}),
		subSeen:       make(map[string]struct{}),
		expPub:        expPub,
		expSub:        expSub,
		state:         StateInitialize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Advance moves the node's lifecycle state forward. Callers invoke this at
// the points spec.md §4.4's state table names (manifest load, server bind);
// the READY transition is instead driven automatically by Register once the
// expected totals and broker slot (if required) are satisfied.
func (s *Store) Advance(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to > s.state {
		s.state = to
	}
}

// State returns the node's current lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Register inserts a registrant record under this node, enforcing the
// NAME_COLLISION / BROKER_COLLISION rules of spec.md §4.4. Callers (the
// router) are responsible for having already established that the
// record's key falls in this node's range_of.
func (s *Store) Register(role wire.Role, info wire.RegistrantInfo, topics []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role == wire.RoleBoth {
		if s.hasBroker {
			if s.brokerID == info.ID {
				return ErrNameCollision
			}
			return ErrBrokerCollision
		}
		s.insertLocked(brokerRecordKey(info.ID), role, info, topics)
		s.hasBroker = true
		s.brokerID = info.ID
		s.advanceReadinessLocked()
		return nil
	}

	rk := recordKey(info.ID)
	if _, exists := s.records[rk]; exists {
		return ErrNameCollision
	}
	s.insertLocked(rk, role, info, topics)

	switch role {
	case wire.RolePublisher:
		if _, seen := s.pubSeen[info.ID]; !seen {
			s.pubSeen[info.ID] = struct{}{}
			s.curPub++
		}
	case wire.RoleSubscriber:
		if _, seen := s.subSeen[info.ID]; !seen {
			s.subSeen[info.ID] = struct{}{}
			s.curSub++
		}
	}
	s.advanceReadinessLocked()
	return nil
}

func (s *Store) insertLocked(rk recordKey, role wire.Role, info wire.RegistrantInfo, topics []string) {
	rec := &record{role: role, id: info.ID, addr: info.Addr, port: info.Port, topics: topics}
	s.records[rk] = rec
	for _, topic := range topics {
		set, ok := s.topics[topic]
		if !ok {
			set = make(map[recordKey]struct{})
			s.topics[topic] = set
		}
		set[rk] = struct{}{}
	}
	s.logger.Debug("registry: record inserted",
		logger.F("role", role.String()),
		logger.F("id", info.ID),
		logger.F("topics", topics),
	)
}

func (s *Store) advanceReadinessLocked() {
	if s.state != StateReady && s.curPub >= s.expPub && s.curSub >= s.expSub && s.brokerFilledLocked() {
		s.state = StateReady
	}
}

func (s *Store) brokerFilledLocked() bool {
	if s.dissemination != Broker {
		return true
	}
	return s.hasBroker
}

// LocalReady reports whether this node's own view of the registry has
// reached readiness: its counters meet the expected totals and, in broker
// mode, the broker slot is filled locally.
func (s *Store) LocalReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateReady
}

// LookupByTopic scans the local topic index for registrants matching any
// of the given topics, applying the dissemination-strategy rule: in broker
// mode, the topic match is discarded and the broker's registrant info (if
// any) is the sole result.
func (s *Store) LookupByTopic(topics []string) []wire.RegistrantInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dissemination == Broker {
		if !s.hasBroker {
			return nil
		}
		rec := s.records[brokerRecordKey(s.brokerID)]
		return []wire.RegistrantInfo{{ID: rec.id, Addr: rec.addr, Port: rec.port}}
	}

	seen := make(map[recordKey]struct{})
	var out []wire.RegistrantInfo
	for _, topic := range topics {
		keys := make([]recordKey, 0, len(s.topics[topic]))
		for rk := range s.topics[topic] {
			keys = append(keys, rk)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, rk := range keys {
			if s.records[rk].role == wire.RoleBoth {
				continue
			}
			if _, dup := seen[rk]; dup {
				continue
			}
			seen[rk] = struct{}{}
			rec := s.records[rk]
			out = append(out, wire.RegistrantInfo{ID: rec.id, Addr: rec.addr, Port: rec.port})
		}
	}
	return out
}

// LookupAll enumerates every locally-owned publisher. Only valid in broker
// mode; callers in direct mode receive ErrNotAllowed.
func (s *Store) LookupAll() ([]wire.RegistrantInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dissemination != Broker {
		return nil, ErrNotAllowed
	}

	keys := make([]recordKey, 0, len(s.records))
	for rk, rec := range s.records {
		if rec.role == wire.RolePublisher {
			keys = append(keys, rk)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]wire.RegistrantInfo, 0, len(keys))
	for _, rk := range keys {
		rec := s.records[rk]
		out = append(out, wire.RegistrantInfo{ID: rec.id, Addr: rec.addr, Port: rec.port})
	}
	return out, nil
}

// DebugLog emits a structured snapshot of the store's contents.
func (s *Store) DebugLog() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.logger.Debug("registry snapshot",
		logger.F("state", s.state.String()),
		logger.F("records", len(s.records)),
		logger.F("topics", len(s.topics)),
		logger.F("cur_pub", s.curPub),
		logger.F("cur_sub", s.curSub),
		logger.F("exp_pub", s.expPub),
		logger.F("exp_sub", s.expSub),
		logger.F("broker_set", s.hasBroker),
	)
}
