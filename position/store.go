package position

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhbchain/riskengine/riskerr"
)

// Store holds positions keyed by id behind a single logical read-write
// lock (spec §4.3/§5): reads are lock-free with respect to each other,
// writes serialize. Health recomputation takes only a read lock here.
type Store struct {
	mu        sync.RWMutex
	positions map[uuid.UUID]*Position
	maxActive int
}

// NewStore constructs an empty Store. maxActive <= 0 means unbounded,
// otherwise Add rejects once that many active positions exist
// (max_concurrent_positions, spec §5).
func NewStore(maxActive int) *Store {
	return &Store{positions: make(map[uuid.UUID]*Position), maxActive: maxActive}
}

// Add inserts a new position, assigning an id if one was not supplied.
// Duplicate ids are rejected.
func (s *Store) Add(p Position) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, exists := s.positions[p.ID]; exists {
		return uuid.Nil, riskerr.New(riskerr.KindDuplicatePosition, "position id already exists", "position_id", p.ID.String())
	}
	if s.maxActive > 0 && s.countActiveLocked() >= s.maxActive {
		return uuid.Nil, riskerr.New(riskerr.KindTooManyPositions, "maximum concurrent positions exceeded")
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Active = true
	stored := p.Clone()
	s.positions[p.ID] = &stored
	return p.ID, nil
}

func (s *Store) countActiveLocked() int {
	n := 0
	for _, p := range s.positions {
		if p.Active {
			n++
		}
	}
	return n
}

// Update performs a full replacement of the mutable fields of an
// existing position (collateral/debt quantities, threshold, protocol).
// ID and CreatedAt are preserved.
func (s *Store) Update(p Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.positions[p.ID]
	if !ok {
		return riskerr.New(riskerr.KindPositionNotFound, "position not found", "position_id", p.ID.String())
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()
	p.Active = existing.Active
	stored := p.Clone()
	s.positions[p.ID] = &stored
	return nil
}

// Remove soft-deletes a position (Active=false) and returns the position
// as it stood before removal, per spec §3's lifecycle note that removed
// positions retain their id.
func (s *Store) Remove(id uuid.UUID) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.positions[id]
	if !ok {
		return Position{}, riskerr.New(riskerr.KindPositionNotFound, "position not found", "position_id", id.String())
	}
	before := existing.Clone()
	existing.Active = false
	existing.UpdatedAt = time.Now()
	return before, nil
}

// Get returns a snapshot of a single position by id.
func (s *Store) Get(id uuid.UUID) (Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	if !ok || !p.Active {
		return Position{}, riskerr.New(riskerr.KindPositionNotFound, "position not found", "position_id", id.String())
	}
	return p.Clone(), nil
}

// Snapshot returns a consistent point-in-time view of every active
// position.
func (s *Store) Snapshot() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		if p.Active {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Count returns the total number of positions tracked, active or not.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}
