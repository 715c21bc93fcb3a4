package verification

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists verification records.
type Store interface {
	Create(ctx context.Context, r *Record) error
	// FindRedeemable returns a record matching email, token and kind that is
	// neither used nor expired at now.
	FindRedeemable(ctx context.Context, email, token string, kind Kind, now time.Time) (*Record, error)
	// Latest returns the most recently created record for email and kind.
	Latest(ctx context.Context, email string, kind Kind) (*Record, error)
	// Consume marks record id used when token matches and the record is
	// neither used, expired nor exhausted at now. The check and the write
	// are one atomic step. Failures are ErrNotFound, ErrAlreadyUsed,
	// ErrExpired, ErrInvalidToken and ErrTooManyAttempts.
	Consume(ctx context.Context, id, token string, now time.Time) (*Record, error)
	// RecordFailure atomically adds one failed attempt to record id and
	// blocks it at the cap. An exhausted record returns ErrTooManyAttempts
	// unchanged.
	RecordFailure(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps records in process and drops them once they are older
// than the retention window.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*Record
	retention time.Duration
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store pruning records older than retention.
// now may be nil to use the wall clock.
func NewMemoryStore(retention time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		records:   make(map[string]*Record),
		retention: retention,
		now:       now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.records[r.ID] = r.clone()
	return nil
}

func (s *MemoryStore) FindRedeemable(ctx context.Context, email, token string, kind Kind, now time.Time) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	for _, r := range s.sortedLocked(email, kind) {
		if r.Redeemable(token, now) {
			return r.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Latest(ctx context.Context, email string, kind Kind) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	list := s.sortedLocked(email, kind)
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0].clone(), nil
}

func (s *MemoryStore) Consume(ctx context.Context, id, token string, now time.Time) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := r.consume(token, now); err != nil {
		return nil, err
	}
	return r.clone(), nil
}

func (s *MemoryStore) RecordFailure(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := r.fail(); err != nil {
		return nil, err
	}
	return r.clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; !ok {
		return ErrNotFound
	}
	s.records[r.ID] = r.clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// sortedLocked returns matching records newest first.
func (s *MemoryStore) sortedLocked(email string, kind Kind) []*Record {
	var out []*Record
	for _, r := range s.records {
		if r.Email == email && r.Kind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryStore) pruneLocked() {
	if s.retention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.retention)
	for id, r := range s.records {
		if r.CreatedAt.Before(cutoff) {
			delete(s.records, id)
		}
	}
}
