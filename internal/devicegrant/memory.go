package devicegrant

import (
	"context"
	"sync"
	"time"

	"github.com/oauthkit/devicegrant/internal/validation"
)

// MemoryStore implements Store with an in-process map. It honors the same
// conditional-update contract as the shared backends and is suitable for
// tests and single-process development, not for multi-instance
// deployments.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*Record // device code -> record
	userCodes map[string]string  // normalized user code -> device code
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*Record),
		userCodes: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.DeviceCode]; ok {
		return ErrDeviceCodeExists
	}

	norm := validation.NormalizeCode(rec.UserCode)
	if dc, ok := s.userCodes[norm]; ok {
		if prev := s.records[dc]; prev != nil &&
			(prev.Status == StatusPending || prev.Status == StatusApproved) {
			return ErrUserCodeExists
		}
	}

	cp := *rec
	s.records[rec.DeviceCode] = &cp
	s.userCodes[norm] = rec.DeviceCode
	return nil
}

func (s *MemoryStore) GetByDeviceCode(ctx context.Context, deviceCode string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[deviceCode]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) GetByUserCode(ctx context.Context, userCode string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dc, ok := s.userCodes[validation.NormalizeCode(userCode)]
	if !ok {
		return nil, nil
	}
	rec, ok := s.records[dc]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Approve(ctx context.Context, deviceCode, subject string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[deviceCode]
	if !ok || rec.Status != StatusPending {
		return ErrConflict
	}
	rec.Status = StatusApproved
	rec.ApprovedSubject = subject
	return nil
}

func (s *MemoryStore) Deny(ctx context.Context, deviceCode, subject string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[deviceCode]
	if !ok || rec.Status != StatusPending {
		return ErrConflict
	}
	rec.Status = StatusDenied
	return nil
}

func (s *MemoryStore) Transition(ctx context.Context, deviceCode string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[deviceCode]
	if !ok || rec.Status != from {
		return ErrConflict
	}
	rec.Status = to
	return nil
}

func (s *MemoryStore) RecordPoll(ctx context.Context, deviceCode string, at time.Time, interval int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[deviceCode]
	if !ok || rec.Status != StatusPending {
		return ErrConflict
	}
	t := at
	rec.LastPolledAt = &t
	if interval > rec.Interval {
		rec.Interval = interval
	}
	return nil
}

func (s *MemoryStore) DeleteExpiredBefore(ctx context.Context, t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for dc, rec := range s.records {
		if rec.ExpiresAt.Before(t) {
			delete(s.records, dc)
			norm := validation.NormalizeCode(rec.UserCode)
			if s.userCodes[norm] == dc {
				delete(s.userCodes, norm)
			}
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) CheckHealth(ctx context.Context) error { return nil }
