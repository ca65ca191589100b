package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a preference key has no stored value
var ErrNotFound = errors.New("preference not found")

// MemoryStore is an in-memory implementation of the ProfileStore
// interface, used for tests and storage-free runs
type MemoryStore struct {
	mu              sync.RWMutex
	preferences     map[string]string
	profiles        map[string]*core.SenderProfile
	classifications []core.ClassificationRecord
	corrections     []core.CorrectionEvent
	logger          *zap.Logger
}

// NewMemoryStore creates a new in-memory profile store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		preferences: make(map[string]string),
		profiles:    make(map[string]*core.SenderProfile),
		logger:      logger,
	}
}

// GetPreference retrieves a stored preference value
func (s *MemoryStore) GetPreference(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.preferences[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// SetPreference stores a preference value
func (s *MemoryStore) SetPreference(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preferences[key] = value
	return nil
}

// GetProfile retrieves the profile for a sender, or nil if none exists
func (s *MemoryStore) GetProfile(_ context.Context, senderKey string) (*core.SenderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[senderKey]
	if !ok {
		return nil, nil
	}
	copied := *profile
	return &copied, nil
}

// UpsertProfile creates or updates a sender profile. The email counter
// is owned by IncrementEmailCount and left untouched.
func (s *MemoryStore) UpsertProfile(_ context.Context, profile *core.SenderProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *profile
	if existing, ok := s.profiles[profile.SenderKey]; ok {
		copied.EmailCount = existing.EmailCount
	}
	s.profiles[profile.SenderKey] = &copied
	return nil
}

// IncrementEmailCount atomically bumps a sender's email counter
func (s *MemoryStore) IncrementEmailCount(_ context.Context, senderKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[senderKey]
	if !ok {
		profile = &core.SenderProfile{
			SenderKey:  senderKey,
			Importance: 0.5,
		}
		s.profiles[senderKey] = profile
	}
	profile.EmailCount++
	profile.LastUpdated = time.Now()
	return nil
}

// AppendClassification appends one classification log row
func (s *MemoryStore) AppendClassification(_ context.Context, rec *core.ClassificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.classifications = append(s.classifications, *rec)
	return nil
}

// AppendCorrection appends one correction event
func (s *MemoryStore) AppendCorrection(_ context.Context, event *core.CorrectionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.corrections = append(s.corrections, *event)
	return nil
}

// QueryClassifications returns classification rows within [from, to)
func (s *MemoryStore) QueryClassifications(_ context.Context, from, to time.Time) ([]core.ClassificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.ClassificationRecord
	for _, rec := range s.classifications {
		if !rec.Timestamp.Before(from) && rec.Timestamp.Before(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// QueryCorrections returns correction events within [from, to),
// optionally restricted to one sender
func (s *MemoryStore) QueryCorrections(_ context.Context, sender string, from, to time.Time) ([]core.CorrectionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.CorrectionEvent
	for _, ev := range s.corrections {
		if sender != "" && ev.Sender != sender {
			continue
		}
		if !ev.Timestamp.Before(from) && ev.Timestamp.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}
