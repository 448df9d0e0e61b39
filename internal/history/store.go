// Package history keeps analysis records grouped by country and persists the whole
// structure through a key-value collaborator after every mutation.
package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"SiteAuditor/internal/domain"
	"SiteAuditor/internal/ports"
)

// DefaultKey is the persistence key holding the serialized history.
const DefaultKey = "history_by_country"

// Store is the single-writer aggregate of analysis records.
type Store struct {
	kv     ports.KeyValueStore
	key    string
	logger *slog.Logger

	mu   sync.RWMutex
	data domain.HistoryByCountry
	urls map[string]string // url -> record id
	home map[string]string // record id -> bucket
}

// NewStore builds an empty store bound to kv under key.
func NewStore(kv ports.KeyValueStore, key string, logger *slog.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{kv: kv, key: key, logger: logger}
	s.reset(domain.HistoryByCountry{})
	return s
}

// Open builds a store and loads the persisted snapshot once. A missing snapshot yields an empty store.
func Open(ctx context.Context, kv ports.KeyValueStore, key string, logger *slog.Logger) (*Store, error) {
	s := NewStore(kv, key, logger)
	if kv == nil {
		return s, nil
	}

	raw, ok, err := kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read history %q: %w", s.key, err)
	}
	if !ok {
		s.logger.Debug("no persisted history", "key", s.key)
		return s, nil
	}

	if err := s.Load(raw); err != nil {
		return nil, err
	}
	s.logger.Debug("history loaded", "key", s.key, "countries", len(s.data), "records", len(s.urls))
	return s, nil
}

// Load replaces the in-memory history with a serialized snapshot.
func (s *Store) Load(raw string) error {
	data, err := Decode(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(data)
	return nil
}

// Exists reports whether any record in any bucket has the url.
func (s *Store) Exists(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.urls[url]
	return ok
}

// Find returns the record with the id.
func (s *Store) Find(id string) (domain.AnalysisRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	country, ok := s.home[id]
	if !ok {
		return domain.AnalysisRecord{}, false
	}
	bucket := s.data[country]
	return bucket[indexOf(bucket, id)].Clone(), true
}

// Upsert prepends a new record to its country bucket or replaces an existing one in place,
// then persists the whole history. Memory changes only after the snapshot was written.
func (s *Store) Upsert(ctx context.Context, rec domain.AnalysisRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("upsert: record id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.apply(rec)
	if err != nil {
		return err
	}

	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.reset(next)
	return nil
}

// Persist writes the current history under the store key.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persist(ctx, s.data)
}

// Snapshot returns a deep copy of the history for display.
func (s *Store) Snapshot() domain.HistoryByCountry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(domain.HistoryByCountry, len(s.data))
	for country, bucket := range s.data {
		records := make([]domain.AnalysisRecord, len(bucket))
		for i, rec := range bucket {
			records[i] = rec.Clone()
		}
		out[country] = records
	}
	return out
}

// Countries returns bucket names in lexical order.
func (s *Store) Countries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	countries := make([]string, 0, len(s.data))
	for country := range s.data {
		countries = append(countries, country)
	}
	sort.Strings(countries)
	return countries
}

// apply computes the history after rec without touching s.data. Buckets are copied, never edited in place.
func (s *Store) apply(rec domain.AnalysisRecord) (domain.HistoryByCountry, error) {
	next := make(domain.HistoryByCountry, len(s.data)+1)
	for country, bucket := range s.data {
		next[country] = bucket
	}

	if country, ok := s.home[rec.ID]; ok {
		bucket := s.data[country]
		idx := indexOf(bucket, rec.ID)
		if err := rec.CanReplace(bucket[idx]); err != nil {
			return nil, err
		}
		replaced := append([]domain.AnalysisRecord(nil), bucket...)
		replaced[idx] = rec.Clone()
		next[country] = replaced
		return next, nil
	}

	if _, taken := s.urls[rec.URL]; taken {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateURL, rec.URL)
	}

	rec = rec.Clone()
	if rec.Country == "" {
		rec.Country = domain.UnknownCountry
	}
	bucket := s.data[rec.Country]
	grown := make([]domain.AnalysisRecord, 0, len(bucket)+1)
	grown = append(grown, rec)
	grown = append(grown, bucket...)
	next[rec.Country] = grown
	return next, nil
}

func (s *Store) persist(ctx context.Context, data domain.HistoryByCountry) error {
	if s.kv == nil {
		return nil
	}
	raw, err := Encode(data)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("persist history %q: %w", s.key, err)
	}
	return nil
}

func (s *Store) reset(data domain.HistoryByCountry) {
	s.data = data
	s.urls = make(map[string]string)
	s.home = make(map[string]string)
	for country, bucket := range data {
		for _, rec := range bucket {
			s.urls[rec.URL] = rec.ID
			s.home[rec.ID] = country
		}
	}
}

func indexOf(bucket []domain.AnalysisRecord, id string) int {
	for i := range bucket {
		if bucket[i].ID == id {
			return i
		}
	}
	return -1
}
