// Package workedstore remembers, across sessions, how often each station has
// been worked. The WORKED command reads it back.
package workedstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"

	"qsotrainer/callsign"
	"qsotrainer/stats"
)

const (
	keyPrefix  = "call|"
	valueBytes = 16
)

var (
	keyLower = []byte(keyPrefix)
	keyUpper = []byte("call}")
)

// Entry is the worked history of one callsign.
type Entry struct {
	Call  string
	Count uint64
	Last  time.Time
}

// Store wraps a Pebble database keyed by normalized callsign.
// Values are a big-endian uint64 count followed by the last contact time in
// Unix milliseconds.
type Store struct {
	mu    sync.Mutex
	db    *pebble.DB
	cache *pebble.Cache
}

// Open opens or creates the store under dir.
func Open(dir string, cacheBytes int64) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("workedstore: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workedstore: ensure dir: %w", err)
	}
	opts := &pebble.Options{}
	if cacheBytes > 0 {
		opts.Cache = pebble.NewCache(cacheBytes)
	}
	level := pebble.LevelOptions{
		FilterPolicy: bloom.FilterPolicy(10),
		FilterType:   pebble.TableFilter,
	}
	opts.Levels = make([]pebble.LevelOptions, 7)
	for i := range opts.Levels {
		opts.Levels[i] = level
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		if opts.Cache != nil {
			opts.Cache.Unref()
		}
		return nil, fmt.Errorf("workedstore: open: %w", err)
	}
	return &Store{db: db, cache: opts.Cache}, nil
}

// Close releases Pebble resources.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
		s.db = nil
	}
	if s.cache != nil {
		s.cache.Unref()
		s.cache = nil
	}
	return err
}

func makeKey(call string) []byte {
	return []byte(keyPrefix + callsign.Normalize(call))
}

func encodeValue(count uint64, last time.Time) []byte {
	buf := make([]byte, valueBytes)
	binary.BigEndian.PutUint64(buf[:8], count)
	binary.BigEndian.PutUint64(buf[8:], uint64(last.UnixMilli()))
	return buf
}

func decodeValue(b []byte) (uint64, time.Time, bool) {
	if len(b) != valueBytes {
		return 0, time.Time{}, false
	}
	count := binary.BigEndian.Uint64(b[:8])
	last := time.UnixMilli(int64(binary.BigEndian.Uint64(b[8:]))).UTC()
	return count, last, true
}

// Lookup returns the history for call.
func (s *Store) Lookup(call string) (Entry, bool, error) {
	if s == nil || s.db == nil {
		return Entry{}, false, nil
	}
	norm := callsign.Normalize(call)
	if norm == "" {
		return Entry{}, false, nil
	}
	data, closer, err := s.db.Get(makeKey(norm))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("workedstore: get %s: %w", norm, err)
	}
	defer closer.Close()
	count, last, ok := decodeValue(data)
	if !ok {
		return Entry{}, false, fmt.Errorf("workedstore: corrupt value for %s", norm)
	}
	return Entry{Call: norm, Count: count, Last: last}, true, nil
}

// Count returns how many times call has been worked.
func (s *Store) Count(call string) uint64 {
	e, ok, err := s.Lookup(call)
	if err != nil || !ok {
		return 0
	}
	return e.Count
}

// Increment bumps the count for call and records at as the last contact.
func (s *Store) Increment(call string, at time.Time) (uint64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("workedstore: store is closed")
	}
	norm := callsign.Normalize(call)
	if norm == "" {
		return 0, errors.New("workedstore: empty callsign")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, _, err := s.Lookup(norm)
	if err != nil {
		return 0, err
	}
	next := prev.Count + 1
	if err := s.db.Set(makeKey(norm), encodeValue(next, at), pebble.Sync); err != nil {
		return 0, fmt.Errorf("workedstore: set %s: %w", norm, err)
	}
	return next, nil
}

// RecordQSO counts a logged contact under the station's real callsign.
func (s *Store) RecordQSO(rec stats.QSORecord) {
	if s == nil || rec.ExpectedCall == "" {
		return
	}
	if _, err := s.Increment(rec.ExpectedCall, rec.Time); err != nil {
		log.Printf("Worked store: %v", err)
	}
}

// Top returns up to n entries ordered by count, then callsign.
func (s *Store) Top(n int) ([]Entry, error) {
	if s == nil || s.db == nil || n <= 0 {
		return nil, nil
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: keyLower, UpperBound: keyUpper})
	if err != nil {
		return nil, fmt.Errorf("workedstore: iterate: %w", err)
	}
	defer iter.Close()
	var all []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		count, last, ok := decodeValue(iter.Value())
		if !ok {
			continue
		}
		all = append(all, Entry{
			Call:  strings.TrimPrefix(string(iter.Key()), keyPrefix),
			Count: count,
			Last:  last,
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("workedstore: iterate: %w", err)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Call < all[j].Call
	})
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}
