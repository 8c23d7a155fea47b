// Package data provides market data loading for the simulation driver.
//
// A trading day is the unit of access: one file, one cache entry, one
// MarketDay. Missing or unusable days surface as ErrDataUnavailable so
// the driver can skip them without aborting the run.
package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// ErrDataUnavailable marks a trading day that cannot be simulated.
var ErrDataUnavailable = errors.New("market data unavailable")

// Loader supplies one trading day of market data at a time.
type Loader interface {
	Day(underlying string, date time.Time) (*types.MarketDay, error)
}

// FileStore loads trading days from per-day JSON files named
// <UNDERLYING>_<YYYY-MM-DD>.json under a data directory, caching each
// day after first load.
type FileStore struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	dataDir string
	cache   map[string]*types.MarketDay
}

// NewFileStore creates a store over the given data directory.
func NewFileStore(logger *zap.Logger, dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStore{
		logger:  logger,
		dataDir: dataDir,
		cache:   make(map[string]*types.MarketDay),
	}, nil
}

// Day implements Loader.
func (s *FileStore) Day(underlying string, date time.Time) (*types.MarketDay, error) {
	key := dayKey(underlying, date)

	s.mu.RLock()
	if day, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return day, nil
	}
	s.mu.RUnlock()

	raw, err := os.ReadFile(filepath.Join(s.dataDir, key+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no file for %s", ErrDataUnavailable, key)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	var day types.MarketDay
	if err := json.Unmarshal(raw, &day); err != nil {
		return nil, fmt.Errorf("%w: %s does not parse: %v", ErrDataUnavailable, key, err)
	}
	if day.Date.IsZero() {
		day.Date = date
	}
	sort.Slice(day.Bars, func(i, j int) bool {
		return day.Bars[i].Timestamp.Before(day.Bars[j].Timestamp)
	})
	if err := validateDay(&day); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, key, err)
	}
	if gaps := barGaps(day.Bars, time.Minute); gaps > 0 {
		s.logger.Warn("bar gaps in trading day",
			zap.String("day", key),
			zap.Int("gaps", gaps),
		)
	}

	s.mu.Lock()
	s.cache[key] = &day
	s.mu.Unlock()

	s.logger.Debug("trading day loaded",
		zap.String("day", key),
		zap.Int("bars", len(day.Bars)),
	)
	return &day, nil
}

// SaveDay writes a trading day to disk and primes the cache. Used by
// fixture tooling and tests.
func (s *FileStore) SaveDay(underlying string, day *types.MarketDay) error {
	key := dayKey(underlying, day.Date)

	raw, err := json.MarshalIndent(day, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := os.WriteFile(filepath.Join(s.dataDir, key+".json"), raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = day
	s.mu.Unlock()
	return nil
}

// ClearCache drops all cached days.
func (s *FileStore) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*types.MarketDay)
}

func dayKey(underlying string, date time.Time) string {
	return fmt.Sprintf("%s_%s", underlying, date.Format("2006-01-02"))
}

// validateDay rejects days the engine cannot simulate.
func validateDay(day *types.MarketDay) error {
	if len(day.Bars) == 0 {
		return errors.New("no bars")
	}
	for i := range day.Bars {
		b := &day.Bars[i]
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("non-positive price in bar %d", i)
		}
		if b.Low > b.High {
			return fmt.Errorf("bar %d has low %.2f above high %.2f", i, b.Low, b.High)
		}
		if i > 0 && day.Bars[i].Timestamp.Equal(day.Bars[i-1].Timestamp) {
			return fmt.Errorf("duplicate bar timestamp at %d", i)
		}
	}
	return nil
}

// barGaps counts intervals longer than the expected bar spacing.
func barGaps(bars []types.Bar, interval time.Duration) int {
	gaps := 0
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Sub(bars[i-1].Timestamp) > interval {
			gaps++
		}
	}
	return gaps
}

// MemStore is an in-memory Loader keyed by trading date. Days not added
// report ErrDataUnavailable, mirroring the file store.
type MemStore struct {
	days map[string]*types.MarketDay
}

// NewMemStore creates an empty in-memory loader.
func NewMemStore() *MemStore {
	return &MemStore{days: make(map[string]*types.MarketDay)}
}

// Add registers a trading day.
func (s *MemStore) Add(underlying string, day *types.MarketDay) {
	s.days[dayKey(underlying, day.Date)] = day
}

// Day implements Loader.
func (s *MemStore) Day(underlying string, date time.Time) (*types.MarketDay, error) {
	day, ok := s.days[dayKey(underlying, date)]
	if !ok {
		return nil, fmt.Errorf("%w: no day for %s", ErrDataUnavailable, dayKey(underlying, date))
	}
	return day, nil
}
