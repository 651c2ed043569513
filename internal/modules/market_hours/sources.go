package market_hours

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed announced_dates.yaml
var builtinAnnouncedDates []byte

// StaticSource is an in-memory table of announced dates keyed by year and rule ID
type StaticSource struct {
	mu    sync.RWMutex
	dates map[int]map[string][]time.Time
}

// NewStaticSource creates an empty source
func NewStaticSource() *StaticSource {
	return &StaticSource{dates: make(map[int]map[string][]time.Time)}
}

// Set replaces the announced dates of ruleID in year
func (s *StaticSource) Set(year int, ruleID string, dates ...time.Time) {
	normalized := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		normalized = append(normalized, DateOf(d))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dates[year] == nil {
		s.dates[year] = make(map[string][]time.Time)
	}
	s.dates[year][ruleID] = normalized
}

// Fetch returns the announced dates, or an empty slice when nothing was announced
func (s *StaticSource) Fetch(_ context.Context, year int, ruleID string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.dates[year][ruleID]), nil
}

// Years lists the years with at least one announcement, ascending
func (s *StaticSource) Years() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	years := make([]int, 0, len(s.dates))
	for y := range s.dates {
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

// ParseAnnouncedDates reads a YAML document of the form
//
//	2025:
//	  spring_festival: [2025-01-28, 2025-01-29]
func ParseAnnouncedDates(data []byte) (*StaticSource, error) {
	var doc map[int]map[string][]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse announced dates: %w", err)
	}

	src := NewStaticSource()
	for year, rules := range doc {
		for ruleID, raw := range rules {
			dates := make([]time.Time, 0, len(raw))
			for _, s := range raw {
				d, err := ParseDate(s)
				if err != nil {
					return nil, fmt.Errorf("announced dates %d/%s: %w", year, ruleID, err)
				}
				if d.Year() != year {
					return nil, fmt.Errorf("announced dates %d/%s: %s is outside the year", year, ruleID, s)
				}
				dates = append(dates, d)
			}
			src.Set(year, ruleID, dates...)
		}
	}
	return src, nil
}

// BuiltinSource returns the announced dates shipped with the binary
func BuiltinSource() (*StaticSource, error) {
	return ParseAnnouncedDates(builtinAnnouncedDates)
}

// FileSource serves announced dates from a YAML file loaded once at start
type FileSource struct {
	*StaticSource
	path string
}

// NewFileSource loads path
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read announced dates file: %w", err)
	}
	src, err := ParseAnnouncedDates(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &FileSource{StaticSource: src, path: path}, nil
}

// Path returns the file the source was loaded from
func (f *FileSource) Path() string {
	return f.path
}

// ChainSource asks each source in turn and returns the first non-empty answer.
// An error from any source stops the chain.
type ChainSource []DataSource

// Fetch implements DataSource
func (c ChainSource) Fetch(ctx context.Context, year int, ruleID string) ([]time.Time, error) {
	for _, src := range c {
		dates, err := src.Fetch(ctx, year, ruleID)
		if err != nil {
			return nil, err
		}
		if len(dates) > 0 {
			return dates, nil
		}
	}
	return nil, nil
}
