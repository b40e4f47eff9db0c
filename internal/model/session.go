package model

import (
	"sync"
	"time"
)

// SessionNameLayout formats the default session name from its start time.
const SessionNameLayout = "02-01-06-15-04-05"

// Session is one crawl run: its parameters, the visited-set and the
// ordered sequence of Scrape records.
//
// The visited-set is the only deduplication authority. It grows
// monotonically and MarkVisited performs check-then-insert as a single
// step, so a URL is fetched at most once even when several goroutines
// discover it at the same time.
type Session struct {
	// Name labels the run. Defaults to the UTC start time.
	Name string `json:"name"`

	// Seed is the starting address.
	Seed string `json:"seed"`

	// Depth is the recursion budget. 0 crawls only the seed.
	Depth int `json:"depth"`

	// StayInternal drops discovered URLs whose host differs from the page's.
	StayInternal bool `json:"stay_internal"`

	// Transport names the fetch flavor used for the run.
	Transport string `json:"transport,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Scrapes is exported for serialization only; use Append and Results.
	Scrapes []*Scrape `json:"scrapes"`

	visited map[string]struct{}
	mu      sync.Mutex
}

// NewSession creates a session with fresh containers.
func NewSession(seed string, depth int, stayInternal bool) *Session {
	now := time.Now().UTC()
	return &Session{
		Name:         now.Format(SessionNameLayout),
		Seed:         seed,
		Depth:        depth,
		StayInternal: stayInternal,
		StartedAt:    now,
		Scrapes:      make([]*Scrape, 0),
		visited:      make(map[string]struct{}),
	}
}

// MarkVisited inserts u into the visited-set.
// It returns false if u was already present.
func (s *Session) MarkVisited(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited == nil {
		s.visited = make(map[string]struct{})
	}
	if _, ok := s.visited[u]; ok {
		return false
	}
	s.visited[u] = struct{}{}
	return true
}

// Visited reports whether u is in the visited-set.
func (s *Session) Visited(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.visited[u]
	return ok
}

// VisitedCount returns the size of the visited-set.
func (s *Session) VisitedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visited)
}

// Append adds a Scrape to the result sequence.
func (s *Session) Append(scrape *Scrape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scrapes = append(s.Scrapes, scrape)
}

// Results returns a snapshot of the result sequence.
func (s *Session) Results() []*Scrape {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Scrape, len(s.Scrapes))
	copy(out, s.Scrapes)
	return out
}

// Finish stamps the end time of the run.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FinishedAt = time.Now().UTC()
}

// Totals sums bucket sizes across all scrapes.
func (s *Session) Totals() map[Category]int {
	totals := make(map[Category]int, len(Categories))
	for _, scrape := range s.Results() {
		for c, n := range scrape.Counts() {
			totals[c] += n
		}
	}
	return totals
}
