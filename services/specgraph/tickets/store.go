// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tickets

import "sync"

// Store is the in-memory ticket set, keyed by source file.
//
// Replacing a file's tickets is atomic: readers see either the old or
// the new set, never a mix. Callers that cache derived data must
// invalidate it after every Set or Remove.
//
// Thread Safety:
//
//	Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	bySource map[string][]Ticket
	order    []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{bySource: make(map[string][]Ticket)}
}

// Set replaces the tickets of one source. An empty source is recorded
// as AggregatedSource. Each stored ticket's Source is set accordingly.
func (s *Store) Set(source string, tickets []Ticket) {
	if source == "" {
		source = AggregatedSource
	}
	stored := make([]Ticket, len(tickets))
	for i, t := range tickets {
		t.Source = source
		stored[i] = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bySource[source]; !ok {
		s.order = append(s.order, source)
	}
	s.bySource[source] = stored
}

// Remove drops a source. It reports whether the source was present.
func (s *Store) Remove(source string) bool {
	if source == "" {
		source = AggregatedSource
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bySource[source]; !ok {
		return false
	}
	delete(s.bySource, source)
	for i, src := range s.order {
		if src == source {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Tickets returns every ticket, sources in first-set order and tickets
// in file order.
func (s *Store) Tickets() []Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := []Ticket{}
	for _, src := range s.order {
		all = append(all, s.bySource[src]...)
	}
	return all
}

// Sources returns the known sources in first-set order.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of stored tickets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ts := range s.bySource {
		n += len(ts)
	}
	return n
}
