package thread

import (
	"context"
	"errors"
)

// ExpansionState is the children panel state of one parent comment.
type ExpansionState int

const (
	Collapsed ExpansionState = iota
	Loading
	Expanded
)

func (e ExpansionState) String() string {
	switch e {
	case Loading:
		return "loading"
	case Expanded:
		return "expanded"
	default:
		return "collapsed"
	}
}

// State returns the panel state of parentID. The root list is always expanded.
func (s *Store) State(parentID string) ExpansionState {
	if parentID == "" {
		return Expanded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expansion[parentID]
}

// Expanded lists the parent ids whose panel is currently open.
func (s *Store) Expanded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.expansion))
	for id, st := range s.expansion {
		if st == Expanded {
			out = append(out, id)
		}
	}
	return out
}

// Expand opens the children panel of parentID. The first page is fetched on
// the first expand, or when the cached list is empty.
func (s *Store) Expand(ctx context.Context, parentID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.index[parentID]; !ok {
		s.mu.Unlock()
		return ErrCommentNotFound
	}
	k, ok := s.childKindLocked(parentID)
	if !ok {
		s.mu.Unlock()
		return ErrNotExpandable
	}
	switch s.expansion[parentID] {
	case Expanded, Loading:
		s.mu.Unlock()
		return nil
	}
	if l := s.listLocked(k, parentID); l != nil && l.loaded && len(l.items) > 0 {
		s.expansion[parentID] = Expanded
		s.mu.Unlock()
		return nil
	}
	s.expansion[parentID] = Loading
	s.mu.Unlock()

	err := s.load(ctx, k, parentID, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expansion[parentID] != Loading {
		// collapsed or deleted meanwhile
		return ignoreInFlight(err)
	}
	if err != nil && !errors.Is(err, ErrLoadInFlight) {
		delete(s.expansion, parentID)
		return err
	}
	s.expansion[parentID] = Expanded
	return nil
}

// Collapse closes the panel; cached children are kept.
func (s *Store) Collapse(parentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expansion, parentID)
}

// Toggle flips the panel of parentID.
func (s *Store) Toggle(ctx context.Context, parentID string) error {
	if s.State(parentID) != Collapsed {
		s.Collapse(parentID)
		return nil
	}
	return s.Expand(ctx, parentID)
}

// LoadMore fetches the next page of parentID's children ("" for the root
// list). It reports false without fetching when the list is exhausted, a
// fetch is already in flight, or the panel is not expanded.
func (s *Store) LoadMore(ctx context.Context, parentID string) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	k, ok := s.childKindLocked(parentID)
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	if parentID != "" && s.expansion[parentID] != Expanded {
		s.mu.Unlock()
		return false, nil
	}
	l := s.listLocked(k, parentID)
	if l == nil || !l.hasMore || l.inFlight {
		s.mu.Unlock()
		return false, nil
	}
	next := l.page + 1
	if parentID != "" {
		s.expansion[parentID] = Loading
	}
	s.mu.Unlock()

	err := s.load(ctx, k, parentID, next)

	if parentID != "" {
		s.mu.Lock()
		if s.expansion[parentID] == Loading {
			s.expansion[parentID] = Expanded
		}
		s.mu.Unlock()
	}
	if errors.Is(err, ErrLoadInFlight) {
		return false, nil
	}
	return err == nil, err
}

func ignoreInFlight(err error) error {
	if errors.Is(err, ErrLoadInFlight) {
		return nil
	}
	return err
}
