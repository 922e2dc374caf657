package thread

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// LoadRootComments fetches one page of root comments. Page 1 replaces the
// list, later pages append. The post total is refreshed from the response.
func (s *Store) LoadRootComments(ctx context.Context, page int) error {
	return s.load(ctx, rootList, "", page)
}

// LoadReplies fetches one page of replies under the root comment parentID.
func (s *Store) LoadReplies(ctx context.Context, parentID string, page int) error {
	return s.load(ctx, replyList, parentID, page)
}

// LoadNestedReplies fetches one page of nested replies under the reply parentID.
func (s *Store) LoadNestedReplies(ctx context.Context, parentID string, page int) error {
	return s.load(ctx, nestedList, parentID, page)
}

func (s *Store) load(ctx context.Context, k listKind, parentID string, page int) error {
	if page < 1 {
		page = 1
	}
	limit := s.pageSize(k)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	l := s.ensureListLocked(k, parentID)
	if l.inFlight {
		s.mu.Unlock()
		return ErrLoadInFlight
	}
	l.inFlight = true
	removals := l.removals
	s.mu.Unlock()

	res, err := s.svc.ListComments(ctx, ListQuery{
		PostID:   s.postID,
		ParentID: parentID,
		Page:     page,
		Limit:    limit,
		Order:    s.order,
	})

	s.mu.Lock()
	l.inFlight = false
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.listLocked(k, parentID) != l {
		// the parent was deleted while the page was on its way
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		if errors.Is(err, ErrInconsistentResponse) {
			l.loaded = true
			l.hasMore = false
			s.mu.Unlock()
			s.log.Warn("inconsistent comment page, pagination stopped",
				zap.String("parent_id", parentID), zap.Int("page", page), zap.Error(err))
			return nil
		}
		s.mu.Unlock()
		return fmt.Errorf("load %s comments page %d: %w", k.depth(), page, err)
	}

	if page > 1 && l.removals != removals {
		// deletes shifted the service's offsets under this page; top the
		// list up item by item instead and let the caller page again
		refill := s.scheduleRefillLocked(l, k, parentID)
		s.mu.Unlock()
		s.log.Debug("stale comments page dropped", zap.String("parent_id", parentID), zap.Int("page", page))
		if refill != nil {
			go s.refill(*refill)
		}
		return nil
	}

	s.mergePageLocked(l, k, parentID, page, res.Comments, limit)
	changed := false
	if k == rootList {
		changed = s.syncTotalLocked(res.Total)
	}
	var refill *refillJob
	if l.refillDue {
		l.refillDue = false
		refill = s.scheduleRefillLocked(l, k, parentID)
	}
	s.mu.Unlock()

	if refill != nil {
		go s.refill(*refill)
	}

	s.log.Debug("comments page merged",
		zap.String("parent_id", parentID),
		zap.Int("page", page),
		zap.Int("returned", len(res.Comments)))
	s.notify(changed)
	return nil
}

// mergePageLocked applies a fetched page in one step.
func (s *Store) mergePageLocked(l *commentList, k listKind, parentID string, page int, fetched []Comment, limit int) {
	incoming := make([]Comment, 0, len(fetched))
	seen := make(map[string]struct{}, len(fetched))
	for _, c := range fetched {
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		incoming = append(incoming, cloneComment(c))
	}

	if page == 1 {
		for _, old := range l.items {
			if _, kept := seen[old.ID]; !kept {
				s.forgetChildrenLocked(old.ID)
				delete(s.index, old.ID)
				delete(s.expansion, old.ID)
			}
		}
		l.items = l.items[:0]
	}
	for i := range incoming {
		c := incoming[i]
		if page > 1 && l.indexOf(c.ID) >= 0 {
			continue
		}
		s.stampLocked(&c, k, parentID)
		l.items = append(l.items, c)
	}

	if page == 1 || page > l.page {
		l.page = page
	}
	l.hasMore = len(fetched) == limit
	l.loaded = true
}

// syncTotalLocked refreshes the post total after a root page.
func (s *Store) syncTotalLocked(reported *int) bool {
	if reported != nil {
		return s.setTotalLocked(*reported)
	}
	return s.setTotalLocked(s.estimateTotalLocked())
}

// estimateTotalLocked approximates the post total as the loaded root comments
// plus their known descendants. It undercounts while further root pages are
// unfetched and is only as good as the descendant counts the service sends.
func (s *Store) estimateTotalLocked() int {
	n := len(s.roots.items)
	for _, c := range s.roots.items {
		n += max(c.DescendantCount, c.ReplyCount)
	}
	return n
}
