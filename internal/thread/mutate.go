package thread

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// placement is where a new comment goes.
type placement struct {
	kind     listKind
	parentID string
}

// resolveParentLocked maps the id a user replied to onto the list the new
// comment joins. Replies to a nested reply become siblings under the same
// reply; an id unknown to the store is taken to be a root comment.
func (s *Store) resolveParentLocked(parentID string) placement {
	if parentID == "" {
		return placement{kind: rootList}
	}
	loc, ok := s.index[parentID]
	if !ok {
		return placement{kind: replyList, parentID: parentID}
	}
	switch loc.depth {
	case DepthRoot:
		return placement{kind: replyList, parentID: parentID}
	case DepthReply:
		return placement{kind: nestedList, parentID: parentID}
	default:
		return placement{kind: nestedList, parentID: loc.parentID}
	}
}

// AddComment creates a comment on the post, or a reply to parentID. The new
// comment is shown with the local viewer identity and zeroed counters until
// the thread is refetched.
func (s *Store) AddComment(ctx context.Context, d Draft, parentID string) (Comment, error) {
	d, err := validateDraft(d)
	if err != nil {
		return Comment{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Comment{}, ErrClosed
	}
	target := s.resolveParentLocked(parentID)
	s.mu.Unlock()

	created, err := s.svc.CreateComment(ctx, NewComment{
		PostID:   s.postID,
		ParentID: target.parentID,
		Text:     d.Text,
		Upload:   d.Upload,
	})
	if err != nil {
		return Comment{}, fmt.Errorf("add comment: %w", err)
	}

	c := cloneComment(created)
	if s.viewer.ID != "" {
		c.AuthorID = s.viewer.ID
	}
	if s.viewer.Handle != "" {
		c.AuthorHandle = s.viewer.Handle
		c.AuthorAvatar = s.viewer.Avatar
	}
	c.LikeCount, c.DislikeCount = 0, 0
	c.UserLiked, c.UserDisliked = false, false
	c.ReplyCount, c.DescendantCount = 0, 0

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Comment{}, ErrClosed
	}
	target = s.resolveParentLocked(parentID)
	s.stampLocked(&c, target.kind, target.parentID)
	switch target.kind {
	case rootList:
		s.roots.items = append([]Comment{c}, s.roots.items...)
	default:
		l := s.ensureListLocked(target.kind, target.parentID)
		l.items = append(l.items, c)
		s.bumpAncestorsLocked(c, 1)
	}
	changed := s.setTotalLocked(s.total + 1)
	s.mu.Unlock()

	s.log.Debug("comment added",
		zap.String("comment_id", c.ID),
		zap.Stringer("depth", c.Depth),
		zap.String("parent_id", c.ParentID))
	s.notify(changed)
	return cloneComment(c), nil
}

// bumpAncestorsLocked adjusts the direct parent's reply count and the root's
// descendant count for a child c being added (delta 1) or removed (delta -1).
func (s *Store) bumpAncestorsLocked(c Comment, delta int) {
	if p := s.commentLocked(c.ParentID); p != nil {
		p.ReplyCount = max(p.ReplyCount+delta, 0)
		if p.Depth == DepthRoot {
			p.DescendantCount = max(p.DescendantCount+delta, p.ReplyCount)
		}
	}
	if c.Depth == DepthNested {
		if r := s.commentLocked(c.RootID); r != nil {
			r.DescendantCount = max(r.DescendantCount+delta, r.ReplyCount)
		}
	}
}

// EditComment changes the text and attachment of a pristine comment in place.
func (s *Store) EditComment(ctx context.Context, commentID string, e CommentEdit) (Comment, error) {
	e, err := validateEdit(e)
	if err != nil {
		return Comment{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Comment{}, ErrClosed
	}
	cur := s.commentLocked(commentID)
	if cur == nil {
		s.mu.Unlock()
		return Comment{}, ErrCommentNotFound
	}
	if !CanEdit(*cur, s.viewer.ID) {
		s.mu.Unlock()
		return Comment{}, ErrNotEditable
	}
	keepsAttachment := cur.Attachment != nil && !e.RemoveAttachment
	if e.Text == "" && e.Upload == nil && !keepsAttachment {
		s.mu.Unlock()
		return Comment{}, ErrEmptyComment
	}
	e.ParentID = cur.ParentID
	s.mu.Unlock()

	att, err := s.svc.UpdateComment(ctx, commentID, e)
	if err != nil {
		return Comment{}, fmt.Errorf("edit comment: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Comment{}, ErrClosed
	}
	cur = s.commentLocked(commentID)
	if cur == nil {
		return Comment{}, ErrCommentNotFound
	}
	cur.Text = e.Text
	if e.RemoveAttachment {
		cur.Attachment = nil
	} else if att != nil {
		a := *att
		cur.Attachment = &a
	}
	return cloneComment(*cur), nil
}

// DeleteComment removes a comment wherever it lives. parentID is an optional
// hint; the store resolves the location from its own index.
func (s *Store) DeleteComment(ctx context.Context, commentID, parentID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	loc, ok := s.index[commentID]
	if !ok {
		s.mu.Unlock()
		return ErrCommentNotFound
	}
	if parentID != "" && parentID != loc.parentID {
		s.log.Debug("delete parent hint ignored",
			zap.String("comment_id", commentID),
			zap.String("hint", parentID),
			zap.String("parent_id", loc.parentID))
	}
	s.mu.Unlock()

	if err := s.svc.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	l, loc, ok := s.holderLocked(commentID)
	if !ok {
		s.mu.Unlock()
		return ErrCommentNotFound
	}
	i := l.indexOf(commentID)
	if i < 0 {
		s.mu.Unlock()
		return ErrCommentNotFound
	}
	removed := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.removals++
	s.forgetChildrenLocked(commentID)
	delete(s.index, commentID)
	delete(s.expansion, commentID)
	if removed.Depth != DepthRoot {
		s.bumpAncestorsLocked(removed, -1)
	}
	changed := s.setTotalLocked(s.total - 1)

	var refill *refillJob
	if removed.Depth != DepthRoot {
		k := replyList
		if removed.Depth == DepthNested {
			k = nestedList
		}
		refill = s.scheduleRefillLocked(l, k, loc.parentID)
	}
	s.mu.Unlock()

	s.notify(changed)
	if refill != nil {
		go s.refill(*refill)
	}
	return nil
}

type refillJob struct {
	list     *commentList
	kind     listKind
	parentID string
}

// shortLocked reports whether l shows fewer items than its loaded pages hold
// while the service still has more.
func (s *Store) shortLocked(l *commentList, k listKind) bool {
	return l.hasMore && len(l.items) < l.page*s.pageSize(k)
}

// scheduleRefillLocked returns a refill job for a short list. A list with a
// fetch in flight is only marked; the fetch picks the refill up when it lands.
func (s *Store) scheduleRefillLocked(l *commentList, k listKind, parentID string) *refillJob {
	if !s.shortLocked(l, k) {
		return nil
	}
	if l.inFlight {
		l.refillDue = true
		return nil
	}
	s.refills.Add(1)
	return &refillJob{list: l, kind: k, parentID: parentID}
}

// refill fetches the items following the visible ones, one at a time, until
// a list that shrank through deletes is full again. The offset is read when
// each request is issued; a result that lands after another delete is
// dropped and fetched again. Failures are logged and dropped.
func (s *Store) refill(job refillJob) {
	defer s.refills.Done()

	l := job.list
	for {
		s.mu.Lock()
		if s.closed || s.listLocked(job.kind, job.parentID) != l {
			s.mu.Unlock()
			return
		}
		if l.inFlight {
			l.refillDue = true
			s.mu.Unlock()
			return
		}
		l.refillDue = false
		if !s.shortLocked(l, job.kind) {
			s.mu.Unlock()
			return
		}
		l.inFlight = true
		offset, removals := len(l.items), l.removals
		s.mu.Unlock()

		res, err := s.svc.ListComments(s.ctx, ListQuery{
			PostID:   s.postID,
			ParentID: job.parentID,
			Page:     offset + 1,
			Limit:    1,
			Order:    s.order,
		})

		s.mu.Lock()
		l.inFlight = false
		if s.closed || s.listLocked(job.kind, job.parentID) != l {
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.mu.Unlock()
			s.log.Warn("refill after delete failed",
				zap.String("parent_id", job.parentID), zap.Int("offset", offset), zap.Error(err))
			return
		}
		if l.removals != removals {
			s.mu.Unlock()
			continue
		}
		if len(res.Comments) == 0 {
			l.hasMore = false
			s.mu.Unlock()
			return
		}
		added := false
		for _, c := range res.Comments {
			if c.ID == "" || l.indexOf(c.ID) >= 0 {
				continue
			}
			c = cloneComment(c)
			s.stampLocked(&c, job.kind, job.parentID)
			l.items = append(l.items, c)
			added = true
		}
		s.mu.Unlock()
		if !added {
			return
		}
	}
}

// SetReaction likes or dislikes a comment; repeating the current reaction
// removes it. The stored copy changes only after the service accepted it.
func (s *Store) SetReaction(ctx context.Context, commentID string, action Reaction) (Comment, error) {
	if action != Like && action != Dislike {
		return Comment{}, fmt.Errorf("set reaction: unknown reaction %d", action)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Comment{}, ErrClosed
	}
	cur := s.commentLocked(commentID)
	if cur == nil {
		s.mu.Unlock()
		return Comment{}, ErrCommentNotFound
	}
	preview := *cur
	s.mu.Unlock()

	remove := applyReaction(&preview, action)
	err := s.svc.ReactToComment(ctx, ReactionRequest{
		PostID:    s.postID,
		CommentID: commentID,
		Dislike:   action == Dislike,
		Remove:    remove,
	})
	if err != nil {
		return Comment{}, fmt.Errorf("set reaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Comment{}, ErrClosed
	}
	cur = s.commentLocked(commentID)
	if cur == nil {
		return Comment{}, ErrCommentNotFound
	}
	applyReaction(cur, action)
	return cloneComment(*cur), nil
}

// applyReaction toggles action on c and reports whether it was removed.
func applyReaction(c *Comment, action Reaction) (removed bool) {
	switch action {
	case Like:
		if c.UserLiked {
			c.UserLiked = false
			c.LikeCount = max(c.LikeCount-1, 0)
			return true
		}
		c.UserLiked = true
		c.LikeCount++
		if c.UserDisliked {
			c.UserDisliked = false
			c.DislikeCount = max(c.DislikeCount-1, 0)
		}
	case Dislike:
		if c.UserDisliked {
			c.UserDisliked = false
			c.DislikeCount = max(c.DislikeCount-1, 0)
			return true
		}
		c.UserDisliked = true
		c.DislikeCount++
		if c.UserLiked {
			c.UserLiked = false
			c.LikeCount = max(c.LikeCount-1, 0)
		}
	}
	return false
}
