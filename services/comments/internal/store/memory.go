package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a development-only in-memory implementation.
type MemoryStore struct {
	mu        sync.RWMutex
	posts     map[string]Post
	comments  map[string]*memComment
	reactions map[string]map[string]int8 // commentID -> userID -> reaction
	seq       int64
}

type memComment struct {
	Comment
	seq int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:     make(map[string]Post),
		comments:  make(map[string]*memComment),
		reactions: make(map[string]map[string]int8),
	}
}

func (s *MemoryStore) CreatePost(_ context.Context, p Post) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.posts[p.ID] = p
	return p, nil
}

func (s *MemoryStore) GetPost(_ context.Context, postID string) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[postID]
	if !ok {
		return Post{}, ErrPostNotFound
	}
	return p, nil
}

func (s *MemoryStore) CreateComment(_ context.Context, c Comment) (Comment, error) {
	if strings.TrimSpace(c.Text) == "" && c.Attachment == nil {
		return Comment{}, ErrEmptyComment
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[c.PostID]; !ok {
		return Comment{}, ErrPostNotFound
	}

	c.Depth = 0
	c.RootID = ""
	if c.ParentID != "" {
		parent, ok := s.comments[c.ParentID]
		if !ok || parent.DeletedAt != nil {
			return Comment{}, ErrParentNotFound
		}
		if parent.PostID != c.PostID {
			return Comment{}, ErrParentMismatch
		}
		c.ParentID, c.RootID, c.Depth = placeUnder(parent.Comment)
	}

	s.seq++
	c.ID = uuid.New().String()
	if c.Depth == 0 {
		c.RootID = c.ID
	}
	c.CreatedAt = time.Now().UTC()
	c.Likes, c.Dislikes, c.ReplyCount, c.DescendantCount, c.UserReaction = 0, 0, 0, 0, 0
	c.UpdatedAt, c.DeletedAt = nil, nil
	s.comments[c.ID] = &memComment{Comment: c, seq: s.seq}

	if c.ParentID != "" {
		s.comments[c.ParentID].ReplyCount++
		s.comments[c.RootID].DescendantCount++
	}
	return c, nil
}

func (s *MemoryStore) ListComments(_ context.Context, p ListParams) ([]Comment, error) {
	p = p.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[p.PostID]; !ok {
		return nil, ErrPostNotFound
	}
	if p.ParentID != "" {
		parent, ok := s.comments[p.ParentID]
		if !ok || parent.DeletedAt != nil || parent.PostID != p.PostID {
			return nil, ErrParentNotFound
		}
	}

	var rows []*memComment
	for _, c := range s.comments {
		if c.PostID == p.PostID && c.ParentID == p.ParentID && c.DeletedAt == nil {
			rows = append(rows, c)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if p.Order == OrderAsc {
			return rows[i].seq < rows[j].seq
		}
		return rows[i].seq > rows[j].seq
	})

	out := []Comment{}
	off := p.Offset()
	if off >= len(rows) {
		return out, nil
	}
	rows = rows[off:]
	if len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}
	for _, r := range rows {
		out = append(out, s.view(r, p.ViewerID))
	}
	return out, nil
}

func (s *MemoryStore) CountComments(_ context.Context, postID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[postID]; !ok {
		return 0, ErrPostNotFound
	}
	n := 0
	for _, c := range s.comments {
		if c.PostID == postID && c.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetComment(_ context.Context, commentID, viewerID string) (Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[commentID]
	if !ok || c.DeletedAt != nil {
		return Comment{}, ErrNotFound
	}
	return s.view(c, viewerID), nil
}

func (s *MemoryStore) UpdateComment(_ context.Context, commentID, userID string, u CommentUpdate) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.owned(commentID, userID)
	if err != nil {
		return Comment{}, err
	}
	if !c.Pristine() {
		return Comment{}, ErrNotEditable
	}

	att := c.Attachment
	switch {
	case u.Attachment != nil:
		a := *u.Attachment
		att = &a
	case u.RemoveAttachment:
		att = nil
	}
	if strings.TrimSpace(u.Text) == "" && att == nil {
		return Comment{}, ErrEmptyComment
	}

	now := time.Now().UTC()
	c.Text = u.Text
	c.Attachment = att
	c.UpdatedAt = &now
	return s.view(c, userID), nil
}

func (s *MemoryStore) DeleteComment(_ context.Context, commentID, userID string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.owned(commentID, userID)
	if err != nil {
		return Comment{}, err
	}

	now := time.Now().UTC()
	removed := s.deleteSubtree(c, now)
	if c.ParentID != "" {
		if parent, ok := s.comments[c.ParentID]; ok && parent.ReplyCount > 0 {
			parent.ReplyCount--
		}
		if root, ok := s.comments[c.RootID]; ok {
			root.DescendantCount = max(0, root.DescendantCount-removed)
		}
	}
	return c.Comment, nil
}

// deleteSubtree soft-deletes c and its live descendants and returns how
// many comments were removed.
func (s *MemoryStore) deleteSubtree(c *memComment, at time.Time) int {
	c.DeletedAt = &at
	n := 1
	for _, child := range s.comments {
		if child.ParentID == c.ID && child.DeletedAt == nil {
			n += s.deleteSubtree(child, at)
		}
	}
	return n
}

func (s *MemoryStore) React(_ context.Context, commentID, userID string, dislike, del bool) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.DeletedAt != nil {
		return Comment{}, ErrNotFound
	}
	byUser := s.reactions[commentID]
	if byUser == nil {
		byUser = make(map[string]int8)
		s.reactions[commentID] = byUser
	}

	dl, dd, next, err := reactionDelta(byUser[userID], dislike, del)
	if err != nil {
		return Comment{}, err
	}
	c.Likes += dl
	c.Dislikes += dd
	if next == 0 {
		delete(byUser, userID)
	} else {
		byUser[userID] = next
	}
	return s.view(c, userID), nil
}

func (s *MemoryStore) owned(commentID, userID string) (*memComment, error) {
	c, ok := s.comments[commentID]
	if !ok || c.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if c.AuthorID != userID {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *MemoryStore) view(c *memComment, viewerID string) Comment {
	out := c.Comment
	if out.Attachment != nil {
		a := *out.Attachment
		out.Attachment = &a
	}
	out.UserReaction = 0
	if viewerID != "" {
		out.UserReaction = s.reactions[c.ID][viewerID]
	}
	return out
}
