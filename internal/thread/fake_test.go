package thread

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeService is an in-memory comment service. Children are kept per parent
// id in listing order (newest first).
type fakeService struct {
	mu       sync.Mutex
	post     Post
	children map[string][]Comment
	total    *int
	nextID   int

	listCalls []ListQuery
	created   []NewComment
	edits     []CommentEdit
	deleted   []string
	reactions []ReactionRequest

	listErr, createErr, updateErr, deleteErr, reactErr error
	inconsistent                                       map[string]bool
	gate                                               chan struct{}
	editAttachment                                     *Attachment
}

func newFakeService(postID string) *fakeService {
	return &fakeService{
		post:         Post{ID: postID, AuthorHandle: "poster", Text: "a post"},
		children:     make(map[string][]Comment),
		inconsistent: make(map[string]bool),
	}
}

// seed appends n comments under parent and returns their ids.
func (f *fakeService) seed(parent, prefix string, n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s%d", prefix, i+1)
		ids[i] = id
		f.children[parent] = append(f.children[parent], Comment{
			ID:           id,
			AuthorID:     "user-x",
			AuthorHandle: "someone",
			Text:         "seeded " + id,
			CreatedAt:    time.Now().Add(-time.Duration(i) * time.Minute),
		})
	}
	f.refreshReplyCount(parent)
	return ids
}

func (f *fakeService) setTotal(n int) {
	f.mu.Lock()
	f.total = &n
	f.mu.Unlock()
}

func (f *fakeService) refreshReplyCount(parent string) {
	for p, list := range f.children {
		for i := range list {
			if list[i].ID == parent {
				list[i].ReplyCount = len(f.children[parent])
				f.children[p] = list
				return
			}
		}
	}
}

func (f *fakeService) calls() []ListQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ListQuery(nil), f.listCalls...)
}

func (f *fakeService) GetPost(_ context.Context, postID string) (Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if postID != f.post.ID {
		return Post{}, fmt.Errorf("post %s not found", postID)
	}
	return f.post, nil
}

func (f *fakeService) ListComments(ctx context.Context, q ListQuery) (ListResult, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, q)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ListResult{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return ListResult{}, f.listErr
	}
	if f.inconsistent[q.ParentID] {
		return ListResult{}, fmt.Errorf("decode page: %w", ErrInconsistentResponse)
	}
	all := f.children[q.ParentID]
	start := (q.Page - 1) * q.Limit
	if start > len(all) {
		start = len(all)
	}
	end := min(start+q.Limit, len(all))
	page := append([]Comment(nil), all[start:end]...)
	res := ListResult{Comments: page}
	if q.ParentID == "" && f.total != nil {
		t := *f.total
		res.Total = &t
	}
	return res, nil
}

func (f *fakeService) CreateComment(_ context.Context, c NewComment) (Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Comment{}, f.createErr
	}
	f.nextID++
	f.created = append(f.created, c)
	out := Comment{
		ID:           fmt.Sprintf("new-%d", f.nextID),
		AuthorHandle: "server-handle",
		Text:         c.Text,
		CreatedAt:    time.Now(),
		LikeCount:    3,
	}
	if c.Upload != nil {
		out.Attachment = &Attachment{URL: "/media/" + c.Upload.Filename, Kind: AttachmentImage}
	}
	f.children[c.ParentID] = append([]Comment{out}, f.children[c.ParentID]...)
	if f.total != nil {
		*f.total++
	}
	return out, nil
}

func (f *fakeService) UpdateComment(_ context.Context, _ string, e CommentEdit) (*Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.edits = append(f.edits, e)
	if e.RemoveAttachment {
		return nil, nil
	}
	return f.editAttachment, nil
}

func (f *fakeService) DeleteComment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	for p, list := range f.children {
		for i := range list {
			if list[i].ID == id {
				f.children[p] = append(list[:i:i], list[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (f *fakeService) ReactToComment(_ context.Context, r ReactionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactErr != nil {
		return f.reactErr
	}
	f.reactions = append(f.reactions, r)
	return nil
}

// countRecorder collects count updates.
type countRecorder struct {
	mu      sync.Mutex
	updates []CountUpdate
}

func (r *countRecorder) CommentCountUpdated(u CountUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *countRecorder) last() (CountUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return CountUpdate{}, false
	}
	return r.updates[len(r.updates)-1], true
}

func (r *countRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}
