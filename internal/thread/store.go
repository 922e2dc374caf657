// Package thread manages the client-side state of one post's comment tree:
// root comments, replies and nested replies, each list paginated on its own
// cursor, plus the post-wide comment total.
//
// A Store is safe for concurrent use. Its lock is never held across calls to
// the Service, so mutations of different lists may interleave; fetches of the
// same list are serialized by a per-list in-flight flag.
package thread

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRootPageSize   = 10
	DefaultReplyPageSize  = 5
	DefaultNestedPageSize = 3
)

type listKind int

const (
	rootList listKind = iota
	replyList
	nestedList
)

func (k listKind) depth() Depth {
	switch k {
	case replyList:
		return DepthReply
	case nestedList:
		return DepthNested
	default:
		return DepthRoot
	}
}

type commentList struct {
	items    []Comment
	page     int
	hasMore  bool
	loaded   bool
	inFlight bool
	// removals counts deletes; a refill that lands after one re-reads its offset.
	removals int
	// refillDue marks a shortfall seen while a fetch was in flight.
	refillDue bool
}

func (l *commentList) indexOf(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

// location records where a known comment lives.
type location struct {
	depth    Depth
	parentID string
	rootID   string
}

// Store is the per-post thread state. Create it with Open (or New followed by
// LoadRootComments) and release it with Close.
type Store struct {
	postID string
	svc    Service
	viewer Viewer
	log    *zap.Logger
	order  string

	rootPageSize   int
	replyPageSize  int
	nestedPageSize int

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	post      Post
	roots     commentList
	replies   map[string]*commentList
	nested    map[string]*commentList
	index     map[string]location
	expansion map[string]ExpansionState
	total     int
	closed    bool

	listeners    map[int]CountListener
	nextListener int
	// notified is the last total handed to listeners
	notifying     bool
	notifyPending bool
	notified      int

	refills sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func WithViewer(v Viewer) Option {
	return func(s *Store) { s.viewer = v }
}

// WithPageSizes overrides the page sizes; non-positive values keep the default.
func WithPageSizes(root, reply, nested int) Option {
	return func(s *Store) {
		if root > 0 {
			s.rootPageSize = root
		}
		if reply > 0 {
			s.replyPageSize = reply
		}
		if nested > 0 {
			s.nestedPageSize = nested
		}
	}
}

func WithListener(l CountListener) Option {
	return func(s *Store) {
		if l != nil {
			s.listeners[s.nextListener] = l
			s.nextListener++
		}
	}
}

func WithOrder(order string) Option {
	return func(s *Store) {
		if order == OrderNewest || order == OrderOldest {
			s.order = order
		}
	}
}

// New creates an empty store for postID without touching the network.
func New(svc Service, postID string, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		postID:         postID,
		svc:            svc,
		log:            zap.NewNop(),
		order:          OrderNewest,
		rootPageSize:   DefaultRootPageSize,
		replyPageSize:  DefaultReplyPageSize,
		nestedPageSize: DefaultNestedPageSize,
		ctx:            ctx,
		cancel:         cancel,
		replies:        make(map[string]*commentList),
		nested:         make(map[string]*commentList),
		index:          make(map[string]location),
		expansion:      make(map[string]ExpansionState),
		listeners:      make(map[int]CountListener),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(zap.String("post_id", postID))
	return s
}

// Open creates a store and fetches the post and the first page of root
// comments concurrently. On failure the store is closed and the first error
// is returned.
func Open(ctx context.Context, svc Service, postID string, opts ...Option) (*Store, error) {
	s := New(svc, postID, opts...)

	var post Post
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := svc.GetPost(gctx, postID)
		if err != nil {
			return err
		}
		post = p
		return nil
	})
	g.Go(func() error {
		return s.LoadRootComments(gctx, 1)
	})
	if err := g.Wait(); err != nil {
		s.Close()
		return nil, err
	}

	s.mu.Lock()
	s.post = post
	s.mu.Unlock()
	return s, nil
}

// Close tears the store down. In-flight results that arrive afterwards are
// discarded and pending refills are cancelled.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.listeners = make(map[int]CountListener)
}

// Wait blocks until every scheduled refill has finished.
func (s *Store) Wait() {
	s.refills.Wait()
}

func (s *Store) PostID() string { return s.postID }

func (s *Store) Post() Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.post
}

// TotalCount is the post-wide comment counter. When the service omits its
// own total this is a local estimate; see estimateTotalLocked.
func (s *Store) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Store) RootComments() []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneComments(s.roots.items)
}

func (s *Store) Replies(parentID string) []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.replies[parentID]; l != nil {
		return cloneComments(l.items)
	}
	return nil
}

func (s *Store) NestedReplies(parentID string) []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.nested[parentID]; l != nil {
		return cloneComments(l.items)
	}
	return nil
}

// Comment returns the stored copy of a comment anywhere in the tree.
func (s *Store) Comment(id string) (Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.commentLocked(id)
	if c == nil {
		return Comment{}, false
	}
	return cloneComment(*c), true
}

func (s *Store) RootHasMore() bool {
	return s.HasMore("")
}

// HasMore reports whether the children list of parentID (root list for "")
// may have further pages.
func (s *Store) HasMore(parentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.childListLocked(parentID); l != nil {
		return l.hasMore
	}
	return false
}

// Page is the highest page merged into the children list of parentID.
func (s *Store) Page(parentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.childListLocked(parentID); l != nil {
		return l.page
	}
	return 0
}

func (s *Store) pageSize(k listKind) int {
	switch k {
	case replyList:
		return s.replyPageSize
	case nestedList:
		return s.nestedPageSize
	default:
		return s.rootPageSize
	}
}

func (s *Store) listLocked(k listKind, parentID string) *commentList {
	switch k {
	case replyList:
		return s.replies[parentID]
	case nestedList:
		return s.nested[parentID]
	default:
		return &s.roots
	}
}

func (s *Store) ensureListLocked(k listKind, parentID string) *commentList {
	if l := s.listLocked(k, parentID); l != nil {
		return l
	}
	l := &commentList{}
	switch k {
	case replyList:
		s.replies[parentID] = l
	case nestedList:
		s.nested[parentID] = l
	}
	return l
}

// childKindLocked picks the list holding the children of parentID.
func (s *Store) childKindLocked(parentID string) (listKind, bool) {
	if parentID == "" {
		return rootList, true
	}
	loc, ok := s.index[parentID]
	if !ok {
		return 0, false
	}
	switch loc.depth {
	case DepthRoot:
		return replyList, true
	case DepthReply:
		return nestedList, true
	default:
		return 0, false
	}
}

func (s *Store) childListLocked(parentID string) *commentList {
	k, ok := s.childKindLocked(parentID)
	if !ok {
		return nil
	}
	return s.listLocked(k, parentID)
}

// holderLocked returns the list that contains comment id.
func (s *Store) holderLocked(id string) (*commentList, location, bool) {
	loc, ok := s.index[id]
	if !ok {
		return nil, location{}, false
	}
	var l *commentList
	switch loc.depth {
	case DepthRoot:
		l = &s.roots
	case DepthReply:
		l = s.replies[loc.parentID]
	case DepthNested:
		l = s.nested[loc.parentID]
	}
	if l == nil {
		return nil, loc, false
	}
	return l, loc, true
}

func (s *Store) commentLocked(id string) *Comment {
	l, _, ok := s.holderLocked(id)
	if !ok {
		return nil
	}
	if i := l.indexOf(id); i >= 0 {
		return &l.items[i]
	}
	return nil
}

// stampLocked assigns the tree position of c as a member of list k under parentID.
func (s *Store) stampLocked(c *Comment, k listKind, parentID string) {
	c.PostID = s.postID
	c.Depth = k.depth()
	switch k {
	case rootList:
		c.ParentID = ""
		c.RootID = c.ID
		if c.DescendantCount < c.ReplyCount {
			c.DescendantCount = c.ReplyCount
		}
	case replyList:
		c.ParentID = parentID
		c.RootID = parentID
		c.DescendantCount = 0
	case nestedList:
		c.ParentID = parentID
		c.RootID = s.index[parentID].rootID
		if c.RootID == "" {
			c.RootID = parentID
		}
		c.DescendantCount = 0
	}
	s.index[c.ID] = location{depth: c.Depth, parentID: c.ParentID, rootID: c.RootID}
}

// forgetChildrenLocked drops the cached descendants of id.
func (s *Store) forgetChildrenLocked(id string) {
	if l := s.replies[id]; l != nil {
		for _, c := range l.items {
			s.forgetChildrenLocked(c.ID)
			delete(s.index, c.ID)
			delete(s.expansion, c.ID)
		}
		delete(s.replies, id)
	}
	if l := s.nested[id]; l != nil {
		for _, c := range l.items {
			delete(s.index, c.ID)
		}
		delete(s.nested, id)
	}
}

func cloneComment(c Comment) Comment {
	if c.Attachment != nil {
		a := *c.Attachment
		c.Attachment = &a
	}
	return c
}

func cloneComments(in []Comment) []Comment {
	out := make([]Comment, len(in))
	for i := range in {
		out[i] = cloneComment(in[i])
	}
	return out
}
