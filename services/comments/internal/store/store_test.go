package store

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/example/threadkit/internal/platform/db"
)

// runSuite exercises the Store contract against any implementation.
func runSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndListRoots", func(t *testing.T) { testCreateAndListRoots(t, newStore(t)) })
	t.Run("Paging", func(t *testing.T) { testPaging(t, newStore(t)) })
	t.Run("DepthCap", func(t *testing.T) { testDepthCap(t, newStore(t)) })
	t.Run("ParentErrors", func(t *testing.T) { testParentErrors(t, newStore(t)) })
	t.Run("UpdateRules", func(t *testing.T) { testUpdateRules(t, newStore(t)) })
	t.Run("DeleteCascade", func(t *testing.T) { testDeleteCascade(t, newStore(t)) })
	t.Run("Reactions", func(t *testing.T) { testReactions(t, newStore(t)) })
}

func TestMemoryStore(t *testing.T) {
	runSuite(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	runSuite(t, func(t *testing.T) Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pool, err := db.Open(ctx, dsn)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(pool.Close)
		s := NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		return s
	})
}

func seedPost(t *testing.T, s Store) Post {
	t.Helper()
	p, err := s.CreatePost(context.Background(), Post{AuthorID: "author", AuthorHandle: "author", Text: "post body"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

func mustComment(t *testing.T, s Store, c Comment) Comment {
	t.Helper()
	if c.AuthorID == "" {
		c.AuthorID = "user-a"
		c.AuthorHandle = "alice"
	}
	if c.Text == "" && c.Attachment == nil {
		c.Text = "hello"
	}
	out, err := s.CreateComment(context.Background(), c)
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return out
}

func testCreateAndListRoots(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedPost(t, s)

	first := mustComment(t, s, Comment{PostID: p.ID, Text: "first"})
	second := mustComment(t, s, Comment{PostID: p.ID, Text: "second"})
	if first.ID == "" || first.RootID != first.ID || first.Depth != 0 {
		t.Fatalf("unexpected root fields: %+v", first)
	}

	got, err := s.ListComments(ctx, ListParams{PostID: p.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", got)
	}

	got, _ = s.ListComments(ctx, ListParams{PostID: p.ID, Order: OrderAsc})
	if got[0].ID != first.ID {
		t.Fatalf("expected oldest first with asc order, got %s", got[0].ID)
	}

	if _, err := s.CreateComment(ctx, Comment{PostID: p.ID, AuthorID: "user-a", Text: "  "}); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("expected ErrEmptyComment, got %v", err)
	}
	if _, err := s.ListComments(ctx, ListParams{PostID: "missing"}); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func testPaging(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedPost(t, s)
	for i := 0; i < 12; i++ {
		mustComment(t, s, Comment{PostID: p.ID})
	}

	page1, _ := s.ListComments(ctx, ListParams{PostID: p.ID, Page: 1, Limit: 5})
	page3, _ := s.ListComments(ctx, ListParams{PostID: p.ID, Page: 3, Limit: 5})
	page4, err := s.ListComments(ctx, ListParams{PostID: p.ID, Page: 4, Limit: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page1) != 5 || len(page3) != 2 || len(page4) != 0 {
		t.Fatalf("unexpected page sizes: %d %d %d", len(page1), len(page3), len(page4))
	}
	if page4 == nil {
		t.Fatal("expected empty slice, got nil")
	}

	n, err := s.CountComments(ctx, p.ID)
	if err != nil || n != 12 {
		t.Fatalf("expected 12 comments, got %d (%v)", n, err)
	}
}

func testDepthCap(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedPost(t, s)

	root := mustComment(t, s, Comment{PostID: p.ID})
	reply := mustComment(t, s, Comment{PostID: p.ID, ParentID: root.ID})
	nested := mustComment(t, s, Comment{PostID: p.ID, ParentID: reply.ID})
	deeper := mustComment(t, s, Comment{PostID: p.ID, ParentID: nested.ID})

	if reply.Depth != 1 || reply.RootID != root.ID {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if nested.Depth != 2 || nested.ParentID != reply.ID || nested.RootID != root.ID {
		t.Fatalf("unexpected nested reply: %+v", nested)
	}
	if deeper.Depth != MaxDepth || deeper.ParentID != reply.ID {
		t.Fatalf("expected reply to depth %d to attach to %s, got %+v", MaxDepth, reply.ID, deeper)
	}

	gotRoot, _ := s.GetComment(ctx, root.ID, "")
	gotReply, _ := s.GetComment(ctx, reply.ID, "")
	if gotRoot.ReplyCount != 1 || gotRoot.DescendantCount != 3 {
		t.Fatalf("root counters: replies=%d descendants=%d", gotRoot.ReplyCount, gotRoot.DescendantCount)
	}
	if gotReply.ReplyCount != 2 {
		t.Fatalf("expected 2 replies under reply, got %d", gotReply.ReplyCount)
	}

	children, _ := s.ListComments(ctx, ListParams{PostID: p.ID, ParentID: reply.ID, Order: OrderAsc})
	if len(children) != 2 || children[0].ID != nested.ID || children[1].ID != deeper.ID {
		t.Fatalf("unexpected children: %+v", children)
	}
	roots, _ := s.ListComments(ctx, ListParams{PostID: p.ID})
	if len(roots) != 1 {
		t.Fatalf("expected replies to stay out of the root listing, got %d", len(roots))
	}
}

func testParentErrors(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedPost(t, s)
	other := seedPost(t, s)
	foreign := mustComment(t, s, Comment{PostID: other.ID})

	if _, err := s.CreateComment(ctx, Comment{PostID: p.ID, ParentID: "nope", AuthorID: "u", Text: "x"}); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
	if _, err := s.CreateComment(ctx, Comment{PostID: p.ID, ParentID: foreign.ID, AuthorID: "u", Text: "x"}); !errors.Is(err, ErrParentMismatch) {
		t.Fatalf("expected ErrParentMismatch, got %v", err)
	}
	if _, err := s.CreateComment(ctx, Comment{PostID: "missing", AuthorID: "u", Text: "x"}); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if _, err := s.ListComments(ctx, ListParams{PostID: p.ID, ParentID: foreign.ID}); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound for foreign parent listing, got %v", err)
	}
}

func testUpdateRules(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedPost(t, s)
	img := &Attachment{URL: "/media/1", Type: "image"}
	c := mustComment(t, s, Comment{PostID: p.ID, Text: "original", Attachment: img})

	if _, err := s.UpdateComment(ctx, c.ID, "user-b", CommentUpdate{Text: "hacked"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-author, got %v", err)
	}

	got, err := s.UpdateComment(ctx, c.ID, "user-a", CommentUpdate{Text: "edited"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Text != "edited" || got.Attachment == nil || got.Attachment.URL != "/media/1" || got.UpdatedAt == nil {
		t.Fatalf("expected text edit to keep the attachment, got %+v", got)
	}

	got, err = s.UpdateComment(ctx, c.ID, "user-a", CommentUpdate{Text: "edited", RemoveAttachment: true})
	if err != nil || got.Attachment != nil {
		t.Fatalf("expected attachment removed, got %+v (%v)", got.Attachment, err)
	}
	if _, err := s.UpdateComment(ctx, c.ID, "user-a", CommentUpdate{Text: ""}); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("expected ErrEmptyComment, got %v", err)
	}

	if _, err := s.React(ctx, c.ID, "user-b", false, false); err != nil {
		t.Fatalf("react: %v", err)
	}
	if _, err := s.UpdateComment(ctx, c.ID, "user-a", CommentUpdate{Text: "again"}); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable after a reaction, got %v", err)
	}

	parent := mustComment(t, s, Comment{PostID: p.ID})
	mustComment(t, s, Comment{PostID: p.ID, ParentID: parent.ID})
	if _, err := s.UpdateComment(ctx, parent.ID, "user-a", CommentUpdate{Text: "x"}); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable with replies, got %v", err)
	}
}

func testDeleteCascade(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedPost(t, s)

	root := mustComment(t, s, Comment{PostID: p.ID})
	reply := mustComment(t, s, Comment{PostID: p.ID, ParentID: root.ID})
	mustComment(t, s, Comment{PostID: p.ID, ParentID: reply.ID})
	sibling := mustComment(t, s, Comment{PostID: p.ID, ParentID: root.ID})

	if _, err := s.DeleteComment(ctx, reply.ID, "user-b"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	deleted, err := s.DeleteComment(ctx, reply.ID, "user-a")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != reply.ID || deleted.ParentID != root.ID {
		t.Fatalf("unexpected deleted comment: %+v", deleted)
	}

	gotRoot, _ := s.GetComment(ctx, root.ID, "")
	if gotRoot.ReplyCount != 1 || gotRoot.DescendantCount != 1 {
		t.Fatalf("root counters after delete: replies=%d descendants=%d", gotRoot.ReplyCount, gotRoot.DescendantCount)
	}
	children, _ := s.ListComments(ctx, ListParams{PostID: p.ID, ParentID: root.ID})
	if len(children) != 1 || children[0].ID != sibling.ID {
		t.Fatalf("expected only the sibling left, got %+v", children)
	}
	if n, _ := s.CountComments(ctx, p.ID); n != 2 {
		t.Fatalf("expected 2 live comments, got %d", n)
	}
	if _, err := s.DeleteComment(ctx, reply.ID, "user-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.GetComment(ctx, reply.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted comment to be hidden, got %v", err)
	}
}

func testReactions(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedPost(t, s)
	c := mustComment(t, s, Comment{PostID: p.ID})

	got, err := s.React(ctx, c.ID, "user-b", false, false)
	if err != nil || got.Likes != 1 || got.UserReaction != 1 {
		t.Fatalf("like: %+v (%v)", got, err)
	}
	got, _ = s.React(ctx, c.ID, "user-b", false, false)
	if got.Likes != 1 {
		t.Fatalf("repeated like must not double count, got %d", got.Likes)
	}
	got, _ = s.React(ctx, c.ID, "user-b", true, false)
	if got.Likes != 0 || got.Dislikes != 1 || got.UserReaction != -1 {
		t.Fatalf("switch to dislike: %+v", got)
	}
	if _, err := s.React(ctx, c.ID, "user-b", false, true); !errors.Is(err, ErrInvalidReaction) {
		t.Fatalf("expected ErrInvalidReaction removing a like that is not there, got %v", err)
	}
	got, _ = s.React(ctx, c.ID, "user-b", true, true)
	if got.Dislikes != 0 || got.UserReaction != 0 {
		t.Fatalf("remove dislike: %+v", got)
	}

	_, _ = s.React(ctx, c.ID, "user-c", false, false)
	viewer, _ := s.GetComment(ctx, c.ID, "user-c")
	anon, _ := s.GetComment(ctx, c.ID, "")
	if viewer.UserReaction != 1 || anon.UserReaction != 0 || anon.Likes != 1 {
		t.Fatalf("viewer=%+v anon=%+v", viewer, anon)
	}
	if _, err := s.React(ctx, "missing", "user-b", false, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReactionDelta(t *testing.T) {
	tests := []struct {
		name         string
		cur          int8
		dislike, del bool
		likes, dis   int
		next         int8
		wantErr      bool
	}{
		{"like from none", 0, false, false, 1, 0, 1, false},
		{"dislike from like", 1, true, false, -1, 1, -1, false},
		{"remove like", 1, false, true, -1, 0, 0, false},
		{"remove missing dislike", 1, true, true, 0, 0, 1, true},
		{"like again", 1, false, false, 0, 0, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, d, next, err := reactionDelta(tt.cur, tt.dislike, tt.del)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if l != tt.likes || d != tt.dis || next != tt.next {
				t.Fatalf("got (%d, %d, %d), want (%d, %d, %d)", l, d, next, tt.likes, tt.dis, tt.next)
			}
		})
	}
}

func TestListParamsNormalize(t *testing.T) {
	p := ListParams{Page: -1, Limit: 500, Order: "sideways"}.Normalize()
	if p.Page != 1 || p.Limit != MaxLimit || p.Order != OrderDesc {
		t.Fatalf("unexpected normalized params: %+v", p)
	}
	if off := (ListParams{Page: 3, Limit: 10}).Offset(); off != 20 {
		t.Fatalf("expected offset 20, got %d", off)
	}
	huge := ListParams{Page: math.MaxInt, Limit: MaxLimit}.Normalize()
	if huge.Page != MaxPage || huge.Offset() < 0 {
		t.Fatalf("expected page clamped to %d with a non-negative offset, got %+v (offset %d)", MaxPage, huge, huge.Offset())
	}
}

func TestMemoryStore_PageBeyondEnd(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p, _ := s.CreatePost(ctx, Post{AuthorID: "a", Text: "post"})
	if _, err := s.CreateComment(ctx, Comment{PostID: p.ID, AuthorID: "a", Text: "hi"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.ListComments(ctx, ListParams{PostID: p.ID, Page: math.MaxInt, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected an empty page, got %d comments", len(got))
	}
}
