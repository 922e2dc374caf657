package store

import (
	"context"
	"errors"
	"math"
	"time"
)

// MaxDepth is the deepest level a comment can sit at. A reply to a comment
// at MaxDepth is attached to that comment's parent instead.
const MaxDepth = 2

const (
	OrderDesc = "desc"
	OrderAsc  = "asc"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
	// MaxPage keeps Offset within int for any accepted limit.
	MaxPage = math.MaxInt / MaxLimit
)

type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	AuthorHandle string    `json:"author_handle"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}

type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Comment represents a single comment row. UserReaction is the viewer's own
// reaction (1 like, -1 dislike, 0 none) and is only filled by reads that
// carry a viewer.
type Comment struct {
	ID              string      `json:"id"`
	PostID          string      `json:"post_id"`
	ParentID        string      `json:"parent_id,omitempty"`
	RootID          string      `json:"root_id"`
	Depth           int         `json:"depth"`
	AuthorID        string      `json:"author_id"`
	AuthorHandle    string      `json:"author_handle"`
	AuthorAvatar    string      `json:"author_avatar,omitempty"`
	Text            string      `json:"text"`
	Attachment      *Attachment `json:"attachment,omitempty"`
	Likes           int         `json:"likes"`
	Dislikes        int         `json:"dislikes"`
	ReplyCount      int         `json:"reply_count"`
	DescendantCount int         `json:"descendant_count"`
	UserReaction    int8        `json:"user_reaction"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       *time.Time  `json:"updated_at,omitempty"`
	DeletedAt       *time.Time  `json:"deleted_at,omitempty"`
}

// Pristine reports whether the comment has no replies and no reactions.
func (c Comment) Pristine() bool {
	return c.ReplyCount == 0 && c.Likes == 0 && c.Dislikes == 0
}

type ListParams struct {
	PostID   string
	ParentID string // empty lists root comments
	Page     int
	Limit    int
	Order    string
	ViewerID string
}

// Normalize clamps paging and ordering to supported values.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Order != OrderAsc {
		p.Order = OrderDesc
	}
	return p
}

func (p ListParams) Offset() int { return (p.Page - 1) * p.Limit }

// CommentUpdate describes an edit. Attachment replaces the current one;
// RemoveAttachment drops it.
type CommentUpdate struct {
	Text             string
	Attachment       *Attachment
	RemoveAttachment bool
}

// Store defines the contract for post and comment persistence.
type Store interface {
	CreatePost(ctx context.Context, p Post) (Post, error)
	GetPost(ctx context.Context, postID string) (Post, error)

	// CreateComment places c under c.ParentID, capping the depth at MaxDepth,
	// and bumps the ancestors' counters.
	CreateComment(ctx context.Context, c Comment) (Comment, error)
	ListComments(ctx context.Context, p ListParams) ([]Comment, error)
	// CountComments counts the live comments of a post at every depth.
	CountComments(ctx context.Context, postID string) (int, error)
	GetComment(ctx context.Context, commentID, viewerID string) (Comment, error)
	// UpdateComment edits a pristine comment owned by userID.
	UpdateComment(ctx context.Context, commentID, userID string, u CommentUpdate) (Comment, error)
	// DeleteComment soft-deletes a comment owned by userID and returns it.
	DeleteComment(ctx context.Context, commentID, userID string) (Comment, error)
	// React sets (del=false) or clears (del=true) userID's like or dislike.
	React(ctx context.Context, commentID, userID string, dislike, del bool) (Comment, error)
}

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrNotFound        = errors.New("comment not found")
	ErrParentNotFound  = errors.New("parent comment not found")
	ErrParentMismatch  = errors.New("parent comment belongs to another post")
	ErrForbidden       = errors.New("comment not owned by user")
	ErrNotEditable     = errors.New("comment has replies or reactions")
	ErrEmptyComment    = errors.New("comment needs text or an attachment")
	ErrInvalidReaction = errors.New("reaction does not match the current one")
)

// placeUnder returns the effective parent for a reply to parent, capping the
// tree at MaxDepth.
func placeUnder(parent Comment) (parentID, rootID string, depth int) {
	if parent.Depth >= MaxDepth {
		return parent.ParentID, parent.RootID, MaxDepth
	}
	rootID = parent.RootID
	if parent.Depth == 0 {
		rootID = parent.ID
	}
	return parent.ID, rootID, parent.Depth + 1
}

// reactionDelta computes the like/dislike count changes and the new
// reaction when a user with current reaction cur reacts.
func reactionDelta(cur int8, dislike, del bool) (likes, dislikes int, next int8, err error) {
	want := int8(1)
	if dislike {
		want = -1
	}
	if del {
		if cur != want {
			return 0, 0, cur, ErrInvalidReaction
		}
		next = 0
	} else {
		next = want
	}
	if cur == next {
		return 0, 0, cur, nil
	}
	switch cur {
	case 1:
		likes--
	case -1:
		dislikes--
	}
	switch next {
	case 1:
		likes++
	case -1:
		dislikes++
	}
	return likes, dislikes, next, nil
}
