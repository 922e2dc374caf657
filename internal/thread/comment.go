package thread

import (
	"context"
	"time"
)

// Depth is the nesting level of a comment inside a post's thread.
type Depth int

const (
	DepthRoot   Depth = 0
	DepthReply  Depth = 1
	DepthNested Depth = 2
)

func (d Depth) String() string {
	switch d {
	case DepthRoot:
		return "root"
	case DepthReply:
		return "reply"
	case DepthNested:
		return "nested"
	default:
		return "unknown"
	}
}

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
)

// Attachment references media already stored by the comment service.
type Attachment struct {
	URL  string         `json:"url"`
	Kind AttachmentKind `json:"kind"`
}

// Upload is a new media file sent along with a comment.
type Upload struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-" validate:"min=1"`
}

// Comment is one node of the three-level tree rooted at a post.
// Depth, ParentID and RootID are assigned by the Store when the comment
// enters one of its lists.
type Comment struct {
	ID           string      `json:"id"`
	PostID       string      `json:"post_id"`
	ParentID     string      `json:"parent_id,omitempty"`
	RootID       string      `json:"root_id"`
	Depth        Depth       `json:"depth"`
	AuthorID     string      `json:"author_id,omitempty"`
	AuthorHandle string      `json:"author_handle"`
	AuthorAvatar string      `json:"author_avatar,omitempty"`
	Text         string      `json:"text,omitempty"`
	Attachment   *Attachment `json:"attachment,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	LikeCount    int         `json:"like_count"`
	DislikeCount int         `json:"dislike_count"`
	UserLiked    bool        `json:"user_liked"`
	UserDisliked bool        `json:"user_disliked"`
	// ReplyCount counts direct children only.
	ReplyCount int `json:"reply_count"`
	// DescendantCount is kept on root comments: replies plus nested replies.
	DescendantCount int `json:"descendant_count,omitempty"`
}

// Pristine reports whether nobody has replied to or reacted on the comment.
func (c Comment) Pristine() bool {
	return c.ReplyCount == 0 && c.LikeCount == 0 && c.DislikeCount == 0
}

// CanEdit reports whether viewerID may edit c. An empty viewerID skips the
// authorship check.
func CanEdit(c Comment, viewerID string) bool {
	if !c.Pristine() {
		return false
	}
	return viewerID == "" || c.AuthorID == "" || c.AuthorID == viewerID
}

// Post is the item a thread hangs off.
type Post struct {
	ID           string       `json:"id"`
	AuthorID     string       `json:"author_id"`
	AuthorHandle string       `json:"author_handle"`
	AuthorAvatar string       `json:"author_avatar,omitempty"`
	Text         string       `json:"text,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Viewer is the locally known identity of the current user, stamped onto
// comments it creates before the service's canonical copy is ever fetched.
type Viewer struct {
	ID     string
	Handle string
	Avatar string
}

type Reaction int

const (
	Like Reaction = iota + 1
	Dislike
)

func (r Reaction) String() string {
	switch r {
	case Like:
		return "like"
	case Dislike:
		return "dislike"
	default:
		return "none"
	}
}

// Order of a comment listing.
const (
	OrderNewest = "desc"
	OrderOldest = "asc"
)

type ListQuery struct {
	PostID   string
	ParentID string // empty lists root comments
	Page     int
	Limit    int
	Order    string
}

type ListResult struct {
	Comments []Comment
	// Total is the service-reported count for the whole post, when present.
	Total *int
}

type NewComment struct {
	PostID   string
	ParentID string
	Text     string
	Upload   *Upload
}

type CommentEdit struct {
	ParentID         string
	Text             string
	Upload           *Upload
	RemoveAttachment bool
}

type ReactionRequest struct {
	PostID    string
	CommentID string
	Dislike   bool
	Remove    bool
}

// Service is the port to the remote comment service.
type Service interface {
	GetPost(ctx context.Context, postID string) (Post, error)
	ListComments(ctx context.Context, q ListQuery) (ListResult, error)
	CreateComment(ctx context.Context, c NewComment) (Comment, error)
	// UpdateComment returns the attachment the comment carries after the edit.
	UpdateComment(ctx context.Context, commentID string, e CommentEdit) (*Attachment, error)
	DeleteComment(ctx context.Context, commentID string) error
	ReactToComment(ctx context.Context, r ReactionRequest) error
}
