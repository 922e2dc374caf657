// Package commentapi holds the wire shapes of the comment service HTTP API,
// shared by the client adapter and the reference service.
package commentapi

import (
	"strings"
	"time"

	"github.com/example/threadkit/internal/thread"
)

const (
	PathPosts     = "/posts"
	PathComments  = "/comments"
	PathReactions = "/reactions/comment"
	PathMedia     = "/media"
)

// Query parameters of GET /comments.
const (
	QueryPostID   = "post_id"
	QueryParentID = "parent_comment_id"
	QueryPage     = "page"
	QueryLimit    = "limit"
	QueryOrder    = "order"
)

// Multipart form fields of POST /comments and PUT /comments/{id}.
const (
	FieldText             = "text"
	FieldFile             = "file"
	FieldPostID           = "post_id"
	FieldParentID         = "parent_comment_id"
	FieldRemoveAttachment = "rmv_attach"
)

// MaxUploadBytes bounds one multipart request body.
const MaxUploadBytes = 16 << 20

type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

type Comment struct {
	ID              string      `json:"id"`
	PostID          string      `json:"post_id"`
	ParentID        string      `json:"parent_comment_id,omitempty"`
	Depth           int         `json:"depth"`
	AuthorID        string      `json:"author_id"`
	AuthorHandle    string      `json:"author_handle"`
	AuthorAvatar    string      `json:"author_avatar,omitempty"`
	Text            string      `json:"text"`
	Attachment      *Attachment `json:"attachment,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	Likes           int         `json:"likes"`
	Dislikes        int         `json:"dislikes"`
	UserLiked       bool        `json:"user_liked"`
	UserDisliked    bool        `json:"user_disliked"`
	ReplyCount      int         `json:"reply_count"`
	DescendantCount int         `json:"descendant_count,omitempty"`
}

type Post struct {
	ID           string       `json:"id"`
	AuthorID     string       `json:"author_id"`
	AuthorHandle string       `json:"author_handle"`
	AuthorAvatar string       `json:"author_avatar,omitempty"`
	Text         string       `json:"text"`
	Attachments  []Attachment `json:"attachments"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CommentPage is the body of GET /comments. CommentCount is the post-wide
// total and is only sent for root listings.
type CommentPage struct {
	Comments     []Comment `json:"comments"`
	CommentCount *int      `json:"comment_count,omitempty"`
}

// EditResult is the body of PUT /comments/{id}.
type EditResult struct {
	Attachment *Attachment `json:"attachment"`
}

type Success struct {
	Success bool `json:"success"`
}

// ReactionRequest is the body of POST /reactions/comment. Dislike and Del
// are 0 or 1.
type ReactionRequest struct {
	PostID    string `json:"post_id" validate:"required"`
	CommentID string `json:"comment_id" validate:"required"`
	Dislike   int    `json:"dislike" validate:"oneof=0 1"`
	Del       int    `json:"del" validate:"oneof=0 1"`
}

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

func Bit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (a *Attachment) Thread() *thread.Attachment {
	if a == nil || a.URL == "" {
		return nil
	}
	kind := thread.AttachmentImage
	if a.Type == string(thread.AttachmentVideo) {
		kind = thread.AttachmentVideo
	}
	return &thread.Attachment{URL: a.URL, Kind: kind}
}

func FromThreadAttachment(a *thread.Attachment) *Attachment {
	if a == nil {
		return nil
	}
	return &Attachment{URL: a.URL, Type: string(a.Kind)}
}

// Thread converts c to the store model. Tree position fields are left to
// the store.
func (c Comment) Thread() thread.Comment {
	return thread.Comment{
		ID:              c.ID,
		PostID:          c.PostID,
		ParentID:        c.ParentID,
		AuthorID:        c.AuthorID,
		AuthorHandle:    c.AuthorHandle,
		AuthorAvatar:    c.AuthorAvatar,
		Text:            c.Text,
		Attachment:      c.Attachment.Thread(),
		CreatedAt:       c.CreatedAt,
		LikeCount:       c.Likes,
		DislikeCount:    c.Dislikes,
		UserLiked:       c.UserLiked,
		UserDisliked:    c.UserDisliked,
		ReplyCount:      c.ReplyCount,
		DescendantCount: c.DescendantCount,
	}
}

func (p Post) Thread() thread.Post {
	out := thread.Post{
		ID:           p.ID,
		AuthorID:     p.AuthorID,
		AuthorHandle: p.AuthorHandle,
		AuthorAvatar: p.AuthorAvatar,
		Text:         p.Text,
		CreatedAt:    p.CreatedAt,
	}
	for i := range p.Attachments {
		if a := p.Attachments[i].Thread(); a != nil {
			out.Attachments = append(out.Attachments, *a)
		}
	}
	return out
}

// AttachmentType maps a media content type onto the wire attachment type.
func AttachmentType(contentType string) string {
	if strings.HasPrefix(contentType, "video/") {
		return string(thread.AttachmentVideo)
	}
	return string(thread.AttachmentImage)
}
