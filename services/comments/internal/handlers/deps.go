// Package handlers implements the comment service HTTP API.
package handlers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/threadkit/internal/commentapi"
	"github.com/example/threadkit/internal/thread"
	"github.com/example/threadkit/services/comments/internal/countcache"
	"github.com/example/threadkit/services/comments/internal/media"
	"github.com/example/threadkit/services/comments/internal/store"
)

// Deps are the collaborators shared by every handler.
type Deps struct {
	Store  store.Store
	Media  *media.Store
	Counts countcache.Cache
	// Events receives the post-wide count after every create and delete.
	// Optional.
	Events   thread.CountListener
	Validate *validator.Validate
	Logger   *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Media == nil {
		d.Media = media.NewStore(commentapi.MaxUploadBytes)
	}
	if d.Validate == nil {
		d.Validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// commentCount returns the live comment count of postID, served from the
// cache when possible.
func (d Deps) commentCount(ctx context.Context, postID string) (int, error) {
	if d.Counts != nil {
		n, ok, err := d.Counts.Get(ctx, postID)
		if err != nil {
			d.Logger.Warn("count cache get", zap.String("post_id", postID), zap.Error(err))
		} else if ok {
			return n, nil
		}
	}
	n, err := d.Store.CountComments(ctx, postID)
	if err != nil {
		return 0, err
	}
	if d.Counts != nil {
		if err := d.Counts.Set(ctx, postID, n); err != nil {
			d.Logger.Warn("count cache set", zap.String("post_id", postID), zap.Error(err))
		}
	}
	return n, nil
}

// countChanged drops the cached count and announces the new one.
func (d Deps) countChanged(ctx context.Context, postID string) {
	if d.Counts != nil {
		if err := d.Counts.Invalidate(ctx, postID); err != nil {
			d.Logger.Warn("count cache invalidate", zap.String("post_id", postID), zap.Error(err))
		}
	}
	if d.Events == nil {
		return
	}
	n, err := d.commentCount(ctx, postID)
	if err != nil {
		d.Logger.Warn("recount comments", zap.String("post_id", postID), zap.Error(err))
		return
	}
	d.Events.CommentCountUpdated(thread.CountUpdate{PostID: postID, Count: n})
}

func toWire(c store.Comment) commentapi.Comment {
	out := commentapi.Comment{
		ID:           c.ID,
		PostID:       c.PostID,
		ParentID:     c.ParentID,
		Depth:        c.Depth,
		AuthorID:     c.AuthorID,
		AuthorHandle: c.AuthorHandle,
		AuthorAvatar: c.AuthorAvatar,
		Text:         c.Text,
		CreatedAt:    c.CreatedAt,
		Likes:        c.Likes,
		Dislikes:     c.Dislikes,
		UserLiked:    c.UserReaction > 0,
		UserDisliked: c.UserReaction < 0,
		ReplyCount:   c.ReplyCount,
	}
	if c.Depth == 0 {
		out.DescendantCount = c.DescendantCount
	}
	if c.Attachment != nil {
		out.Attachment = &commentapi.Attachment{URL: c.Attachment.URL, Type: c.Attachment.Type}
	}
	return out
}

func postToWire(p store.Post) commentapi.Post {
	return commentapi.Post{
		ID:           p.ID,
		AuthorID:     p.AuthorID,
		AuthorHandle: p.AuthorHandle,
		AuthorAvatar: p.AuthorAvatar,
		Text:         p.Text,
		Attachments:  []commentapi.Attachment{},
		CreatedAt:    p.CreatedAt,
	}
}
