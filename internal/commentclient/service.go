package commentclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"

	"github.com/example/threadkit/internal/commentapi"
	"github.com/example/threadkit/internal/thread"
)

var (
	// ErrInconsistentResponse wraps thread.ErrInconsistentResponse so the
	// store can recognise a malformed page.
	ErrInconsistentResponse = fmt.Errorf("comment client: %w", thread.ErrInconsistentResponse)
	// ErrRejected is returned when the service answered 2xx with success=false.
	ErrRejected = errors.New("comment service rejected the request")
)

var _ thread.Service = (*Client)(nil)

func (c *Client) GetPost(ctx context.Context, postID string) (thread.Post, error) {
	req, err := c.request(ctx)
	if err != nil {
		return thread.Post{}, err
	}
	body, err := c.do("get post", func() (*resty.Response, error) {
		return req.SetPathParam("id", postID).Get(commentapi.PathPosts + "/{id}")
	})
	if err != nil {
		return thread.Post{}, err
	}
	var p commentapi.Post
	if err := decode("get post", body, &p); err != nil {
		return thread.Post{}, err
	}
	if p.ID == "" {
		return thread.Post{}, fmt.Errorf("get post: %w: missing id", ErrInconsistentResponse)
	}
	return p.Thread(), nil
}

// ListComments fetches one page of the children of q.ParentID, or of the
// root comments when it is empty.
func (c *Client) ListComments(ctx context.Context, q thread.ListQuery) (thread.ListResult, error) {
	req, err := c.request(ctx)
	if err != nil {
		return thread.ListResult{}, err
	}
	params := map[string]string{
		commentapi.QueryPostID: q.PostID,
		commentapi.QueryPage:   strconv.Itoa(q.Page),
		commentapi.QueryLimit:  strconv.Itoa(q.Limit),
	}
	if q.ParentID != "" {
		params[commentapi.QueryParentID] = q.ParentID
	}
	if q.Order != "" {
		params[commentapi.QueryOrder] = q.Order
	}
	body, err := c.do("list comments", func() (*resty.Response, error) {
		return req.SetQueryParams(params).Get(commentapi.PathComments)
	})
	if err != nil {
		return thread.ListResult{}, err
	}

	var page commentapi.CommentPage
	if err := decode("list comments", body, &page); err != nil {
		return thread.ListResult{}, err
	}
	if page.Comments == nil {
		return thread.ListResult{}, fmt.Errorf("list comments: %w: no comments array", ErrInconsistentResponse)
	}
	out := thread.ListResult{Comments: make([]thread.Comment, 0, len(page.Comments)), Total: page.CommentCount}
	for _, wc := range page.Comments {
		if wc.ID == "" {
			return thread.ListResult{}, fmt.Errorf("list comments: %w: comment without id", ErrInconsistentResponse)
		}
		if q.ParentID != "" && wc.ParentID != "" && wc.ParentID != q.ParentID {
			return thread.ListResult{}, fmt.Errorf("list comments: %w: comment %s belongs to %s", ErrInconsistentResponse, wc.ID, wc.ParentID)
		}
		out.Comments = append(out.Comments, wc.Thread())
	}
	return out, nil
}

func (c *Client) CreateComment(ctx context.Context, nc thread.NewComment) (thread.Comment, error) {
	req, err := c.request(ctx)
	if err != nil {
		return thread.Comment{}, err
	}
	fields := map[string]string{commentapi.FieldPostID: nc.PostID}
	if nc.Text != "" {
		fields[commentapi.FieldText] = nc.Text
	}
	if nc.ParentID != "" {
		fields[commentapi.FieldParentID] = nc.ParentID
	}
	req.SetMultipartFormData(fields)
	attachUpload(req, nc.Upload)

	body, err := c.do("create comment", func() (*resty.Response, error) {
		return req.Post(commentapi.PathComments)
	})
	if err != nil {
		return thread.Comment{}, err
	}
	var wc commentapi.Comment
	if err := decode("create comment", body, &wc); err != nil {
		return thread.Comment{}, err
	}
	if wc.ID == "" {
		return thread.Comment{}, fmt.Errorf("create comment: %w: missing id", ErrInconsistentResponse)
	}
	return wc.Thread(), nil
}

func (c *Client) UpdateComment(ctx context.Context, commentID string, e thread.CommentEdit) (*thread.Attachment, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{commentapi.FieldText: e.Text}
	if e.ParentID != "" {
		fields[commentapi.FieldParentID] = e.ParentID
	}
	if e.RemoveAttachment {
		fields[commentapi.FieldRemoveAttachment] = "1"
	}
	req.SetMultipartFormData(fields)
	attachUpload(req, e.Upload)

	body, err := c.do("update comment", func() (*resty.Response, error) {
		return req.SetPathParam("id", commentID).Put(commentapi.PathComments + "/{id}")
	})
	if err != nil {
		return nil, err
	}
	var res commentapi.EditResult
	if err := decode("update comment", body, &res); err != nil {
		return nil, err
	}
	return res.Attachment.Thread(), nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	body, err := c.do("delete comment", func() (*resty.Response, error) {
		return req.SetPathParam("id", commentID).Delete(commentapi.PathComments + "/{id}")
	})
	if err != nil {
		return err
	}
	return checkSuccess("delete comment", body)
}

func (c *Client) ReactToComment(ctx context.Context, r thread.ReactionRequest) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(commentapi.ReactionRequest{
		PostID:    r.PostID,
		CommentID: r.CommentID,
		Dislike:   commentapi.Bit(r.Dislike),
		Del:       commentapi.Bit(r.Remove),
	})
	if err != nil {
		return fmt.Errorf("react: %w", err)
	}
	body, err := c.do("react", func() (*resty.Response, error) {
		return req.SetHeader("Content-Type", "application/json").SetBody(payload).Post(commentapi.PathReactions)
	})
	if err != nil {
		return err
	}
	return checkSuccess("react", body)
}

func attachUpload(req *resty.Request, u *thread.Upload) {
	if u == nil {
		return
	}
	ct := u.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	req.SetMultipartField(commentapi.FieldFile, u.Filename, ct, bytes.NewReader(u.Data))
}

func checkSuccess(op string, body []byte) error {
	var res commentapi.Success
	if err := decode(op, body, &res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s: %w", op, ErrRejected)
	}
	return nil
}
