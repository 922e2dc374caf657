package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/threadkit/internal/commentapi"
	"github.com/example/threadkit/internal/platform/api"
	"github.com/example/threadkit/internal/platform/auth"
	"github.com/example/threadkit/internal/platform/httpserver"
	"github.com/example/threadkit/services/comments/internal/store"
)

type commentForm struct {
	PostID   string `validate:"required"`
	ParentID string
	Text     string `validate:"max=300"`
}

// ListComments handles GET /comments.
func ListComments(d Deps) http.HandlerFunc {
	d = d.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		q := r.URL.Query()

		postID := strings.TrimSpace(q.Get(commentapi.QueryPostID))
		if postID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id is required", rid, nil)
			return
		}
		page, ok := intParam(q.Get(commentapi.QueryPage), 1)
		if !ok || page < 1 || page > store.MaxPage {
			api.BadRequest(w, "INVALID_PAGE", "page must be a positive integer within range", rid, nil)
			return
		}
		limit, ok := intParam(q.Get(commentapi.QueryLimit), store.DefaultLimit)
		if !ok || limit < 1 {
			api.BadRequest(w, "INVALID_LIMIT", "limit must be a positive integer", rid, nil)
			return
		}
		order := strings.ToLower(strings.TrimSpace(q.Get(commentapi.QueryOrder)))
		if order != "" && order != store.OrderAsc && order != store.OrderDesc {
			api.BadRequest(w, "INVALID_ORDER", "order must be asc or desc", rid, nil)
			return
		}

		viewerID, _ := auth.UserIDFromContext(r.Context())
		params := store.ListParams{
			PostID:   postID,
			ParentID: strings.TrimSpace(q.Get(commentapi.QueryParentID)),
			Page:     page,
			Limit:    limit,
			Order:    order,
			ViewerID: viewerID,
		}
		comments, err := d.Store.ListComments(r.Context(), params)
		if err != nil {
			writeStoreError(w, rid, err)
			return
		}

		resp := commentapi.CommentPage{Comments: make([]commentapi.Comment, 0, len(comments))}
		for _, c := range comments {
			resp.Comments = append(resp.Comments, toWire(c))
		}
		if params.ParentID == "" {
			n, err := d.commentCount(r.Context(), postID)
			if err != nil {
				writeStoreError(w, rid, err)
				return
			}
			resp.CommentCount = &n
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// CreateComment handles POST /comments (multipart).
func CreateComment(d Deps) http.HandlerFunc {
	d = d.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}
		if !parseMultipart(w, r, rid) {
			return
		}

		form := commentForm{
			PostID:   strings.TrimSpace(r.FormValue(commentapi.FieldPostID)),
			ParentID: strings.TrimSpace(r.FormValue(commentapi.FieldParentID)),
			Text:     r.FormValue(commentapi.FieldText),
		}
		if err := d.Validate.Struct(form); err != nil {
			api.BadRequest(w, "VALIDATION_FAILED", err.Error(), rid, nil)
			return
		}

		c := store.Comment{
			PostID:       form.PostID,
			ParentID:     form.ParentID,
			AuthorID:     id.UserID,
			AuthorHandle: id.Handle,
			AuthorAvatar: id.Avatar,
			Text:         form.Text,
		}
		att, err := d.storeUpload(r)
		if err != nil {
			writeStoreError(w, rid, err)
			return
		}
		c.Attachment = att

		created, err := d.Store.CreateComment(r.Context(), c)
		if err != nil {
			if att != nil {
				d.Media.DeleteURL(att.URL)
			}
			writeStoreError(w, rid, err)
			return
		}
		d.Logger.Debug("comment created", zap.String("comment_id", created.ID), zap.String("post_id", created.PostID), zap.Int("depth", created.Depth))
		d.countChanged(r.Context(), created.PostID)
		api.WriteJSON(w, http.StatusCreated, toWire(created))
	}
}

// UpdateComment handles PUT /comments/{id} (multipart).
func UpdateComment(d Deps) http.HandlerFunc {
	d = d.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}
		commentID := strings.TrimSpace(chi.URLParam(r, "id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment id is required", rid, nil)
			return
		}
		if !parseMultipart(w, r, rid) {
			return
		}

		text := r.FormValue(commentapi.FieldText)
		if err := d.Validate.Var(text, "max=300"); err != nil {
			api.BadRequest(w, "VALIDATION_FAILED", "text must be at most 300 characters", rid, nil)
			return
		}
		remove := r.FormValue(commentapi.FieldRemoveAttachment) == "1"
		att, err := d.storeUpload(r)
		if err != nil {
			writeStoreError(w, rid, err)
			return
		}
		if att != nil && remove {
			d.Media.DeleteURL(att.URL)
			api.BadRequest(w, "CONFLICTING_ATTACHMENT", "file and rmv_attach are mutually exclusive", rid, nil)
			return
		}

		updated, err := d.Store.UpdateComment(r.Context(), commentID, userID, store.CommentUpdate{
			Text:             text,
			Attachment:       att,
			RemoveAttachment: remove,
		})
		if err != nil {
			if att != nil {
				d.Media.DeleteURL(att.URL)
			}
			writeStoreError(w, rid, err)
			return
		}

		var res commentapi.EditResult
		if updated.Attachment != nil {
			res.Attachment = &commentapi.Attachment{URL: updated.Attachment.URL, Type: updated.Attachment.Type}
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}

// DeleteComment handles DELETE /comments/{id}.
func DeleteComment(d Deps) http.HandlerFunc {
	d = d.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}
		commentID := strings.TrimSpace(chi.URLParam(r, "id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment id is required", rid, nil)
			return
		}

		deleted, err := d.Store.DeleteComment(r.Context(), commentID, userID)
		if err != nil {
			writeStoreError(w, rid, err)
			return
		}
		if deleted.Attachment != nil {
			d.Media.DeleteURL(deleted.Attachment.URL)
		}
		d.countChanged(r.Context(), deleted.PostID)
		api.WriteJSON(w, http.StatusOK, commentapi.Success{Success: true})
	}
}

// parseMultipart reads a multipart body bounded by MaxUploadBytes and
// writes the error response itself when it fails.
func parseMultipart(w http.ResponseWriter, r *http.Request, rid string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, commentapi.MaxUploadBytes)
	err := r.ParseMultipartForm(commentapi.MaxUploadBytes)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.TooLarge(w, "TOO_LARGE", "request body too large", rid)
		return false
	}
	api.BadRequest(w, "INVALID_FORM", "invalid multipart form", rid, nil)
	return false
}

// storeUpload saves the optional file part and returns its attachment.
func (d Deps) storeUpload(r *http.Request) (*store.Attachment, error) {
	f, hdr, err := r.FormFile(commentapi.FieldFile)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	obj, err := d.Media.Put(hdr.Filename, hdr.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, err
	}
	wa := obj.Attachment()
	return &store.Attachment{URL: wa.URL, Type: wa.Type}, nil
}

func intParam(raw string, fallback int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
