package handlers

import (
	"errors"
	"net/http"

	"github.com/example/threadkit/internal/platform/api"
	"github.com/example/threadkit/services/comments/internal/media"
	"github.com/example/threadkit/services/comments/internal/store"
)

// writeStoreError maps store and media errors to API errors.
func writeStoreError(w http.ResponseWriter, rid string, err error) {
	switch {
	case errors.Is(err, store.ErrPostNotFound):
		api.NotFound(w, "POST_NOT_FOUND", "post not found", rid)
	case errors.Is(err, store.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "comment not found", rid)
	case errors.Is(err, store.ErrParentNotFound):
		api.NotFound(w, "PARENT_NOT_FOUND", "parent comment not found", rid)
	case errors.Is(err, store.ErrParentMismatch):
		api.BadRequest(w, "PARENT_MISMATCH", "parent comment belongs to another post", rid, nil)
	case errors.Is(err, store.ErrForbidden):
		api.Forbidden(w, "FORBIDDEN", "comment not owned by user", rid)
	case errors.Is(err, store.ErrNotEditable):
		api.Conflict(w, "NOT_EDITABLE", "comment has replies or reactions", rid, nil)
	case errors.Is(err, store.ErrEmptyComment), errors.Is(err, media.ErrEmpty):
		api.BadRequest(w, "EMPTY_COMMENT", "text or attachment is required", rid, nil)
	case errors.Is(err, store.ErrInvalidReaction):
		api.Conflict(w, "INVALID_REACTION", "reaction does not match the current one", rid, nil)
	case errors.Is(err, media.ErrUnsupportedType):
		api.BadRequest(w, "UNSUPPORTED_MEDIA", "only image and video attachments are supported", rid, nil)
	case errors.Is(err, media.ErrTooLarge):
		api.TooLarge(w, "TOO_LARGE", "attachment too large", rid)
	case errors.Is(err, media.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "media not found", rid)
	default:
		api.Internal(w, rid)
	}
}
