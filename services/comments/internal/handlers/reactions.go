package handlers

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/example/threadkit/internal/commentapi"
	"github.com/example/threadkit/internal/platform/api"
	"github.com/example/threadkit/internal/platform/auth"
	"github.com/example/threadkit/internal/platform/httpserver"
)

// React handles POST /reactions/comment.
func React(d Deps) http.HandlerFunc {
	d = d.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}

		var req commentapi.ReactionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if err := d.Validate.Struct(req); err != nil {
			api.BadRequest(w, "VALIDATION_FAILED", err.Error(), rid, nil)
			return
		}

		c, err := d.Store.GetComment(r.Context(), req.CommentID, userID)
		if err != nil {
			writeStoreError(w, rid, err)
			return
		}
		if c.PostID != req.PostID {
			api.NotFound(w, "NOT_FOUND", "comment not found", rid)
			return
		}
		if _, err := d.Store.React(r.Context(), req.CommentID, userID, req.Dislike == 1, req.Del == 1); err != nil {
			writeStoreError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, commentapi.Success{Success: true})
	}
}
