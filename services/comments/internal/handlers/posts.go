package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/example/threadkit/internal/commentapi"
	"github.com/example/threadkit/internal/platform/api"
	"github.com/example/threadkit/internal/platform/auth"
	"github.com/example/threadkit/internal/platform/httpserver"
	"github.com/example/threadkit/services/comments/internal/store"
)

// GetPost handles GET /posts/{id}.
func GetPost(d Deps) http.HandlerFunc {
	d = d.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		postID := strings.TrimSpace(chi.URLParam(r, "id"))
		if postID == "" {
			api.BadRequest(w, "MISSING_ID", "post id is required", rid, nil)
			return
		}
		p, err := d.Store.GetPost(r.Context(), postID)
		if err != nil {
			writeStoreError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, postToWire(p))
	}
}

// CreatePost handles POST /posts (admin only).
func CreatePost(d Deps) http.HandlerFunc {
	d = d.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}

		var req commentapi.CreatePostRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if err := d.Validate.Struct(req); err != nil {
			api.BadRequest(w, "VALIDATION_FAILED", err.Error(), rid, nil)
			return
		}

		p, err := d.Store.CreatePost(r.Context(), store.Post{
			AuthorID:     id.UserID,
			AuthorHandle: id.Handle,
			AuthorAvatar: id.Avatar,
			Text:         req.Text,
		})
		if err != nil {
			writeStoreError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, postToWire(p))
	}
}
