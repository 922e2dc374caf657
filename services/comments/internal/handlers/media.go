package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/threadkit/internal/platform/httpserver"
)

// GetMedia handles GET /media/{id}.
func GetMedia(d Deps) http.HandlerFunc {
	d = d.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		obj, err := d.Media.Get(strings.TrimSpace(chi.URLParam(r, "id")))
		if err != nil {
			writeStoreError(w, rid, err)
			return
		}
		w.Header().Set("Content-Type", obj.ContentType)
		w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
		http.ServeContent(w, r, obj.Filename, obj.CreatedAt, bytes.NewReader(obj.Data))
	}
}
