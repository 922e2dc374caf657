// Package media keeps comment attachments and serves them back.
package media

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/threadkit/internal/commentapi"
)

var (
	ErrNotFound        = errors.New("media not found")
	ErrUnsupportedType = errors.New("only image and video attachments are supported")
	ErrTooLarge        = errors.New("attachment too large")
	ErrEmpty           = errors.New("attachment is empty")
)

type Object struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// URL is the path the object is served from.
func (o Object) URL() string { return commentapi.PathMedia + "/" + o.ID }

// Attachment describes o in wire form.
func (o Object) Attachment() *commentapi.Attachment {
	return &commentapi.Attachment{URL: o.URL(), Type: commentapi.AttachmentType(o.ContentType)}
}

// Store is an in-memory attachment store. Objects live until Delete.
type Store struct {
	mu      sync.RWMutex
	objects map[string]Object
	maxSize int
}

func NewStore(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = commentapi.MaxUploadBytes
	}
	return &Store{objects: make(map[string]Object), maxSize: maxSize}
}

// Put stores data. An empty or generic content type is sniffed from data.
func (s *Store) Put(filename, contentType string, data []byte) (Object, error) {
	if len(data) == 0 {
		return Object{}, ErrEmpty
	}
	if len(data) > s.maxSize {
		return Object{}, ErrTooLarge
	}
	ct := strings.TrimSpace(contentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "video/") {
		return Object{}, ErrUnsupportedType
	}

	o := Object{
		ID:          uuid.New().String(),
		Filename:    filename,
		ContentType: ct,
		Data:        append([]byte(nil), data...),
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.objects[o.ID] = o
	s.mu.Unlock()
	return o, nil
}

func (s *Store) Get(id string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[id]
	if !ok {
		return Object{}, ErrNotFound
	}
	return o, nil
}

// DeleteURL drops the object served at url. Unknown urls are ignored.
func (s *Store) DeleteURL(url string) {
	id, ok := strings.CutPrefix(url, commentapi.PathMedia+"/")
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.objects, id)
	s.mu.Unlock()
}
