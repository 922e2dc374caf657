package media

import (
	"bytes"
	"errors"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestPut_SniffsContentType(t *testing.T) {
	s := NewStore(0)
	o, err := s.Put("pic", "", pngHeader)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if o.ContentType != "image/png" {
		t.Fatalf("expected image/png, got %q", o.ContentType)
	}
	if a := o.Attachment(); a.Type != "image" || a.URL != "/media/"+o.ID {
		t.Fatalf("unexpected attachment: %+v", a)
	}
}

func TestPut_VideoAttachment(t *testing.T) {
	s := NewStore(0)
	o, err := s.Put("clip.mp4", "video/mp4", []byte("not really a video"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if o.Attachment().Type != "video" {
		t.Fatalf("expected video attachment, got %q", o.Attachment().Type)
	}
}

func TestPut_Rejects(t *testing.T) {
	s := NewStore(8)
	if _, err := s.Put("a", "image/png", nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := s.Put("a", "image/png", bytes.Repeat([]byte("x"), 9)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := s.Put("a.txt", "text/plain", []byte("hi")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestGetAndDelete(t *testing.T) {
	s := NewStore(0)
	data := append([]byte(nil), pngHeader...)
	o, _ := s.Put("pic", "image/png", data)
	data[0] = 0

	got, err := s.Get(o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Data[0] != pngHeader[0] {
		t.Fatal("stored data must not alias the caller's slice")
	}

	s.DeleteURL(o.URL())
	if _, err := s.Get(o.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	s.DeleteURL("https://elsewhere.example.com/x")
}
