package natsconn

import (
	"testing"
	"time"
)

func TestOptions_Defaults(t *testing.T) {
	t.Setenv("NATS_URL", "")
	t.Setenv("NATS_MAX_RECONNECTS", "")
	t.Setenv("NATS_RECONNECT_WAIT", "")

	o := Options{}.withDefaults()
	if o.URL != "nats://nats:4222" {
		t.Fatalf("expected default url, got %q", o.URL)
	}
	if o.MaxReconnects != 5 {
		t.Fatalf("expected 5, got %d", o.MaxReconnects)
	}
	if o.ReconnectWait != 2*time.Second {
		t.Fatalf("expected 2s, got %s", o.ReconnectWait)
	}
}

func TestOptions_FromEnv(t *testing.T) {
	t.Setenv("NATS_URL", "nats://127.0.0.1:4333")
	t.Setenv("NATS_MAX_RECONNECTS", "7")
	t.Setenv("NATS_RECONNECT_WAIT", "3s")

	o := Options{}.withDefaults()
	if o.URL != "nats://127.0.0.1:4333" || o.MaxReconnects != 7 || o.ReconnectWait != 3*time.Second {
		t.Fatalf("unexpected options %+v", o)
	}
}

func TestOptions_ExplicitWins(t *testing.T) {
	t.Setenv("NATS_MAX_RECONNECTS", "7")
	o := Options{MaxReconnects: 1}.withDefaults()
	if o.MaxReconnects != 1 {
		t.Fatalf("expected 1, got %d", o.MaxReconnects)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(Options{
		URL:           "nats://127.0.0.1:19999",
		MaxReconnects: 0,
		ReconnectWait: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error connecting to invalid NATS URL")
	}
}
