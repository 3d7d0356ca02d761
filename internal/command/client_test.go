package command

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/lumenhub-core/internal/device"
)

func TestClient_Post(t *testing.T) {
	var gotMethod, gotPath, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck // Test handler
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	resp, err := c.Post(context.Background(), srv.Listener.Addr().String(), "/api/servo1", map[string]int{"angle": 30})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/servo1" {
		t.Errorf("request = %s %s, want POST /api/servo1", gotMethod, gotPath)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotType)
	}
	if gotBody != `{"angle":30}` {
		t.Errorf("body = %s, want {\"angle\":30}", gotBody)
	}
	if string(resp) != `{"ok":true}` {
		t.Errorf("response = %s, want {\"ok\":true}", resp)
	}
}

func TestClient_ResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json", `{"servo1":{"angle":10}}`, `{"servo1":{"angle":10}}`},
		{"plain text", "OK", `"OK"`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body)) //nolint:errcheck // Test handler
			}))
			defer srv.Close()

			got, err := NewClient(time.Second).Status(context.Background(), srv.Listener.Addr().String())
			if err != nil {
				t.Fatalf("Status() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusInternalServerError)
	}))
	defer failing.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedAddr := closed.Listener.Addr().String()
	closed.Close()

	tests := []struct {
		name    string
		address string
	}{
		{"server error", failing.Listener.Addr().String()},
		{"timeout", slow.Listener.Addr().String()},
		{"connection refused", closedAddr},
		{"unknown address", device.UnknownAddress},
		{"empty address", ""},
	}

	c := NewClient(100 * time.Millisecond)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Status(context.Background(), tt.address)
			if !errors.Is(err, ErrDeviceUnreachable) {
				t.Errorf("Status() error = %v, want ErrDeviceUnreachable", err)
			}
		})
	}
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient(0)
	if c.httpClient.Timeout != DefaultFallbackTimeout {
		t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, DefaultFallbackTimeout)
	}
}
