package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.json")
	if err := os.WriteFile(path, []byte(`[1,2]`), 0644); err != nil {
		t.Fatal(err)
	}

	rc, err := Open(context.Background(), Config{Location: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != `[1,2]` {
		t.Errorf("data = %q, want [1,2]", data)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), Config{Location: filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want os.ErrNotExist", err)
	}
}

func TestOpen_URL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer token")
		}
		w.Write([]byte(`[["m1"]]`))
	}))
	defer server.Close()

	rc, err := Open(context.Background(), Config{
		Location: server.URL,
		Headers:  http.Header{"Authorization": []string{"Bearer token"}},
		Client:   server.Client(),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != `[["m1"]]` {
		t.Errorf("data = %q", data)
	}
}

func TestOpen_URLStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := Open(context.Background(), Config{Location: server.URL, Client: server.Client()})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("Open() error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		location string
		want     bool
	}{
		{location: "http://localhost/stream", want: true},
		{location: "https://example.com", want: true},
		{location: "-", want: false},
		{location: "./http-dump.json", want: false},
	}

	for _, tt := range tests {
		if got := IsURL(tt.location); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.location, got, tt.want)
		}
	}
}
