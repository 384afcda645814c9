package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/devwatch/internal/deviceapi"
	"github.com/linnemanlabs/devwatch/internal/scan"
	"github.com/linnemanlabs/devwatch/internal/tracker"
)

func TestNotifySystemd_NoSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	err := notifySystemd()
	if err == nil {
		t.Fatal("expected error when NOTIFY_SOCKET is empty")
	}
	if !strings.Contains(err.Error(), "NOTIFY_SOCKET not set") {
		t.Errorf("error = %q, want substring %q", err, "NOTIFY_SOCKET not set")
	}
}

func TestNotifySystemd_InvalidPath(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", filepath.Join(t.TempDir(), "nonexistent.sock"))

	err := notifySystemd()
	if err == nil {
		t.Fatal("expected error for nonexistent socket")
	}
	if !strings.Contains(err.Error(), "dial failed") {
		t.Errorf("error = %q, want substring %q", err, "dial failed")
	}
}

func TestNotifySystemd_Success(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "notify.sock")

	// Create a real unixgram listener.
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(context.Background(), "unixgram", sockPath)
	if err != nil {
		t.Fatalf("listen unixgram: %v", err)
	}
	defer func() { _ = conn.Close() }()

	t.Setenv("NOTIFY_SOCKET", sockPath)

	if err := notifySystemd(); err != nil {
		t.Fatalf("notifySystemd() = %v, want nil", err)
	}

	buf := make([]byte, 256)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read from socket: %v", err)
	}

	got := string(buf[:n])
	if got != "READY=1" {
		t.Errorf("payload = %q, want %q", got, "READY=1")
	}
}

func TestWaitContext(t *testing.T) {
	t.Parallel()

	if err := waitContext(context.Background(), func() {}); err != nil {
		t.Errorf("waitContext(done) = %v, want nil", err)
	}

	block := make(chan struct{})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := waitContext(ctx, func() { <-block }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("waitContext(blocked) = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestNewRouter(t *testing.T) {
	t.Parallel()

	tr := tracker.New(tracker.Hooks{})
	svc := scan.NewService(log.Nop(), scan.Options{Tracker: tr})
	r := newRouter(deviceapi.New(log.Nop(), svc, tr, "tok"), 1024)

	scanBody := `{"devices":[{"id":"a","platform":"android","mode":"bootloader","confidence":0.7}]}`

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		auth       bool
		wantStatus int
	}{
		{"scan accepted", http.MethodPost, "/api/v1/scans", scanBody, true, http.StatusOK},
		{"scan needs token", http.MethodPost, "/api/v1/scans", scanBody, false, http.StatusUnauthorized},
		{"scan over body limit", http.MethodPost, "/api/v1/scans", strings.Repeat(" ", 2048) + scanBody, true, http.StatusRequestEntityTooLarge},
		{"tracking open", http.MethodGet, "/api/v1/tracking", "", false, http.StatusOK},
		{"unknown path", http.MethodGet, "/nope", "", false, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth {
				req.Header.Set("Authorization", "Bearer tok")
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.wantStatus)
			}
		})
	}
}
