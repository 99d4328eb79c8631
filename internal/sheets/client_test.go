package sheets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, server *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), ClientConfig{
		Timeout:           timeout,
		RequestsPerSecond: 100,
		Options: []option.ClientOption{
			option.WithEndpoint(server.URL + "/"),
			option.WithHTTPClient(server.Client()),
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientFetch_ReturnsRows(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Sheet1!A1:C2","majorDimension":"ROWS","values":[["vendor","sku","price"],["Acme","P-1",12.5]]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, time.Second)
	rows, err := client.Fetch(context.Background(), "sheet123", "Sheet1!A1:C2")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet123/values/") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if len(rows) != 2 || len(rows[1]) != 3 {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[1][0] != "Acme" || rows[1][2] != "12.5" {
		t.Fatalf("unexpected row %v", rows[1])
	}
}

func TestClientFetch_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, time.Second)
	_, err := client.Fetch(context.Background(), "sheet123", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ErrTimedOut) {
		t.Fatalf("upstream failure must not be reported as timeout: %v", err)
	}
}

func TestClientFetch_TimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(t, server, 50*time.Millisecond)
	_, err := client.Fetch(context.Background(), "sheet123", "")
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
}

func TestClientFetch_CallerCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(t, server, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := client.Fetch(ctx, "sheet123", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClientFetch_RequiresID(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := newTestClient(t, server, time.Second)
	if _, err := client.Fetch(context.Background(), " ", ""); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}
