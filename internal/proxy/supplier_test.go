package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticSupplierRoundRobin(t *testing.T) {
	s := NewStaticSupplier([]string{"http://a:1", "http://b:2"})
	got := []string{s.Get(), s.Get(), s.Get()}
	want := []string{"http://a:1", "http://b:2", "http://a:1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Get #%d = %q, want %q", i, got[i], want[i])
		}
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestEmptySupplier(t *testing.T) {
	s, err := NewProxySupplier(context.Background(), nil, "http://unused")
	if err != nil {
		t.Fatal(err)
	}
	if s.Get() != "" || s.Len() != 0 {
		t.Fatal("empty supplier must hand out no proxy")
	}
}

func TestNewProxySupplierDropsBrokenProxies(t *testing.T) {
	// a plain HTTP server answers proxied requests for absolute URLs
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	s, err := NewProxySupplier(context.Background(), []string{bad.URL, good.URL}, "http://example.test/")
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 || s.Get() != good.URL {
		t.Fatalf("want only the working proxy, len=%d", s.Len())
	}
}
