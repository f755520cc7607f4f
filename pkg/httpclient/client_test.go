package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"schedulep2p/internal/bgtask"
	"schedulep2p/pkg/config"
	"schedulep2p/pkg/logger"
)

func init() {
	logger.Init("error")
}

func testClient(t *testing.T) (*Client, *bgtask.Runner) {
	t.Helper()
	bg := bgtask.New()
	c, err := New(config.HTTPClientConfig{
		MaxClientConnection:    10,
		MaxKeepAliveConnection: 5,
		KeepAliveExpiry:        30 * time.Second,
		ConnectTimeout:         2 * time.Second,
	}, bg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, bg
}

type fakeCache struct {
	sets map[string]any
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.sets[key] = value
	return nil
}

func TestParse_200DecodesAndCaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"routingDetails":[]}`))
	}))
	defer srv.Close()

	c, bg := testClient(t)
	cache := &fakeCache{sets: map[string]any{}}

	var docs int
	for res, err := range c.Parse(context.Background(), Request{URL: srv.URL, CacheKey: "k1"}, cache) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Doc == nil {
			t.Fatal("expected a decoded document")
		}
		docs++
	}
	if docs != 1 {
		t.Fatalf("expected exactly one yielded document, got %d", docs)
	}

	bg.Wait()
	if _, ok := cache.sets["k1"]; !ok {
		t.Error("expected a background cache write for k1")
	}
}

func TestParse_206YieldsRawResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "items 0-49/120")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, _ := testClient(t)

	var got *http.Response
	for res, err := range c.Parse(context.Background(), Request{URL: srv.URL}, nil) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = res.Raw
	}
	if got == nil {
		t.Fatal("expected a raw 206 response")
	}
	got.Body.Close()
}

func TestParse_500YieldsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := testClient(t)

	count := 0
	for range c.Parse(context.Background(), Request{URL: srv.URL}, nil) {
		count++
	}
	if count != 0 {
		t.Fatalf("expected no yielded results on 500, got %d", count)
	}
}

func TestParse_404YieldsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := testClient(t)

	count := 0
	for range c.Parse(context.Background(), Request{URL: srv.URL}, nil) {
		count++
	}
	if count != 0 {
		t.Fatalf("expected no yielded results on 404, got %d", count)
	}
}

func TestParse_StreamYieldsOneDocPerLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{\"a\":1}\n{\"a\":2}\n{\"a\":3}\n"))
	}))
	defer srv.Close()

	c, _ := testClient(t)

	var docs []map[string]int
	for res, err := range c.Parse(context.Background(), Request{URL: srv.URL, Stream: true}, nil) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var m map[string]int
		if err := json.Unmarshal(res.Doc, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		docs = append(docs, m)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 streamed documents, got %d", len(docs))
	}
}

func TestParse_StreamStopsOnCallerBreak(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{\"a\":1}\n{\"a\":2}\n{\"a\":3}\n"))
	}))
	defer srv.Close()

	c, _ := testClient(t)

	count := 0
	for range c.Parse(context.Background(), Request{URL: srv.URL, Stream: true}, nil) {
		count++
		if count == 1 {
			break
		}
	}
	if count != 1 {
		t.Fatalf("expected iteration to stop after 1 doc, got %d", count)
	}
}

func TestParse_TransportErrorPropagates(t *testing.T) {
	c, _ := testClient(t)

	var gotErr error
	for _, err := range c.Parse(context.Background(), Request{URL: "http://127.0.0.1:1"}, nil) {
		gotErr = err
	}
	if gotErr == nil {
		t.Fatal("expected a transport error to propagate")
	}
}
