// Package httpclient is the shared HTTP client facade (component C):
// one pooled, http2-aware client with uniform timeouts and the three
// response shapes the carrier adapters need — a decoded JSON document, a
// raw 206 passthrough for paging, or a stream of newline-delimited JSON
// documents.
package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"schedulep2p/internal/bgtask"
	"schedulep2p/pkg/config"
	"schedulep2p/pkg/logger"
)

// Doc is a decoded JSON document, kept as raw bytes so each carrier
// adapter unmarshals into its own carrier-specific shape.
type Doc = json.RawMessage

// Result is what Parse yields: exactly one of Doc (200, or one record of
// a stream) or Raw (206 passthrough) is set.
type Result struct {
	Doc Doc
	Raw *http.Response // non-nil only for HTTP 206; caller owns the body
}

// Request describes one carrier call.
type Request struct {
	Method  string
	URL     string
	Params  url.Values
	Headers map[string]string
	JSON    any // request body, marshaled as JSON when non-nil

	// Stream requests newline-delimited JSON parsing of the response body
	// (the Maersk protocol) instead of a single decode.
	Stream bool

	// CacheKey/CacheExpire, when CacheKey is non-empty, schedule a
	// background cache write of the decoded 200 response via bg.
	CacheKey    string
	CacheExpire time.Duration
}

// CacheWriter is the minimal surface Parse needs to schedule a background
// cache write; pkg/cache.Cache satisfies it.
type CacheWriter interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Client is the shared pooled HTTP client.
type Client struct {
	http *http.Client
	bg   *bgtask.Runner
}

// New builds a Client from the connection-pool configuration (spec.md §6:
// maxClientConnection, maxKeepAliveConnection, keepAliveExpiry, plus the
// connect timeout). cfg.PoolAcquireTimeout is not applied: the transport
// has no pool-acquire timeout, so a call waits for a connection until its
// ctx is done.
func New(cfg config.HTTPClientConfig, bg *bgtask.Runner) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxClientConnection,
		MaxIdleConnsPerHost: cfg.MaxKeepAliveConnection,
		IdleConnTimeout:     cfg.KeepAliveExpiry,
		DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("httpclient: configuring http2 transport: %w", err)
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   0, // per-call timeout is carried on ctx by the caller (task manager)
		},
		bg: bg,
	}, nil
}

// Parse issues req and returns a lazy sequence of Result per spec.md
// §4.C. It never panics: transport-level errors are yielded as the
// sequence's error value.
func (c *Client) Parse(ctx context.Context, req Request, cache CacheWriter) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		httpReq, err := c.build(ctx, req)
		if err != nil {
			yield(Result{}, err)
			return
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			// Transport-level errors (connect, timeout, read) propagate per
			// spec.md §4.C; the task manager converts them to per-task failures.
			yield(Result{}, err)
			return
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			defer resp.Body.Close()
			c.parseSingle(ctx, resp, req, cache, yield)

		case resp.StatusCode == http.StatusPartialContent:
			// Caller owns resp.Body from here; do not close it.
			yield(Result{Raw: resp}, nil)

		case resp.StatusCode == http.StatusInternalServerError || resp.StatusCode == http.StatusBadGateway:
			defer resp.Body.Close()
			logger.Log.Error("upstream server error", "status", resp.StatusCode, "url", req.URL)

		case req.Stream && resp.StatusCode/100 == 2:
			// Some streaming carriers signal success with a 2xx other than 200.
			c.parseStream(resp, yield)

		default:
			defer resp.Body.Close()
		}
	}
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	u := req.URL
	if len(req.Params) > 0 {
		u = u + "?" + req.Params.Encode()
	}

	var body io.Reader
	if req.JSON != nil {
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("httpclient: marshaling request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func (c *Client) parseSingle(ctx context.Context, resp *http.Response, req Request, cache CacheWriter, yield func(Result, error) bool) {
	if req.Stream {
		c.parseStream(resp, yield)
		return
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		yield(Result{}, err)
		return
	}

	if req.CacheKey != "" && cache != nil && c.bg != nil {
		key, expire := req.CacheKey, req.CacheExpire
		payload := append(json.RawMessage(nil), raw...)
		c.bg.Go(func() {
			if err := cache.Set(context.Background(), key, payload, expire); err != nil {
				logger.Log.Warn("background cache write failed", "key", key, "error", err)
			}
		})
	}

	yield(Result{Doc: raw}, nil)
	_ = ctx
}

// parseStream decodes one newline-delimited JSON record per call, closing
// the body on completion, on error, or when the caller stops iterating —
// the iter.Seq stop-path replaces Python's try/finally aclose().
func (c *Client) parseStream(resp *http.Response, yield func(Result, error) bool) {
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		doc := append(json.RawMessage(nil), line...)
		if !yield(Result{Doc: doc}, nil) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		yield(Result{}, err)
	}
}
