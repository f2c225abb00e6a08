// Package transport delivers selection events to a viewsheet server.
//
// Sends are fire-and-forget: SendEvent returns immediately and a single
// worker posts queued events one at a time, so the server sees them in the
// order they were sent. When the queue is full new events are dropped.
// Failures are logged and counted, never retried.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/sheetview/pkg/debug"
	"github.com/vanderheijden86/sheetview/pkg/metrics"
	"github.com/vanderheijden86/sheetview/pkg/model"
)

const (
	// SessionHeader carries the runtime viewsheet id.
	SessionHeader = "X-Viewsheet-Session"

	defaultTimeout    = 10 * time.Second
	defaultQueueDepth = 256

	maxErrorRunes = 200
)

// APIError is a non-2xx reply.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Options configure an HTTP client.
type Options struct {
	BaseURL    string
	SessionID  string
	Timeout    time.Duration
	QueueDepth int
	// OnError is called from the worker goroutine when a send fails.
	OnError func(path string, err error)
	// HTTPClient overrides the default client; Timeout is ignored then.
	HTTPClient *http.Client
}

// Client posts events as JSON to BaseURL+path.
type Client struct {
	baseURL string
	session string
	http    *http.Client
	onError func(string, error)

	queue   chan queued
	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

type queued struct {
	path string
	body []byte
}

// NewClient builds a client. BaseURL is required.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("transport: base URL is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("transport: base URL %q must be http or https", base)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		baseURL: base,
		session: opts.SessionID,
		http:    httpClient,
		onError: opts.OnError,
		queue:   make(chan queued, depth),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.worker()
	return c, nil
}

// SendEvent queues payload for the background worker. It never blocks on the
// network. Events are delivered in the order SendEvent was called.
func (c *Client) SendEvent(path string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.fail(path, fmt.Errorf("encoding event: %w", err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.drop(path, "client closed")
		return
	}
	c.pending.Add(1)
	select {
	case c.queue <- queued{path: path, body: body}:
	default:
		c.pending.Done()
		c.drop(path, "queue full")
	}
}

func (c *Client) worker() {
	defer close(c.done)
	for p := range c.queue {
		c.deliver(p)
		c.pending.Done()
	}
}

func (c *Client) deliver(p queued) {
	if err := c.ctx.Err(); err != nil {
		c.drop(p.path, err.Error())
		return
	}
	if err := c.post(c.ctx, p.path, p.body); err != nil {
		c.fail(p.path, err)
		return
	}
	metrics.EventsSent.Inc()
}

func (c *Client) drop(path, reason string) {
	metrics.EventsDropped.Inc()
	debug.Log("transport: dropping %s: %s", path, reason)
}

// Post sends one event and waits for the reply.
func (c *Client) Post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return c.post(ctx, path, body)
}

func (c *Client) post(ctx context.Context, path string, body []byte) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// FetchAssembly downloads the current model of one assembly.
func (c *Client) FetchAssembly(ctx context.Context, name string) (*model.Assembly, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/assemblies/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	var raw []byte
	if err := c.do(req, &raw); err != nil {
		return nil, err
	}
	return model.DecodeAssembly(raw)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	if c.session != "" {
		req.Header.Set(SessionHeader, c.session)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out *[]byte) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("reading reply to %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out != nil {
		*out = data
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: status, Message: clip(msg, maxErrorRunes)}
}

// clip keeps at most n runes of s.
func clip(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func (c *Client) fail(path string, err error) {
	metrics.EventsFailed.Inc()
	debug.Log("transport: send %s failed: %v", path, err)
	if c.onError != nil {
		c.onError(path, err)
	}
}

// Wait blocks until every queued event has been delivered or dropped.
func (c *Client) Wait() {
	c.pending.Wait()
}

// Close stops accepting events, cancels the in-flight send, drops whatever is
// still queued and waits for the worker to exit. It is safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()
	c.cancel()
	<-c.done
	return nil
}
