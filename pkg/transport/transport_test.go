package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/sheetview/pkg/model"
)

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
	if _, err := NewClient(Options{BaseURL: "ftp://example"}); err == nil {
		t.Fatal("expected error for non-http base URL")
	}
}

func TestSendEvent_PostsJSONWithSession(t *testing.T) {
	var (
		mu      sync.Mutex
		gotPath string
		gotSess string
		gotType string
		gotBody model.ApplySelectionEvent
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotSess = r.Header.Get(SessionHeader)
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, err := NewClient(Options{BaseURL: server.URL + "/", SessionID: "vs-1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	event := model.NewApplyEvent(model.ApplyTypeApply, []model.SelectionState{
		{Value: []string{"CA"}, Selected: true},
	}, "")
	c.SendEvent(model.PathListUpdate+"List1", event)
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/events/selectionList/update/List1" {
		t.Errorf("path = %q", gotPath)
	}
	if gotSess != "vs-1" {
		t.Errorf("session header = %q", gotSess)
	}
	if gotType != "application/json" {
		t.Errorf("content type = %q", gotType)
	}
	if gotBody.Type != model.ApplyTypeApply || len(gotBody.Values) != 1 || gotBody.SelectStart != -1 {
		t.Errorf("unexpected body: %+v", gotBody)
	}
}

func TestSendEvent_ReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"stale viewsheet"}`))
	}))
	defer server.Close()

	var (
		mu     sync.Mutex
		failed error
	)
	c, err := NewClient(Options{BaseURL: server.URL, OnError: func(path string, err error) {
		mu.Lock()
		failed = err
		mu.Unlock()
	}})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.SendEvent("/events/selectionList/sort/List1", model.SortSelectionEvent{})
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	var apiErr *APIError
	if !errors.As(failed, &apiErr) {
		t.Fatalf("expected APIError, got %v", failed)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "stale viewsheet" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestSendEvent_PreservesOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Seq int `json:"seq"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		// Early events reply slowest so a concurrent sender would reorder them.
		time.Sleep(time.Duration(40-body.Seq) * 100 * time.Microsecond)
		mu.Lock()
		got = append(got, body.Seq)
		mu.Unlock()
	}))
	defer server.Close()

	c, err := NewClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	for i := 0; i < 40; i++ {
		c.SendEvent("/events/x", map[string]int{"seq": i})
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 40 {
		t.Fatalf("received %d events, want 40", len(got))
	}
	for i, seq := range got {
		if seq != i {
			t.Fatalf("events arrived out of order: %v", got)
		}
	}
}

func TestSendEvent_OneRequestAtATime(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
	}))
	defer server.Close()

	c, err := NewClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	for i := 0; i < 6; i++ {
		c.SendEvent("/events/x", struct{}{})
	}
	c.Wait()

	if p := peak.Load(); p != 1 {
		t.Errorf("peak in-flight = %d, want 1", p)
	}
}

func TestSendEvent_DropsWhenQueueFull(t *testing.T) {
	var received atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		received.Add(1)
	}))
	defer server.Close()

	c, err := NewClient(Options{BaseURL: server.URL, QueueDepth: 2})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	for i := 0; i < 10; i++ {
		c.SendEvent("/events/x", struct{}{})
	}
	close(release)
	c.Wait()

	// One event may already be with the worker, two more fit in the queue.
	if n := received.Load(); n < 1 || n > 3 {
		t.Errorf("received %d events, want between 1 and 3", n)
	}
}

func TestClose_DropsLaterEvents(t *testing.T) {
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
	}))
	defer server.Close()

	c, err := NewClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.SendEvent("/events/x", struct{}{})
	c.Wait()
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	c.SendEvent("/events/x", struct{}{})
	c.Wait()
	if n := received.Load(); n != 1 {
		t.Errorf("received %d events, want 1", n)
	}
}

func TestSendEvent_ReturnsWithoutWaiting(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	c, err := NewClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	start := time.Now()
	c.SendEvent("/events/x", struct{}{})
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("SendEvent blocked for %v", d)
	}
	_ = c.Close()
}

func TestFetchAssembly_DecodesModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/assemblies/List1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"kind":"list","list":{"absoluteName":"List1","sortType":0,"objectFormat":{},
			"selectionValues":[{"label":"A","value":"a","state":1}]}}`))
	}))
	defer server.Close()

	c, err := NewClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	a, err := c.FetchAssembly(context.Background(), "List1")
	if err != nil {
		t.Fatalf("FetchAssembly: %v", err)
	}
	if a.Name() != "List1" || len(a.List.Values) != 1 || !a.List.Values[0].State.IsSelected() {
		t.Errorf("unexpected assembly: %+v", a.List)
	}

	if _, err := c.FetchAssembly(context.Background(), "Missing"); err == nil {
		t.Error("expected error for missing assembly")
	}
}

func TestFetchAssembly_EscapesName(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		http.NotFound(w, r)
	}))
	defer server.Close()

	c, err := NewClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, _ = c.FetchAssembly(context.Background(), "Geo/Region?x#1")
	if gotPath != "/assemblies/Geo%2FRegion%3Fx%231" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestDecodeAPIError_ClipsOnRuneBoundary(t *testing.T) {
	msg := strings.Repeat("é", 300)
	err := decodeAPIError(http.StatusInternalServerError, []byte(msg))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !utf8.ValidString(apiErr.Message) {
		t.Errorf("message split a rune: %q", apiErr.Message)
	}
	if n := utf8.RuneCountInString(apiErr.Message); n != maxErrorRunes {
		t.Errorf("message has %d runes, want %d", n, maxErrorRunes)
	}
	if got := clip("short", maxErrorRunes); got != "short" {
		t.Errorf("clip(short) = %q", got)
	}
}

func TestLog_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf)
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	l.SendEvent("/events/selectionList/update/L", model.NewApplyEvent(model.ApplyTypeReverse, nil, ""))
	l.SendEvent("/events/selectionList/sort/L", model.SortSelectionEvent{Search: "ca"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var first Entry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decoding line: %v", err)
	}
	if first.Path != "/events/selectionList/update/L" {
		t.Errorf("path = %q", first.Path)
	}
	if !strings.Contains(string(first.Payload), `"REVERSE"`) || !strings.Contains(string(first.Payload), `"values":[]`) {
		t.Errorf("payload = %s", first.Payload)
	}
	if !strings.Contains(lines[1], `"search":"ca"`) {
		t.Errorf("second line = %s", lines[1])
	}
}
