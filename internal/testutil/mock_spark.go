// Package testutil provides testing utilities for the Spark session layer.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines one scripted response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request received by the mock server.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     string
	At       time.Time
}

// MockSpark is a configurable mock Spark API server for testing.
// Responses are scripted per path as a queue; the last response of a queue
// repeats once the queue is drained.
type MockSpark struct {
	server   *httptest.Server
	mu       sync.Mutex
	queues   map[string][]MockResponse
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockSpark creates a new mock server.
func NewMockSpark() *MockSpark {
	mock := &MockSpark{
		queues:   make(map[string][]MockResponse),
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockSpark) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     string(body),
		At:       time.Now(),
	})

	key := r.URL.Path
	if r.URL.RawQuery != "" {
		if _, ok := m.queues[key+"?"+r.URL.RawQuery]; ok {
			key = key + "?" + r.URL.RawQuery
		}
	}

	handler, hasHandler := m.handlers[r.URL.Path]
	queue := m.queues[key]
	var resp MockResponse
	hasResponse := len(queue) > 0
	if hasResponse {
		resp = queue[0]
		if len(queue) > 1 {
			m.queues[key] = queue[1:]
		}
	}
	m.mu.Unlock()

	if hasHandler && !hasResponse {
		handler(w, r)
		return
	}
	if !hasResponse {
		writeJSON(w, http.StatusNotFound, `{"message":"The requested resource could not be found.","trackingId":"MOCK_404"}`)
		return
	}

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	if body != "" && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	}
	w.WriteHeader(status)
	if body != "" {
		w.Write([]byte(body))
	}
}

// URL returns the mock server URL with a trailing "/v1/" API root.
func (m *MockSpark) URL() string {
	return m.server.URL + "/v1/"
}

// Client returns an HTTP client wired to the mock server.
func (m *MockSpark) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockSpark) Close() {
	m.server.Close()
}

// Reset clears scripted responses and recorded requests.
func (m *MockSpark) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues = make(map[string][]MockResponse)
	m.handlers = make(map[string]http.HandlerFunc)
	m.requests = nil
}

// Enqueue appends responses for a path relative to the API root, e.g.
// "team/memberships". A path with a query ("people?page=2") only matches
// requests with exactly that query.
func (m *MockSpark) Enqueue(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "/v1/" + strings.TrimLeft(path, "/")
	m.queues[key] = append(m.queues[key], responses...)
}

// SetHandler installs a handler for a path relative to the API root. It is
// used when no scripted response is queued.
func (m *MockSpark) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers["/v1/"+strings.TrimLeft(path, "/")] = handler
}

// PageURL returns the absolute URL of path with a page query, for use in
// Link headers.
func (m *MockSpark) PageURL(path string, page int) string {
	return fmt.Sprintf("%s%s?page=%d", m.URL(), strings.TrimLeft(path, "/"), page)
}

// Requests returns a copy of the recorded requests.
func (m *MockSpark) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// GetRequestCount returns the number of requests received.
func (m *MockSpark) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// NewItemsResponse creates a 200 list page. next, when non-empty, is sent
// as a rel="next" Link header.
func NewItemsResponse(next string, items ...map[string]any) MockResponse {
	if items == nil {
		items = []map[string]any{}
	}
	body, _ := json.Marshal(map[string]any{"items": items})

	resp := MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{},
	}
	if next != "" {
		resp.Headers["Link"] = fmt.Sprintf(`<%s>; rel="next"`, next)
	}
	return resp
}

// NewJSONResponse creates a 200 response with v marshaled as the body.
func NewJSONResponse(v any) MockResponse {
	body, _ := json.Marshal(v)
	return MockResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// NewNoContentResponse creates a 204 response.
func NewNoContentResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusNoContent}
}

// NewRateLimitResponse creates a 429 response. An empty retryAfter omits
// the Retry-After header.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Too Many Requests","trackingId":"MOCK_429"}`,
		Headers:    map[string]string{},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewErrorResponse creates an error response with the service envelope.
func NewErrorResponse(status int, message, trackingID string) MockResponse {
	body, _ := json.Marshal(map[string]any{
		"message":    message,
		"errors":     []map[string]string{{"description": message}},
		"trackingId": trackingID,
	})
	return MockResponse{StatusCode: status, Body: string(body)}
}

// UnreachableURL returns a URL on a local port that refuses connections.
func UnreachableURL() string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "http://127.0.0.1:1/v1/unreachable"
	}
	addr := listener.Addr().String()
	listener.Close()
	return "http://" + addr + "/v1/unreachable"
}
