package fetch

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// upstreamStub 记录每次请求，并按当前设置的处理函数响应。
type upstreamStub struct {
	ts  *httptest.Server
	URL string

	mu       sync.Mutex
	requests []RecordedRequest
	handler  http.HandlerFunc
}

// RecordedRequest 捕获请求的方法/路径/Headers/Body，便于断言客户端行为。
type RecordedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

func newUpstreamStub(t *testing.T) *upstreamStub {
	t.Helper()

	stub := &upstreamStub{}
	stub.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		stub.mu.Lock()
		stub.requests = append(stub.requests, RecordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header.Clone(),
			Body:    body,
		})
		handler := stub.handler
		stub.mu.Unlock()

		if handler == nil {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	stub.URL = stub.ts.URL
	t.Cleanup(stub.Close)
	return stub
}

// respondWith 设置之后所有请求的响应。
func (s *upstreamStub) respondWith(handler http.HandlerFunc) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// respondContent 返回固定状态码、正文与响应头；etag 非空且匹配 If-None-Match 时返回 304。
func (s *upstreamStub) respondContent(status int, body, etag string, headers map[string]string) {
	s.respondWith(func(w http.ResponseWriter, r *http.Request) {
		for key, value := range headers {
			w.Header().Set(key, value)
		}
		if etag != "" {
			w.Header().Set("ETag", etag)
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (s *upstreamStub) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]RecordedRequest, len(s.requests))
	copy(result, s.requests)
	return result
}

func (s *upstreamStub) Close() {
	s.ts.Close()
}

// testClock 是可调的时间源，Client.Now 与测试共享同一实例。
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestClient(clock *testClock) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	opts := ClientOptions{Logger: logger}
	if clock != nil {
		opts.Now = clock.Now
	}
	return NewClient(opts)
}
