package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// DefaultTimeout 在未配置 UpstreamTimeout 时使用。
const DefaultTimeout = 30 * time.Second

// Request 描述一次上游调用。Body 为 nil 时不发送正文。
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   io.Reader
}

// Transport 是缓存客户端依赖的网络协作者。
type Transport interface {
	Perform(ctx context.Context, req Request) (*http.Response, error)
}

// Options 控制 HTTPTransport 的行为。
type Options struct {
	Timeout time.Duration
	// Base 为空时克隆共享的 defaultTransport。
	Base http.RoundTripper
}

// HTTPTransport 基于 http.Client 实现 Transport，不跟随重定向。
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport 返回共享连接池的 HTTPTransport。
func NewHTTPTransport(opts Options) *HTTPTransport {
	timeout := DefaultTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	base := opts.Base
	if base == nil {
		base = defaultTransport.Clone()
	}

	return &HTTPTransport{
		client: &http.Client{
			Timeout:   timeout,
			Transport: base,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Timeout exposes the overall per-request timeout.
func (t *HTTPTransport) Timeout() time.Duration {
	return t.client.Timeout
}

// Perform 发送请求并返回原始响应，调用方负责关闭 Body。
func (t *HTTPTransport) Perform(ctx context.Context, req Request) (*http.Response, error) {
	if req.URL == nil {
		return nil, fmt.Errorf("request url required")
	}
	if err := CheckScheme(req.URL); err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	body := req.Body
	if body == nil {
		body = http.NoBody
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL.String(), body)
	if err != nil {
		return nil, err
	}
	CopyHeaders(httpReq.Header, req.Header)
	if host := req.Header.Get("Host"); host != "" {
		httpReq.Host = host
	}

	return t.client.Do(httpReq)
}

// UnsupportedSchemeError 表示 URL 既不是 http 也不是 https。
type UnsupportedSchemeError struct {
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unknown protocol %q", e.Scheme)
}

// CheckScheme 校验 URL scheme 是否受支持。
func CheckScheme(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return &UnsupportedSchemeError{Scheme: u.Scheme}
	}
}
