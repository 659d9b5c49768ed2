package fetch

import (
	"io"
	"net/http"
	"time"

	"github.com/any-hub/any-cache/internal/cache"
)

// Options 对应一次请求的参数。Cache 必填；Method 默认 GET。
// MaxAge / MaxStale 为零表示未设置，cache.Unbounded 表示无限。
type Options struct {
	Cache    string
	Method   string
	Header   http.Header
	Body     io.Reader
	MaxAge   time.Duration
	MaxStale time.Duration
}

// Source 说明响应来自哪条路径。
type Source string

const (
	// SourceNetwork 为上游的实时响应。
	SourceNetwork Source = "network"
	// SourceCache 为未过期缓存的直接命中（200）。
	SourceCache Source = "cache"
	// SourceStale 为过期但仍在 max-stale 窗口内的缓存，后台正在刷新（200）。
	SourceStale Source = "cache-stale"
	// SourceRevalidated 为上游返回 304 后的缓存（304）。
	SourceRevalidated Source = "revalidated"
	// SourceFallback 为上游不可达时替代的缓存（304）。
	SourceFallback Source = "fallback"
)

// FromCache reports whether the body is read from disk.
func (s Source) FromCache() bool {
	return s != SourceNetwork && s != ""
}

// Response 是交付给调用方的响应描述，调用方负责关闭 Body。
// 对于正在写入缓存的实时响应，读到 EOF 后条目才会提交；提前 Close 会放弃本次写入。
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	Source     Source
	URL        string
}

// Update 是 cache-update 通知：某个 URL 的新响应开始写入缓存。
type Update struct {
	URL string
	Key cache.Key
}
