package cache

import (
	"math"
	"net/http"
	"strings"
	"time"
)

// Unbounded 表示无限长的 max-age / max-stale 窗口。
const Unbounded = time.Duration(math.MaxInt64)

// DecisionKind 枚举缓存决策的三种结果。
type DecisionKind int

const (
	// FetchRemote 需要回源，ConditionalETag 非空时携带 If-None-Match。
	FetchRemote DecisionKind = iota
	// ServeCached 直接返回缓存。
	ServeCached
	// ServeCachedThenRefresh 先返回过期缓存，再在后台回源刷新。
	ServeCachedThenRefresh
)

func (k DecisionKind) String() string {
	switch k {
	case ServeCached:
		return "serve_cached"
	case ServeCachedThenRefresh:
		return "serve_cached_then_refresh"
	default:
		return "fetch_remote"
	}
}

// Decision 是 Evaluate 的输出，每次评估恰好产生一种 Kind。
type Decision struct {
	Kind            DecisionKind
	ConditionalETag string
}

// Policy 描述调用方允许的缓存年龄。零值或负数表示未设置。
type Policy struct {
	Method   string
	MaxAge   time.Duration
	MaxStale time.Duration
}

// Evaluate 根据缓存快照与策略做出决策，纯函数，不做任何 I/O。
// 年龄只取决于 StoredAt（正文文件的 mtime），与响应中的 Date/Age 头无关。
func Evaluate(state State, policy Policy, now time.Time) Decision {
	if !isGet(policy.Method) || !state.Present {
		return Decision{Kind: FetchRemote}
	}

	age := now.Sub(state.StoredAt)
	maxAge := positive(policy.MaxAge)
	maxStale := positive(policy.MaxStale)

	if maxAge > 0 && age < maxAge {
		return Decision{Kind: ServeCached}
	}
	if maxStale > 0 && age < saturatingAdd(maxAge, maxStale) {
		return Decision{Kind: ServeCachedThenRefresh}
	}
	return Decision{Kind: FetchRemote, ConditionalETag: state.Headers.ETag()}
}

// Age 返回条目在 now 时刻的年龄，供日志使用。
func Age(state State, now time.Time) time.Duration {
	if !state.Present {
		return 0
	}
	return now.Sub(state.StoredAt)
}

func isGet(method string) bool {
	return method == "" || strings.EqualFold(method, http.MethodGet)
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func saturatingAdd(a, b time.Duration) time.Duration {
	if a > Unbounded-b {
		return Unbounded
	}
	return a + b
}
