package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/any-cache/internal/cache"
)

// cacheControl 为请求 Cache-Control 中与缓存窗口相关的指令。
type cacheControl struct {
	maxAge      time.Duration
	maxAgeSet   bool
	maxStale    time.Duration
	maxStaleSet bool
}

// parseCacheControl 解析 max-age 与 max-stale，其余指令忽略。
// 不带值的 max-stale 表示接受任意陈旧度；无法解析的值视为未设置。
func parseCacheControl(raw string) cacheControl {
	var result cacheControl
	for _, directive := range strings.Split(raw, ",") {
		name, value, hasValue := strings.Cut(strings.TrimSpace(directive), "=")
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.Trim(strings.TrimSpace(value), `"`)

		switch name {
		case "max-age":
			if seconds, ok := parseSeconds(value); ok {
				result.maxAge = seconds
				result.maxAgeSet = true
			}
		case "max-stale":
			if !hasValue {
				result.maxStale = cache.Unbounded
				result.maxStaleSet = true
				continue
			}
			if seconds, ok := parseSeconds(value); ok {
				result.maxStale = seconds
				result.maxStaleSet = true
			}
		}
	}
	return result
}

func parseSeconds(value string) (time.Duration, bool) {
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	if seconds > int64(cache.Unbounded/time.Second) {
		return cache.Unbounded, true
	}
	return time.Duration(seconds) * time.Second, true
}
