package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Headers 是 headers.json 中保存的响应头，键统一为小写。
type Headers map[string]string

// HeadersFromHTTP 把 http.Header 展平为 Headers，多值头以 ", " 拼接。
func HeadersFromHTTP(h http.Header) Headers {
	result := make(Headers, len(h))
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		result[strings.ToLower(key)] = strings.Join(values, ", ")
	}
	return result
}

// HTTP 还原为 http.Header，键会被规范化为 MIME 形式。
func (h Headers) HTTP() http.Header {
	result := make(http.Header, len(h))
	for key, value := range h {
		result.Set(key, value)
	}
	return result
}

// ETag returns the stored validator, or "" when the origin never sent one.
func (h Headers) ETag() string {
	for key, value := range h {
		if strings.EqualFold(key, "etag") {
			return value
		}
	}
	return ""
}

// State 是一次请求开始时读取到的缓存快照。零值即 Absent。
type State struct {
	Present  bool
	StoredAt time.Time
	Headers  Headers
}

// Absent 表示缓存未命中或条目不可用。
var Absent = State{}

// ErrCorruptEntry 标记 body 存在但 headers.json 无法读取或解析的条目。
var ErrCorruptEntry = errors.New("corrupt cache entry")

// Lookup 读取 key 对应的条目：先 stat 正文，再读取并解析 headers.json。
// 任何读取/解析失败都返回 Absent；非 ErrNotFound 的失败会附带错误供调用方记录，
// 条目本身不会被删除。
func Lookup(ctx context.Context, storage Storage, key Key) (State, error) {
	info, err := storage.Stat(ctx, key.BodyPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Absent, nil
		}
		return Absent, err
	}

	raw, err := storage.ReadFile(ctx, key.HeadersPath)
	if err != nil {
		return Absent, fmt.Errorf("%w: read headers: %v", ErrCorruptEntry, err)
	}

	var headers Headers
	if err := json.Unmarshal(raw, &headers); err != nil {
		return Absent, fmt.Errorf("%w: parse headers: %v", ErrCorruptEntry, err)
	}
	if headers == nil {
		headers = Headers{}
	}

	return State{
		Present:  true,
		StoredAt: info.ModTime,
		Headers:  headers,
	}, nil
}

// SaveHeaders 以缩进 JSON 原子写入 headers.json。
func SaveHeaders(ctx context.Context, storage Storage, key Key, headers Headers) error {
	if headers == nil {
		headers = Headers{}
	}
	data, err := json.MarshalIndent(headers, "", "  ")
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}
	return storage.WriteFile(ctx, key.HeadersPath, data)
}
