package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	bodyFileName    = "body"
	headersFileName = "headers.json"

	slugMaxLength = 40
	hashLength    = 16
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Key 定位一个缓存条目，计算后不再变化。
type Key struct {
	Name        string
	Dir         string
	BodyPath    string
	HeadersPath string
}

// KeyFor 由 URL 推导缓存目录：去掉常见的 http:// 前缀、把不安全字符替换为 '_'
// 并截断到 40 个字符以保持可读，再拼上 sha256(href) 的前 16 位避免冲突。
// 默认端口会先被去掉，http://host:80/ 与 http://host/ 落在同一个条目。
func KeyFor(root string, u *url.URL) (Key, error) {
	if root == "" {
		return Key{}, errors.New("cache root required")
	}
	if u == nil {
		return Key{}, errors.New("url required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return Key{}, fmt.Errorf("resolve cache root: %w", err)
	}

	href := canonicalHref(u)
	sum := sha256.Sum256([]byte(href))
	digest := hex.EncodeToString(sum[:])[:hashLength]

	slug := unsafeKeyChars.ReplaceAllString(href, "_")
	slug = strings.TrimPrefix(slug, "http_")
	if len(slug) > slugMaxLength {
		slug = slug[:slugMaxLength]
	}

	name := slug + "-" + digest
	dir := filepath.Join(abs, name)
	return Key{
		Name:        name,
		Dir:         dir,
		BodyPath:    filepath.Join(dir, bodyFileName),
		HeadersPath: filepath.Join(dir, headersFileName),
	}, nil
}

func canonicalHref(u *url.URL) string {
	clone := *u
	clone.Fragment = ""
	clone.RawFragment = ""
	if isDefaultPort(&clone) {
		clone.Host = clone.Hostname()
		if strings.Contains(clone.Host, ":") {
			clone.Host = "[" + clone.Host + "]"
		}
	}
	if clone.Path == "" && clone.RawPath == "" && clone.Opaque == "" {
		clone.Path = "/"
	}
	return clone.String()
}

func isDefaultPort(u *url.URL) bool {
	port := u.Port()
	switch strings.ToLower(u.Scheme) {
	case "http":
		return port == "80"
	case "https":
		return port == "443"
	}
	return false
}
