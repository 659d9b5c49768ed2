package fetch

import (
	"errors"
	"fmt"
)

// Kind 区分调用方可见的错误类别。缓存读写错误在内部恢复，不会出现在这里。
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindTransport         Kind = "transport"
	KindUnsupportedScheme Kind = "unsupported_scheme"
)

var (
	// ErrMissingCacheDir 表示 Options.Cache 为空。
	ErrMissingCacheDir = errors.New("request requires a valid cache directory")
	// ErrBodyOnGet 表示 GET 请求携带了非空正文。
	ErrBodyOnGet = errors.New("GET requests must have an empty body")
)

// Error 是 Call 结算时返回的错误，支持 errors.Is / errors.As。
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return ""
}

func configurationError(url string, err error) error {
	return &Error{Kind: KindConfiguration, URL: url, Err: err}
}
