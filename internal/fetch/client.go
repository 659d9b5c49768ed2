package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/logging"
	"github.com/any-hub/any-cache/internal/transport"
)

// ClientOptions 注入 Client 的协作者，零值字段使用默认实现。
type ClientOptions struct {
	Transport transport.Transport
	Storage   cache.Storage
	Logger    *logrus.Logger
	Now       func() time.Time
}

// Client 负责 orchestrate “读取缓存快照 → 决策 → 命中/后台刷新/回源写缓存” 的全流程。
type Client struct {
	transport transport.Transport
	storage   cache.Storage
	logger    *logrus.Logger
	now       func() time.Time
}

// NewClient constructs a caching client around the given collaborators.
func NewClient(opts ClientOptions) *Client {
	c := &Client{
		transport: opts.Transport,
		storage:   opts.Storage,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if c.transport == nil {
		c.transport = transport.NewHTTPTransport(transport.Options{})
	}
	if c.storage == nil {
		c.storage = cache.NewFileStorage()
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Do is Request followed by Wait.
func (c *Client) Do(ctx context.Context, uri string, opts Options) (*Response, error) {
	return c.Request(ctx, uri, opts).Wait(ctx)
}

// Request 立即返回 Call，所有校验、I/O 与结果交付都在独立的 goroutine 中完成，
// 配置错误同样通过 Call 异步交付。调用一旦发出就会跑完：内部使用脱离取消信号的
// ctx，超时由 Transport 负责。
func (c *Client) Request(ctx context.Context, uri string, opts Options) *Call {
	if ctx == nil {
		ctx = context.Background()
	}
	call := newCall(uri)
	detached := context.WithoutCancel(ctx)
	call.track(func() {
		c.run(detached, call, uri, opts)
	})
	call.closeUpdatesWhenIdle()
	return call
}

// request 汇总一次调用在各阶段共享的状态。
type request struct {
	call    *Call
	url     *url.URL
	href    string
	method  string
	header  http.Header
	body    io.Reader
	policy  cache.Policy
	key     cache.Key
	state   cache.State
	log     *logrus.Entry
	started time.Time
}

func (c *Client) run(ctx context.Context, call *Call, uri string, opts Options) {
	req, err := c.prepare(call, uri, opts)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"action":     "request",
			"request_id": call.id,
			"url":        uri,
		}).WithError(err).Warn("request_rejected")
		call.settle(nil, err)
		return
	}

	if req.method != http.MethodGet {
		c.fetchRemote(ctx, req, "", false)
		return
	}

	state, err := cache.Lookup(ctx, c.storage, req.key)
	if err != nil {
		req.log.WithError(err).Debug("cache_entry_unusable")
	}
	req.state = state

	now := c.now()
	decision := cache.Evaluate(state, req.policy, now)
	req.log.WithFields(logrus.Fields{
		"decision":  decision.Kind.String(),
		"cache_age": cache.Age(state, now).Seconds(),
	}).Debug("cache_decision")

	switch decision.Kind {
	case cache.ServeCached:
		if err := c.serveCached(ctx, req, http.StatusOK, SourceCache); err == nil {
			return
		}
		c.fetchRemote(ctx, req, "", false)
	case cache.ServeCachedThenRefresh:
		if err := c.serveCached(ctx, req, http.StatusOK, SourceStale); err != nil {
			c.fetchRemote(ctx, req, "", false)
			return
		}
		c.fetchRemote(ctx, req, req.state.Headers.ETag(), true)
	default:
		c.fetchRemote(ctx, req, decision.ConditionalETag, false)
	}
}

func (c *Client) prepare(call *Call, uri string, opts Options) (*request, error) {
	if strings.TrimSpace(opts.Cache) == "" {
		return nil, configurationError(uri, ErrMissingCacheDir)
	}

	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}
	if method == http.MethodGet && hasBody(opts.Body) {
		return nil, configurationError(uri, ErrBodyOnGet)
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, configurationError(uri, fmt.Errorf("parse url: %w", err))
	}
	if err := transport.CheckScheme(parsed); err != nil {
		return nil, &Error{Kind: KindUnsupportedScheme, URL: uri, Err: err}
	}
	if parsed.Host == "" {
		return nil, configurationError(uri, errors.New("url must be absolute"))
	}

	key, err := cache.KeyFor(opts.Cache, parsed)
	if err != nil {
		return nil, configurationError(uri, err)
	}

	href := parsed.String()
	return &request{
		call:   call,
		url:    parsed,
		href:   href,
		method: method,
		header: opts.Header.Clone(),
		body:   opts.Body,
		policy: cache.Policy{
			Method:   method,
			MaxAge:   opts.MaxAge,
			MaxStale: opts.MaxStale,
		},
		key:     key,
		log:     c.logger.WithFields(logging.RequestFields(call.id, method, href, key.Name)),
		started: c.now(),
	}, nil
}

// serveCached 以磁盘正文与 headers.json 构造响应并结算调用。
func (c *Client) serveCached(ctx context.Context, req *request, status int, source Source) error {
	body, err := c.storage.Open(ctx, req.key.BodyPath)
	if err != nil {
		req.log.WithError(err).Warn("cache_read_failed")
		return err
	}

	resp := &Response{
		StatusCode: status,
		Header:     req.state.Headers.HTTP(),
		Body:       body,
		Source:     source,
		URL:        req.href,
	}
	req.call.settle(resp, nil)
	c.logResult(req, status, source, nil)
	return nil
}

// fetchRemote 回源。background 为 true 时调用已经用过期缓存结算，
// 这里只负责刷新缓存并通过 Updates 通知。
func (c *Client) fetchRemote(ctx context.Context, req *request, etag string, background bool) {
	header := req.header
	if header == nil {
		header = http.Header{}
	}
	if etag != "" && req.method == http.MethodGet {
		header = header.Clone()
		header.Set("If-None-Match", etag)
		req.log.WithField("etag", etag).Debug("conditional_request")
	}

	var body io.Reader
	if req.method != http.MethodGet {
		body = req.body
	}

	resp, err := c.transport.Perform(ctx, transport.Request{
		Method: req.method,
		URL:    req.url,
		Header: header,
		Body:   body,
	})
	if err != nil {
		c.handleTransportError(ctx, req, err, background)
		return
	}

	switch {
	case resp.StatusCode == http.StatusNotModified && req.method == http.MethodGet && req.state.Present:
		resp.Body.Close()
		c.handleNotModified(ctx, req, background)
	case resp.StatusCode == http.StatusOK && req.method == http.MethodGet:
		live := c.persist(ctx, req, resp)
		if background {
			drain(live)
			req.log.WithField("upstream_status", resp.StatusCode).Debug("background_refresh_complete")
			return
		}
		c.deliverLive(req, resp, live)
	default:
		if background {
			drain(resp.Body)
			req.log.WithField("upstream_status", resp.StatusCode).Debug("background_refresh_skipped")
			return
		}
		c.deliverLive(req, resp, resp.Body)
	}
}

func (c *Client) handleTransportError(ctx context.Context, req *request, err error, background bool) {
	req.log.WithError(err).Warn("remote_fetch_failed")
	if background {
		return
	}
	if req.state.Present {
		if serveErr := c.serveCached(ctx, req, http.StatusNotModified, SourceFallback); serveErr == nil {
			return
		}
	}

	kind := KindTransport
	var schemeErr *transport.UnsupportedSchemeError
	if errors.As(err, &schemeErr) {
		kind = KindUnsupportedScheme
	}
	fetchErr := &Error{Kind: kind, URL: req.href, Err: err}
	req.call.settle(nil, fetchErr)
	c.logResult(req, 0, SourceNetwork, fetchErr)
}

// handleNotModified 刷新条目的 storedAt，正文与 headers.json 保持不变。
func (c *Client) handleNotModified(ctx context.Context, req *request, background bool) {
	if err := c.storage.Touch(ctx, req.key.BodyPath, c.now()); err != nil {
		req.log.WithError(err).Warn("cache_touch_failed")
	}
	if background {
		req.log.Debug("background_revalidated")
		return
	}
	if err := c.serveCached(ctx, req, http.StatusNotModified, SourceRevalidated); err != nil {
		fetchErr := &Error{Kind: KindTransport, URL: req.href, Err: fmt.Errorf("cached entry vanished after 304: %w", err)}
		req.call.settle(nil, fetchErr)
		c.logResult(req, http.StatusNotModified, SourceRevalidated, fetchErr)
	}
}

func (c *Client) deliverLive(req *request, resp *http.Response, body io.ReadCloser) {
	req.call.settle(&Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Source:     SourceNetwork,
		URL:        req.href,
	}, nil)
	c.logResult(req, resp.StatusCode, SourceNetwork, nil)
}

func (c *Client) logResult(req *request, status int, source Source, err error) {
	fields := logrus.Fields{
		"action":     "fetch",
		"status":     status,
		"source":     string(source),
		"cache_hit":  source.FromCache(),
		"elapsed_ms": c.now().Sub(req.started).Milliseconds(),
	}
	if err != nil {
		req.log.WithFields(fields).WithError(err).Error("fetch_failed")
		return
	}
	req.log.WithFields(fields).Info("fetch_complete")
}

// hasBody 判断 GET 是否携带正文；暴露 Len() 且为 0 的 Reader 视为空正文。
func hasBody(body io.Reader) bool {
	if body == nil || body == http.NoBody {
		return false
	}
	if sized, ok := body.(interface{ Len() int }); ok {
		return sized.Len() > 0
	}
	return true
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
