package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/config"
	"github.com/any-hub/any-cache/internal/fetch"
	"github.com/any-hub/any-cache/internal/transport"
)

// FetchHandler relays /fetch?url=<abs-url> through the caching client.
type FetchHandler struct {
	client Fetcher
	logger *logrus.Logger
	cfg    *config.Config
}

// NewFetchHandler constructs the relay handler.
func NewFetchHandler(client Fetcher, logger *logrus.Logger, cfg *config.Config) *FetchHandler {
	return &FetchHandler{client: client, logger: logger, cfg: cfg}
}

// Handle 解析目标 URL 与缓存窗口，等待调用结算后把响应流式写回客户端。
func (h *FetchHandler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := RequestID(c)

	target := strings.TrimSpace(c.Query("url"))
	if target == "" {
		return renderError(c, h.logger, fiber.StatusBadRequest, "url_required", nil)
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		return renderError(c, h.logger, fiber.StatusBadRequest, "invalid_request", err)
	}

	policy := h.cfg.PolicyFor(target)
	cacheControl := parseCacheControl(string(c.Request().Header.Peek(fiber.HeaderCacheControl)))
	if cacheControl.maxAgeSet {
		policy.MaxAge = cacheControl.maxAge
	}
	if cacheControl.maxStaleSet {
		policy.MaxStale = cacheControl.maxStale
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	call := h.client.Request(ctx, target, fetch.Options{
		Cache:    h.cfg.Global.CacheDir,
		Method:   c.Method(),
		Header:   forwardedHeaders(c),
		Body:     bytesReader(c.Body()),
		MaxAge:   policy.MaxAge,
		MaxStale: policy.MaxStale,
	})
	resp, err := call.Wait(ctx)
	if err != nil {
		switch fetch.KindOf(err) {
		case fetch.KindConfiguration, fetch.KindUnsupportedScheme:
			return renderError(c, h.logger, fiber.StatusBadRequest, "invalid_request", err)
		default:
			return renderError(c, h.logger, fiber.StatusBadGateway, "upstream_failed", err)
		}
	}
	defer resp.Body.Close()

	copyResponseHeaders(c, resp.Header)
	c.Set("X-Any-Cache-Source", string(resp.Source))
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	status := relayStatus(c, resp)
	c.Status(status)

	if status != fiber.StatusNotModified {
		_, err = io.Copy(c.Response().BodyWriter(), resp.Body)
	}
	h.logResult(requestID, target, call.ID(), resp, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "relay stream failed")
	}
	return nil
}

// relayStatus 决定写回客户端的状态码。客户端没有发送条件请求时，304 形式的缓存
// 响应（revalidated / fallback）改写为 200 以便带上正文，来源仍由 X-Any-Cache-Source 标明。
func relayStatus(c fiber.Ctx, resp *fetch.Response) int {
	if resp.StatusCode != fiber.StatusNotModified {
		return resp.StatusCode
	}
	switch resp.Source {
	case fetch.SourceRevalidated, fetch.SourceFallback:
		if !isConditionalRequest(c) {
			return fiber.StatusOK
		}
	}
	return resp.StatusCode
}

func isConditionalRequest(c fiber.Ctx) bool {
	return len(c.Request().Header.Peek(fiber.HeaderIfNoneMatch)) > 0 ||
		len(c.Request().Header.Peek(fiber.HeaderIfModifiedSince)) > 0
}

func (h *FetchHandler) logResult(requestID, target, callID string, resp *fetch.Response, started time.Time, err error) {
	fields := logrus.Fields{
		"action":     "relay",
		"request_id": requestID,
		"call_id":    callID,
		"url":        target,
		"status":     resp.StatusCode,
		"source":     string(resp.Source),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}
	if err != nil {
		h.logger.WithFields(fields).WithError(err).Error("relay_failed")
		return
	}
	h.logger.WithFields(fields).Info("relay_complete")
}

// forwardedHeaders 复制客户端请求头，剔除 Host 与长度相关的头，hop-by-hop 由 transport 过滤。
func forwardedHeaders(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		name := string(key)
		switch http.CanonicalHeaderKey(name) {
		case "Host", "Content-Length":
			return
		}
		header.Add(name, string(value))
	})
	return header
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if transport.IsHopByHopHeader(key) || strings.EqualFold(key, "Content-Length") {
			continue
		}
		for i, value := range values {
			if i == 0 {
				c.Set(key, value)
				continue
			}
			c.Append(key, value)
		}
	}
}

func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return http.NoBody
	}
	return bytes.NewReader(append([]byte(nil), b...))
}
