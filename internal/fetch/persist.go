package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/cache"
)

var errClosedEarly = errors.New("response closed before EOF")

// persist 为 200 GET 响应准备缓存写入：确保目录存在、打开临时正文，
// 并返回一个边读边写的 Body。目录或临时文件创建失败时放弃缓存，直接返回原始 Body。
// headers.json 只会在正文完整提交之后写入。
func (c *Client) persist(ctx context.Context, req *request, resp *http.Response) io.ReadCloser {
	if err := c.storage.MkdirAll(ctx, req.key.Dir); err != nil {
		req.log.WithError(err).WithField("dir", req.key.Dir).Warn("cache_dir_create_failed")
		return resp.Body
	}

	sink, err := c.storage.Create(ctx, req.key.BodyPath)
	if err != nil {
		req.log.WithError(err).Warn("cache_body_open_failed")
		return resp.Body
	}

	req.call.notify(Update{URL: req.href, Key: req.key})

	req.call.pending.Add(1)
	return &cachingBody{
		ctx:     ctx,
		body:    resp.Body,
		sink:    sink,
		headers: cache.HeadersFromHTTP(resp.Header),
		storage: c.storage,
		key:     req.key,
		log:     req.log,
		done:    req.call.pending.Done,
	}
}

// cachingBody 把读到的字节同时写入缓存 Sink。读到 EOF 时提交正文并写入
// headers.json；读取出错、写入出错或提前 Close 时丢弃临时正文。
// 缓存侧的失败只记录日志，不影响调用方读取实时响应。
type cachingBody struct {
	ctx     context.Context
	body    io.ReadCloser
	sink    cache.Sink
	headers cache.Headers
	storage cache.Storage
	key     cache.Key
	log     *logrus.Entry
	done    func()

	mu       sync.Mutex
	finished bool
	written  int64
}

func (b *cachingBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.write(p[:n])
	}
	switch {
	case errors.Is(err, io.EOF):
		b.commit()
	case err != nil:
		b.abort(err)
	}
	return n, err
}

func (b *cachingBody) Close() error {
	err := b.body.Close()
	b.abort(errClosedEarly)
	return err
}

func (b *cachingBody) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	n, err := b.sink.Write(p)
	b.written += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		b.abortLocked(err)
	}
}

func (b *cachingBody) commit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	defer b.done()

	if err := b.sink.Commit(); err != nil {
		b.log.WithError(err).Warn("cache_body_commit_failed")
		return
	}
	if err := cache.SaveHeaders(b.ctx, b.storage, b.key, b.headers); err != nil {
		b.log.WithError(err).Warn("cache_headers_write_failed")
		if rmErr := b.storage.Remove(b.ctx, b.key.BodyPath); rmErr != nil {
			b.log.WithError(rmErr).Warn("cache_body_cleanup_failed")
		}
		return
	}
	b.log.WithField("size_bytes", b.written).Debug("cache_write_complete")
}

func (b *cachingBody) abort(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.abortLocked(cause)
}

func (b *cachingBody) abortLocked(cause error) {
	if b.finished {
		return
	}
	b.finished = true
	defer b.done()

	b.log.WithError(cause).Warn("cache_write_aborted")
	if err := b.sink.Abort(); err != nil {
		b.log.WithError(err).Warn("cache_body_cleanup_failed")
	}
}
