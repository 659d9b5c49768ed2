package fetch

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrAbandoned 表示此前的 Wait 已因 ctx 结束而放弃该调用，结果已被丢弃。
var ErrAbandoned = errors.New("call abandoned by waiter")

// Call 是一次 Request 的句柄。结果只会被结算一次，后到的结算会被丢弃。
type Call struct {
	id  string
	url string

	once sync.Once
	done chan struct{}

	mu        sync.Mutex
	resp      *Response
	err       error
	settled   bool
	abandoned bool

	updates chan Update
	pending sync.WaitGroup
}

func newCall(url string) *Call {
	return &Call{
		id:      uuid.NewString(),
		url:     url,
		done:    make(chan struct{}),
		updates: make(chan Update, 1),
	}
}

// ID 返回本次调用的请求 ID，与日志中的 request_id 一致。
func (c *Call) ID() string {
	return c.id
}

// URL returns the URI the call was issued for.
func (c *Call) URL() string {
	return c.url
}

// Done 在结果可用时关闭。
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait 阻塞直到调用结算或 ctx 结束。ctx 结束不会取消调用本身，但调用会被视为放弃：
// 之后到达的响应正文会被直接关闭（正在写入的缓存随之放弃），后续 Wait 返回 ErrAbandoned。
func (c *Call) Wait(ctx context.Context) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-c.done:
		return c.result()
	default:
	}
	select {
	case <-c.done:
		return c.result()
	case <-ctx.Done():
		c.abandon()
		return nil, ctx.Err()
	}
}

func (c *Call) result() (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.abandoned {
		return nil, ErrAbandoned
	}
	return c.resp, c.err
}

// abandon 标记调用无人接收；若结果已经到达则立即关闭正文。
func (c *Call) abandon() {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return
	}
	c.abandoned = true
	resp := c.resp
	settled := c.settled
	c.mu.Unlock()

	if settled {
		closeResponse(resp)
	}
}

// Updates 推送 cache-update 通知，并在调用的全部工作（包括后台刷新与缓存写入）
// 结束后关闭。正在写缓存的实时响应需要被读完或 Close，通道才会关闭。
func (c *Call) Updates() <-chan Update {
	return c.updates
}

// settle 结算调用，返回 false 表示已被结算过。
func (c *Call) settle(resp *Response, err error) bool {
	settled := false
	c.once.Do(func() {
		c.mu.Lock()
		c.resp = resp
		c.err = err
		c.settled = true
		abandoned := c.abandoned
		c.mu.Unlock()
		settled = true
		close(c.done)
		if abandoned {
			closeResponse(resp)
		}
	})
	if !settled {
		closeResponse(resp)
	}
	return settled
}

func closeResponse(resp *Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}

func (c *Call) notify(update Update) {
	select {
	case c.updates <- update:
	default:
	}
}

func (c *Call) track(work func()) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		work()
	}()
}

func (c *Call) closeUpdatesWhenIdle() {
	go func() {
		c.pending.Wait()
		close(c.updates)
	}()
}
