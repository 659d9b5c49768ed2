package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Storage 抽象缓存目录所需的文件系统原语。路径均为绝对路径，由 Key 计算得出。
//
// 磁盘布局：
//
//	<CacheDir>/<slug>-<sha16>/body           # 响应正文
//	<CacheDir>/<slug>-<sha16>/headers.json   # 响应头（JSON，缩进两格）
//
// body 文件的 ModTime 即条目的 storedAt。
type Storage interface {
	// Stat 返回文件信息；不存在时返回 ErrNotFound。
	Stat(ctx context.Context, path string) (FileInfo, error)

	// Open 以流的方式读取文件；不存在时返回 ErrNotFound。
	Open(ctx context.Context, path string) (io.ReadSeekCloser, error)

	// ReadFile 读取完整文件内容；不存在时返回 ErrNotFound。
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile 通过临时文件 + rename 原子写入。
	WriteFile(ctx context.Context, path string, data []byte) error

	// MkdirAll 递归创建目录，目录已存在时视为成功。
	MkdirAll(ctx context.Context, path string) error

	// Create 打开一个写入流。写入内容在 Commit 之前对读者不可见，
	// Abort 会丢弃已写入的部分。
	Create(ctx context.Context, path string) (Sink, error)

	// Touch 将文件的修改时间更新为 t。
	Touch(ctx context.Context, path string, t time.Time) error

	// Remove 删除文件，不存在时视为成功。
	Remove(ctx context.Context, path string) error
}

// Sink 是 Create 返回的写入流。Commit 与 Abort 只有第一次调用生效。
type Sink interface {
	io.Writer
	Commit() error
	Abort() error
}

// FileInfo 仅暴露缓存决策需要的字段。
type FileInfo struct {
	Path      string
	SizeBytes int64
	ModTime   time.Time
}

// ErrNotFound 表示缓存文件不存在。
var ErrNotFound = errors.New("cache entry not found")
