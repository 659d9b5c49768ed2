package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// NewFileStorage 返回基于本地文件系统的 Storage，实例无状态，可全局复用。
func NewFileStorage() Storage {
	return fileStorage{}
}

type fileStorage struct{}

func (fileStorage) Stat(ctx context.Context, path string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, notFound(err)
	}
	if info.IsDir() {
		return FileInfo{}, ErrNotFound
	}
	return FileInfo{
		Path:      path,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

func (fileStorage) Open(ctx context.Context, path string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

func (fileStorage) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

func (fileStorage) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (fileStorage) MkdirAll(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(path, 0o755)
}

func (fileStorage) Create(ctx context.Context, path string) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tempFile, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return nil, err
	}
	return &fileSink{file: tempFile, target: path}, nil
}

func (fileStorage) Touch(ctx context.Context, path string, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Chtimes(path, t, t); err != nil {
		return notFound(err)
	}
	return nil
}

func (fileStorage) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// fileSink 先写入同目录下的临时文件，Commit 时 rename 到目标路径，
// 因此读者永远看不到写了一半的正文。
type fileSink struct {
	file   *os.File
	target string

	once sync.Once
	err  error
}

func (s *fileSink) Write(p []byte) (int, error) {
	return s.file.Write(p)
}

func (s *fileSink) Commit() error {
	committed := false
	s.once.Do(func() {
		committed = true
		tempName := s.file.Name()
		if err := s.file.Close(); err != nil {
			os.Remove(tempName)
			s.err = err
			return
		}
		if err := os.Rename(tempName, s.target); err != nil {
			os.Remove(tempName)
			s.err = err
		}
	})
	if !committed && s.err == nil {
		return errors.New("sink already finished")
	}
	return s.err
}

func (s *fileSink) Abort() error {
	var err error
	s.once.Do(func() {
		tempName := s.file.Name()
		_ = s.file.Close()
		if rmErr := os.Remove(tempName); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			err = fmt.Errorf("remove partial body: %w", rmErr)
		}
		s.err = errors.New("sink aborted")
	})
	return err
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
