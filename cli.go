package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/any-hub/any-cache/internal/config"
	"github.com/any-hub/any-cache/internal/fetch"
)

// getOptions 汇总 get 子命令的标志。
type getOptions struct {
	cacheDir string
	maxAge   string
	maxStale string
	method   string
	headers  []string
	data     string
}

func newGetCmd(configPath func() string) *cobra.Command {
	var opts getOptions

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Fetch a URL through the disk cache and print the body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), configPath(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.cacheDir, "cache", "", "缓存目录（默认使用配置中的 CacheDir）")
	flags.StringVar(&opts.maxAge, "max-age", "", "缓存新鲜期，如 30s、5m、inf")
	flags.StringVar(&opts.maxStale, "max-stale", "", "过期后仍可先返回缓存的窗口，如 1h、inf")
	flags.StringVarP(&opts.method, "request", "X", "", "HTTP 方法（默认 GET，带 -d 时为 POST）")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "请求头，格式 'Name: value'，可重复")
	flags.StringVarP(&opts.data, "data", "d", "", "请求正文，@path 表示从文件读取")
	return cmd
}

// runGet 执行一次请求：正文写入 stdout，日志写入 stderr，并等待后台刷新结束后退出。
func runGet(ctx context.Context, configPath, target string, opts getOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadRuntime(configPath, stdErr)
	if err != nil {
		return err
	}

	fetchOpts, err := buildFetchOptions(cfg, target, opts)
	if err != nil {
		return err
	}
	if closer, ok := fetchOpts.Body.(io.Closer); ok {
		defer closer.Close()
	}

	call := newFetchClient(cfg, logger).Request(ctx, target, fetchOpts)
	resp, err := call.Wait(ctx)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(stdOut, resp.Body)
	resp.Body.Close()

	for update := range call.Updates() {
		logger.WithFields(logrus.Fields{
			"action":    "cache_update",
			"url":       update.URL,
			"cache_key": update.Key.Name,
		}).Info("cache_updated")
	}

	if copyErr != nil {
		return fmt.Errorf("写出响应失败: %w", copyErr)
	}
	return nil
}

func buildFetchOptions(cfg *config.Config, target string, opts getOptions) (fetch.Options, error) {
	policy := cfg.PolicyFor(target)
	if opts.maxAge != "" {
		parsed, err := config.ParseDuration(opts.maxAge)
		if err != nil {
			return fetch.Options{}, fmt.Errorf("--max-age: %w", err)
		}
		policy.MaxAge = parsed.DurationValue()
	}
	if opts.maxStale != "" {
		parsed, err := config.ParseDuration(opts.maxStale)
		if err != nil {
			return fetch.Options{}, fmt.Errorf("--max-stale: %w", err)
		}
		policy.MaxStale = parsed.DurationValue()
	}

	header, err := parseHeaderFlags(opts.headers)
	if err != nil {
		return fetch.Options{}, err
	}

	cacheDir := cfg.Global.CacheDir
	if opts.cacheDir != "" {
		cacheDir = opts.cacheDir
	}

	method := strings.ToUpper(strings.TrimSpace(opts.method))
	var body io.Reader
	if opts.data != "" {
		if method == "" {
			method = http.MethodPost
		}
		body, err = openData(opts.data)
		if err != nil {
			return fetch.Options{}, err
		}
	}

	return fetch.Options{
		Cache:    cacheDir,
		Method:   method,
		Header:   header,
		Body:     body,
		MaxAge:   policy.MaxAge,
		MaxStale: policy.MaxStale,
	}, nil
}

func parseHeaderFlags(values []string) (http.Header, error) {
	header := http.Header{}
	for _, raw := range values {
		name, value, ok := strings.Cut(raw, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("无效的请求头 %q，应为 'Name: value'", raw)
		}
		header.Add(name, strings.TrimSpace(value))
	}
	return header, nil
}

func openData(data string) (io.Reader, error) {
	if path, ok := strings.CutPrefix(data, "@"); ok {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("读取正文文件失败: %w", err)
		}
		return file, nil
	}
	return strings.NewReader(data), nil
}
