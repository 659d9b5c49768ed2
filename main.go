package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/any-hub/any-cache/internal/config"
	"github.com/any-hub/any-cache/internal/fetch"
	"github.com/any-hub/any-cache/internal/logging"
	"github.com/any-hub/any-cache/internal/server"
	"github.com/any-hub/any-cache/internal/server/routes"
	"github.com/any-hub/any-cache/internal/transport"
	"github.com/any-hub/any-cache/internal/version"
)

// configEnv 指定配置文件路径的环境变量，优先级低于 --config。
const configEnv = "ANY_CACHE_CONFIG"

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 执行 CLI 并返回退出码，方便测试。
func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdOut)
	root.SetErr(stdErr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stdErr, err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "any-cache",
		Short:         "Disk-backed HTTP caching client",
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "配置文件路径（默认 ./config.toml，可被 "+configEnv+" 覆盖）")

	configPath := func() string {
		return resolveConfigPath(configFlag)
	}

	root.AddCommand(
		newGetCmd(configPath),
		newServeCmd(configPath),
		newCheckConfigCmd(configPath),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath 按 --config > ANY_CACHE_CONFIG > ./config.toml 的顺序选择配置文件；
// 都不存在时返回空串，仅使用默认值与环境变量。
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(configEnv); env != "" {
		return env
	}
	if _, err := os.Stat("config.toml"); err == nil {
		return "config.toml"
	}
	return ""
}

// loadRuntime 加载配置并初始化日志，console 为日志的控制台输出。
func loadRuntime(configPath string, console io.Writer) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := logging.InitLogger(cfg.Global, console)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

func newFetchClient(cfg *config.Config, logger *logrus.Logger) *fetch.Client {
	return fetch.NewClient(fetch.ClientOptions{
		Transport: transport.NewHTTPTransport(transport.Options{
			Timeout: cfg.Global.UpstreamTimeout.DurationValue(),
		}),
		Logger: logger,
	})
}

func newCheckConfigCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, logger, err := loadRuntime(path, stdOut)
			if err != nil {
				return err
			}
			fields := logging.BaseFields("check_config", path)
			fields["cache_dir"] = cfg.Global.CacheDir
			fields["rules"] = config.RuleNames(cfg.Rules)
			fields["result"] = "ok"
			logger.WithFields(fields).Info("config_check_passed")
			return nil
		},
	}
}

func newServeCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the caching client over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, logger, err := loadRuntime(path, stdOut)
			if err != nil {
				return err
			}

			fields := logging.BaseFields("startup", path)
			fields["listen_port"] = cfg.Global.ListenPort
			fields["cache_dir"] = cfg.Global.CacheDir
			fields["rules"] = config.RuleNames(cfg.Rules)
			fields["version"] = version.Full()
			logger.WithFields(fields).Info("config_loaded")

			if err := startHTTPServer(cfg, newFetchClient(cfg, logger), logger); err != nil {
				return fmt.Errorf("HTTP 服务启动失败: %w", err)
			}
			return nil
		},
	}
}

func startHTTPServer(cfg *config.Config, client server.Fetcher, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger: logger,
		Client: client,
		Config: cfg,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, cfg)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("server_listening")

	return app.Listen(fmt.Sprintf(":%d", port))
}
