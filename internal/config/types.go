package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/any-cache/internal/cache"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数、Go Duration 字符串与 "inf"。
type Duration time.Duration

// UnmarshalText 使 Viper / CLI 可以识别诸如 "30s"、"5m"、纯数字秒值或 "inf" 等写法。
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDuration 解析配置与命令行中的时长。"inf"/"infinity"/"unbounded" 表示无限。
func ParseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Duration(0), nil
	}

	switch strings.ToLower(raw) {
	case "inf", "infinity", "unbounded":
		return Duration(cache.Unbounded), nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		return Duration(parsed), nil
	}

	if intVal, err := parseInt(raw); err == nil {
		return Duration(time.Duration(intVal) * time.Second), nil
	}

	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(seconds * float64(time.Second))), nil
	}

	return 0, fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// String 以 Go Duration 格式输出，无限值输出 "inf"。
func (d Duration) String() string {
	if time.Duration(d) == cache.Unbounded {
		return "inf"
	}
	return time.Duration(d).String()
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有请求共享同一份参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFormat       string   `mapstructure:"LogFormat"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	CacheDir        string   `mapstructure:"CacheDir"`
	MaxAge          Duration `mapstructure:"MaxAge"`
	MaxStale        Duration `mapstructure:"MaxStale"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// RuleConfig 按 URL 前缀覆盖全局的 MaxAge / MaxStale，零值表示沿用全局配置。
type RuleConfig struct {
	Name     string   `mapstructure:"Name"`
	Prefix   string   `mapstructure:"Prefix"`
	MaxAge   Duration `mapstructure:"MaxAge"`
	MaxStale Duration `mapstructure:"MaxStale"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Rules  []RuleConfig `mapstructure:"Rule"`
}

// CachePolicy 是某个 URL 生效的默认缓存窗口。
type CachePolicy struct {
	MaxAge   time.Duration
	MaxStale time.Duration
}

// PolicyFor 返回 rawURL 生效的缓存窗口：最长前缀匹配的 Rule 优先，未覆盖的字段回退至全局值。
func (c *Config) PolicyFor(rawURL string) CachePolicy {
	policy := CachePolicy{
		MaxAge:   c.Global.MaxAge.DurationValue(),
		MaxStale: c.Global.MaxStale.DurationValue(),
	}

	var matched *RuleConfig
	for i := range c.Rules {
		rule := &c.Rules[i]
		if !strings.HasPrefix(rawURL, rule.Prefix) {
			continue
		}
		if matched == nil || len(rule.Prefix) > len(matched.Prefix) {
			matched = rule
		}
	}
	if matched == nil {
		return policy
	}
	if matched.MaxAge.DurationValue() > 0 {
		policy.MaxAge = matched.MaxAge.DurationValue()
	}
	if matched.MaxStale.DurationValue() > 0 {
		policy.MaxStale = matched.MaxStale.DurationValue()
	}
	return policy
}

// RuleNames 返回所有规则的名称摘要，供启动日志使用。
func RuleNames(rules []RuleConfig) []string {
	if len(rules) == 0 {
		return nil
	}
	result := make([]string, len(rules))
	for i, rule := range rules {
		result[i] = fmt.Sprintf("%s:%s", rule.Name, rule.Prefix)
	}
	return result
}
