package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	switch strings.ToLower(strings.TrimSpace(g.LogFormat)) {
	case "", "json", "text":
	default:
		return newFieldError("Global.LogFormat", "仅支持 json/text")
	}
	if strings.TrimSpace(g.CacheDir) == "" {
		return newFieldError("Global.CacheDir", "不能为空")
	}
	if g.MaxAge.DurationValue() < 0 {
		return newFieldError("Global.MaxAge", "不能为负数")
	}
	if g.MaxStale.DurationValue() < 0 {
		return newFieldError("Global.MaxStale", "不能为负数")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Rules {
		rule := &c.Rules[i]
		if rule.Name == "" {
			return newFieldError("Rule[].Name", "不能为空")
		}
		if _, exists := seenNames[rule.Name]; exists {
			return newFieldError(ruleField(rule.Name, "Name"), "重复")
		}
		seenNames[rule.Name] = struct{}{}

		if err := validatePrefix(rule.Prefix); err != nil {
			return fmt.Errorf("%s: %w", ruleField(rule.Name, "Prefix"), err)
		}
		if rule.MaxAge.DurationValue() < 0 {
			return newFieldError(ruleField(rule.Name, "MaxAge"), "不能为负数")
		}
		if rule.MaxStale.DurationValue() < 0 {
			return newFieldError(ruleField(rule.Name, "MaxStale"), "不能为负数")
		}
	}

	return nil
}

func validatePrefix(raw string) error {
	if raw == "" {
		return errors.New("缺少 URL 前缀")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，前缀: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("前缀缺少 Host: %s", raw)
	}
	return nil
}
