package routes

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/config"
)

// RegisterDiagnosticsRoutes 暴露 /-/config 与 /-/policy 诊断接口，供排查缓存窗口与规则匹配。
func RegisterDiagnosticsRoutes(app *fiber.App, cfg *config.Config) {
	if app == nil || cfg == nil {
		return
	}

	app.Get("/-/config", func(c fiber.Ctx) error {
		return c.JSON(encodeConfig(cfg))
	})

	app.Get("/-/policy", func(c fiber.Ctx) error {
		target := strings.TrimSpace(c.Query("url"))
		if target == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_required"})
		}
		parsed, err := url.Parse(target)
		if err != nil || parsed.Host == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
		}
		policy := cfg.PolicyFor(target)
		return c.JSON(fiber.Map{
			"url":       target,
			"max_age":   formatWindow(policy.MaxAge),
			"max_stale": formatWindow(policy.MaxStale),
		})
	})
}

type configPayload struct {
	CacheDir        string        `json:"cache_dir"`
	MaxAge          string        `json:"max_age"`
	MaxStale        string        `json:"max_stale"`
	UpstreamTimeout string        `json:"upstream_timeout"`
	Rules           []rulePayload `json:"rules"`
}

type rulePayload struct {
	Name     string `json:"name"`
	Prefix   string `json:"prefix"`
	MaxAge   string `json:"max_age,omitempty"`
	MaxStale string `json:"max_stale,omitempty"`
}

func encodeConfig(cfg *config.Config) configPayload {
	return configPayload{
		CacheDir:        cfg.Global.CacheDir,
		MaxAge:          formatWindow(cfg.Global.MaxAge.DurationValue()),
		MaxStale:        formatWindow(cfg.Global.MaxStale.DurationValue()),
		UpstreamTimeout: cfg.Global.UpstreamTimeout.String(),
		Rules:           encodeRules(cfg.Rules),
	}
}

func encodeRules(rules []config.RuleConfig) []rulePayload {
	if len(rules) == 0 {
		return nil
	}
	sorted := append([]config.RuleConfig(nil), rules...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	result := make([]rulePayload, 0, len(sorted))
	for _, rule := range sorted {
		item := rulePayload{Name: rule.Name, Prefix: rule.Prefix}
		if rule.MaxAge > 0 {
			item.MaxAge = formatWindow(rule.MaxAge.DurationValue())
		}
		if rule.MaxStale > 0 {
			item.MaxStale = formatWindow(rule.MaxStale.DurationValue())
		}
		result = append(result, item)
	}
	return result
}

// formatWindow 输出窗口长度；0 表示未设置，无限窗口输出 "inf"。
func formatWindow(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d == cache.Unbounded:
		return "inf"
	default:
		return d.String()
	}
}
