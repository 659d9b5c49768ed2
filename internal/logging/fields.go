package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 request_id/method/url/cache_key 字段，供缓存客户端日志复用。
func RequestFields(requestID, method, url, cacheKey string) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"url":        url,
		"cache_key":  cacheKey,
	}
}
