package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// 领域名称，对应日志链路中的 domain 字段。
const (
	DomainResource = "Resource"
	DomainCache    = "Cache"
	DomainPath     = "Path"
	DomainTick     = "Tick"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// EventFields 构建核心事件字段：domain/action 以及涉及的虚拟路径或挂载位置。
func EventFields(domain, action, target string) logrus.Fields {
	return logrus.Fields{
		"domain": domain,
		"action": action,
		"path":   target,
	}
}

// MountFields 与 EventFields 相同，但目标字段命名为 location，并附带优先级。
func MountFields(action, location string, priority int) logrus.Fields {
	return logrus.Fields{
		"domain":   DomainPath,
		"action":   action,
		"location": location,
		"priority": priority,
	}
}

// Nop 返回丢弃所有输出的 logger，组件未注入 logger 时使用。
func Nop() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrNop 在 logger 为空时回退到 Nop。
func OrNop(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger == nil {
		return Nop()
	}
	return logger
}
