package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述日志等进程级行为。
type GlobalConfig struct {
	LogLevel      string `mapstructure:"LogLevel"`
	LogFormat     string `mapstructure:"LogFormat"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// PathConfig 描述数据根目录与按优先级排列的包列表。
type PathConfig struct {
	// Root 是所有包位置的根目录，Load 之后总是绝对路径。
	Root string `mapstructure:"Root"`
	// Common 是引擎内置包（优先级 0）相对 Root 的名称。
	Common string `mapstructure:"Common"`
	// Packages 按挂载顺序排列，越靠后优先级越高。
	Packages []string `mapstructure:"Packages"`
}

// CacheConfig 控制解码资源缓存的生存期。
type CacheConfig struct {
	// TTL 为零时，引用归零的条目立即销毁，不等待 sweep。
	TTL Duration `mapstructure:"TTL"`
	// SweepInterval 为两次淘汰扫描之间的 tick 数，1 表示每个 tick 都扫描。
	SweepInterval int `mapstructure:"SweepInterval"`
}

// TickConfig 描述引擎主循环的节拍。
type TickConfig struct {
	Rate int `mapstructure:"Rate"`
}

// DiagnosticsConfig 控制诊断 HTTP 服务，ListenPort 为 0 时不启动。
type DiagnosticsConfig struct {
	ListenPort int `mapstructure:"ListenPort"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global      GlobalConfig      `mapstructure:",squash"`
	Path        PathConfig        `mapstructure:"Path"`
	Cache       CacheConfig       `mapstructure:"Cache"`
	Tick        TickConfig        `mapstructure:"Tick"`
	Diagnostics DiagnosticsConfig `mapstructure:"Diagnostics"`
}

// TickDuration 返回单个 tick 的时长。
func (t TickConfig) TickDuration() time.Duration {
	if t.Rate <= 0 {
		return 0
	}
	return time.Second / time.Duration(t.Rate)
}
