package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的前缀，例如 RESVFS_CACHE_TTL。
const EnvPrefix = "RESVFS"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	hooks := mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	root := cfg.Path.Root
	if !filepath.IsAbs(root) {
		// 相对根目录以配置文件所在目录为基准，而非进程工作目录。
		root = filepath.Join(filepath.Dir(path), root)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("无法解析数据根目录: %w", err)
	}
	cfg.Path.Root = absRoot

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "json")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Path.Root", "data")
	v.SetDefault("Path.Common", DefaultCommon)
	v.SetDefault("Path.Packages", []string{})
	v.SetDefault("Cache.TTL", 30)
	v.SetDefault("Cache.SweepInterval", 1)
	v.SetDefault("Tick.Rate", 60)
	v.SetDefault("Diagnostics.ListenPort", 0)
}

// DefaultCommon 是内置包目录的默认名称。
const DefaultCommon = "__common__"

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Path.Common) == "" {
		cfg.Path.Common = DefaultCommon
	}
	if cfg.Cache.SweepInterval == 0 {
		cfg.Cache.SweepInterval = 1
	}
	packages := cfg.Path.Packages[:0]
	for _, pkg := range cfg.Path.Packages {
		packages = append(packages, strings.TrimSpace(pkg))
	}
	cfg.Path.Packages = packages
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
