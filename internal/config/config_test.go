package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftwood2d/resvfs/internal/vfs"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if !filepath.IsAbs(cfg.Path.Root) {
		t.Fatalf("Root 应被转换为绝对路径，得到 %s", cfg.Path.Root)
	}
	if filepath.Base(cfg.Path.Root) != "data" {
		t.Fatalf("Root 应相对配置文件目录解析，得到 %s", cfg.Path.Root)
	}
	if len(cfg.Path.Packages) != 2 || cfg.Path.Packages[1] != "patch1.zip" {
		t.Fatalf("Packages 顺序应被保留: %v", cfg.Path.Packages)
	}
	if cfg.Cache.TTL.DurationValue() != 5*time.Second {
		t.Fatalf("整数 TTL 应按秒解析，得到 %v", cfg.Cache.TTL.DurationValue())
	}
	if cfg.Tick.TickDuration() != time.Second/60 {
		t.Fatalf("unexpected tick duration %v", cfg.Tick.TickDuration())
	}
	if cfg.Global.LogMaxSize != 100 {
		t.Fatalf("LogMaxSize 应自动填充默认值")
	}
	if cfg.Diagnostics.ListenPort != 7070 {
		t.Fatalf("ListenPort 应当被解析")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfgPath := testConfigPath(t, "missing.toml")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("不合法的配置应返回错误")
	}
}

func TestValidateFieldErrors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero tick rate", func(c *Config) { c.Tick.Rate = 0 }, "Tick.Rate"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = Duration(-time.Second) }, "Cache.TTL"},
		{"zero sweep interval", func(c *Config) { c.Cache.SweepInterval = 0 }, "Cache.SweepInterval"},
		{"empty root", func(c *Config) { c.Path.Root = "" }, "Path.Root"},
		{"escaping package", func(c *Config) { c.Path.Packages = []string{"ok", "../outside"} }, "Path.Packages[1]"},
		{"port out of range", func(c *Config) { c.Diagnostics.ListenPort = 70000 }, "Diagnostics.ListenPort"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			var fieldErr FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fieldErr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, fieldErr.Field)
			}
		})
	}
}

func TestValidateAllowsZeroTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.TTL = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("TTL=0 是合法配置: %v", err)
	}
}

func TestLocateJailsToRoot(t *testing.T) {
	root := t.TempDir()
	p := PathConfig{Root: root}

	got, err := p.Locate("patches/p1.zip")
	if err != nil {
		t.Fatalf("Locate 返回错误: %v", err)
	}
	if got != filepath.Join(root, "patches", "p1.zip") {
		t.Fatalf("unexpected location %s", got)
	}
	if got, err := p.Locate(filepath.Join(root, "abs")); err != nil || got != filepath.Join(root, "abs") {
		t.Fatalf("根目录内的绝对路径应被接受: %s %v", got, err)
	}

	for _, bad := range []string{"", "../escape", "a/../../escape", filepath.Dir(root)} {
		if _, err := p.Locate(bad); !errors.Is(err, vfs.ErrPathInvalid) {
			t.Fatalf("expected ErrPathInvalid for %q, got %v", bad, err)
		}
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{LogLevel: "info"},
		Path: PathConfig{
			Root:     "./data",
			Common:   DefaultCommon,
			Packages: []string{"base"},
		},
		Cache: CacheConfig{TTL: Duration(5 * time.Second), SweepInterval: 1},
		Tick:  TickConfig{Rate: 60},
	}
}
