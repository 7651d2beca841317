package config

import (
	"testing"
	"time"
)

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
[Path]
Root = "data"

[Cache]
TTL = "boom"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsDurationStrings(t *testing.T) {
	cfg := `
[Cache]
TTL = "1m30s"
`
	path := writeTempConfig(t, cfg)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Cache.TTL.DurationValue() != 90*time.Second {
		t.Fatalf("expected 90s, got %v", loaded.Cache.TTL.DurationValue())
	}
	if loaded.Tick.Rate != 60 || loaded.Path.Common != DefaultCommon {
		t.Fatalf("未声明的字段应回落到默认值: %+v", loaded)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("RESVFS_CACHE_TTL", "0")
	t.Setenv("RESVFS_PATH_PACKAGES", "base,patch.zip")

	path := writeTempConfig(t, `
[Cache]
TTL = 10
`)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Cache.TTL.DurationValue() != 0 {
		t.Fatalf("环境变量应覆盖 TTL，得到 %v", loaded.Cache.TTL.DurationValue())
	}
	if len(loaded.Path.Packages) != 2 || loaded.Path.Packages[1] != "patch.zip" {
		t.Fatalf("逗号分隔的包列表应被拆分: %v", loaded.Path.Packages)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(testConfigPath(t, "does-not-exist.toml")); err == nil {
		t.Fatalf("缺失的配置文件应报错")
	}
}
