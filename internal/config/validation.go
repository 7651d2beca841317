package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/driftwood2d/resvfs/internal/vfs"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动引擎。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if strings.TrimSpace(c.Path.Root) == "" {
		return newFieldError("Path.Root", "不能为空")
	}
	if err := validateLocation(c.Path.Common); err != nil {
		return newFieldError("Path.Common", err.Error())
	}
	for i, pkg := range c.Path.Packages {
		if err := validateLocation(pkg); err != nil {
			return newFieldError(packageField(i), err.Error())
		}
	}

	if c.Tick.Rate <= 0 {
		return newFieldError("Tick.Rate", "必须大于 0")
	}
	if c.Cache.TTL.DurationValue() < 0 {
		return newFieldError("Cache.TTL", "不能为负数")
	}
	if c.Cache.SweepInterval < 1 {
		return newFieldError("Cache.SweepInterval", "必须大于等于 1")
	}
	if c.Diagnostics.ListenPort < 0 || c.Diagnostics.ListenPort > 65535 {
		return newFieldError("Diagnostics.ListenPort", "必须在 0-65535")
	}
	return nil
}

// validateLocation 只做静态检查：非空且相对路径不越出根目录。
func validateLocation(location string) error {
	if strings.TrimSpace(location) == "" {
		return errors.New("不能为空")
	}
	if filepath.IsAbs(location) {
		return nil
	}
	cleaned := filepath.Clean(location)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return errors.New("不能越出 Path.Root")
	}
	return nil
}

// Locate 将包位置限制在数据根目录内：相对位置拼接到 Root，绝对位置也必须位于 Root 之下。
func (p PathConfig) Locate(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("%w: empty location", vfs.ErrPathInvalid)
	}
	root, err := filepath.Abs(p.Root)
	if err != nil {
		return "", fmt.Errorf("%w: root %s: %w", vfs.ErrPathInvalid, p.Root, err)
	}

	full := location
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes %s", vfs.ErrPathInvalid, location, root)
	}
	return full, nil
}

// CommonLocation 返回内置包的绝对位置。
func (p PathConfig) CommonLocation() (string, error) {
	return p.Locate(p.Common)
}
