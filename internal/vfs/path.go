package vfs

import (
	"fmt"
	"path"
	"strings"
)

// Path 是规范化后的虚拟路径：以 / 分隔、大小写敏感、无前导 /、不含 .. 段。
// 零值不是合法路径，只能通过 ParsePath 构造。
type Path string

// ParsePath 校验并规范化原始路径，非法输入统一返回 ErrPathInvalid。
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathInvalid)
	}
	if strings.HasPrefix(raw, "/") {
		return "", fmt.Errorf("%w: absolute path %q", ErrPathInvalid, raw)
	}
	if strings.ContainsAny(raw, "\\\x00") {
		return "", fmt.Errorf("%w: illegal character in %q", ErrPathInvalid, raw)
	}
	for _, segment := range strings.Split(raw, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: parent segment in %q", ErrPathInvalid, raw)
		}
	}

	cleaned := path.Clean(raw)
	if cleaned == "." {
		return "", fmt.Errorf("%w: %q resolves to root", ErrPathInvalid, raw)
	}
	return Path(cleaned), nil
}

// MustParsePath 用于测试与常量场景，非法路径直接 panic。
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	return string(p)
}

// Valid 判断当前值是否已是规范形式，便于接受外部构造的 Path 时做防御性检查。
func (p Path) Valid() bool {
	parsed, err := ParsePath(string(p))
	return err == nil && parsed == p
}
