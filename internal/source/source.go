package source

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"

	"github.com/driftwood2d/resvfs/internal/vfs"
)

// Kind 标识源的具体变体，集合是封闭的。
type Kind string

const (
	KindDirectory Kind = "directory"
	KindArchive   Kind = "archive"
	KindMemory    Kind = "memory"
)

// Source 是单个挂载位置的只读视图。
type Source interface {
	// Kind 返回源的变体类型，用于日志与诊断输出。
	Kind() Kind
	// Location 返回挂载时使用的磁盘位置（内存源为固定标识）。
	Location() string
	// Exists 判断路径是否由该源提供。
	Exists(p vfs.Path) bool
	// Read 返回原始字节：不存在时返回 ErrResourceNotFound，I/O 或损坏时返回 ErrSourceRead。
	Read(p vfs.Path) ([]byte, error)
	// List 返回该源提供的全部路径，序列有限且可重复遍历，仅用于诊断与热补丁失效计算。
	List() iter.Seq[vfs.Path]

	sealed()
}

// Open 根据位置类型选择目录或归档实现。位置不存在时返回 ErrPathNotFound。
func Open(location string) (Source, error) {
	info, err := os.Stat(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", vfs.ErrPathNotFound, location)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", vfs.ErrSourceRead, location, err)
	}
	if info.IsDir() {
		return NewDirectory(location)
	}
	return OpenArchive(location)
}

func notFound(p vfs.Path, location string) error {
	return fmt.Errorf("%w: %s in %s", vfs.ErrResourceNotFound, p, location)
}
