package source

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"

	"github.com/spf13/afero"

	"github.com/driftwood2d/resvfs/internal/vfs"
)

// MemoryLocation 是内存源在日志与诊断中的位置标识。
const MemoryLocation = "memory://injected"

// MemorySource 保存运行时注入的原始字节，内容实时可见（不做快照）。
type MemorySource struct {
	fs afero.Fs
}

// NewMemory 创建空的内存源。
func NewMemory() *MemorySource {
	return &MemorySource{fs: afero.NewMemMapFs()}
}

func (m *MemorySource) sealed() {}

func (m *MemorySource) Kind() Kind { return KindMemory }

func (m *MemorySource) Location() string { return MemoryLocation }

func (m *MemorySource) Exists(p vfs.Path) bool {
	info, err := m.fs.Stat(fsName(p))
	return err == nil && !info.IsDir()
}

func (m *MemorySource) Read(p vfs.Path) ([]byte, error) {
	data, err := afero.ReadFile(m.fs, fsName(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(p, MemoryLocation)
		}
		return nil, fmt.Errorf("%w: %s in %s: %w", vfs.ErrSourceRead, p, MemoryLocation, err)
	}
	return data, nil
}

// Put 写入（或覆盖）一个注入文件。
func (m *MemorySource) Put(p vfs.Path, data []byte) error {
	name := fsName(p)
	if err := m.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", vfs.ErrSourceRead, p, err)
	}
	if err := afero.WriteFile(m.fs, name, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", vfs.ErrSourceRead, p, err)
	}
	return nil
}

// Delete 删除注入文件，不存在时返回 ErrResourceNotFound。
func (m *MemorySource) Delete(p vfs.Path) error {
	if !m.Exists(p) {
		return notFound(p, MemoryLocation)
	}
	if err := m.fs.Remove(fsName(p)); err != nil {
		return fmt.Errorf("%w: %s: %w", vfs.ErrSourceRead, p, err)
	}
	return nil
}

func (m *MemorySource) List() iter.Seq[vfs.Path] {
	return func(yield func(vfs.Path) bool) {
		_, ordered, err := walkFiles(m.fs)
		if err != nil {
			return
		}
		for _, p := range ordered {
			if !yield(p) {
				return
			}
		}
	}
}
