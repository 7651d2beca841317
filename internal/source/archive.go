package source

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/driftwood2d/resvfs/internal/vfs"
)

// ArchiveSource 在挂载时解析 ZIP 中央目录并建立内存索引，读取时按偏移定位条目。
type ArchiveSource struct {
	location string
	closer   io.Closer
	index    map[vfs.Path]*zip.File
	ordered  []vfs.Path
}

// OpenArchive 打开磁盘上的 ZIP 文件。文件句柄在引擎生命周期内保持打开。
func OpenArchive(location string) (*ArchiveSource, error) {
	rc, err := zip.OpenReader(location)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && rc != nil) {
		return nil, fmt.Errorf("%w: open archive %s: %w", vfs.ErrSourceRead, location, err)
	}
	src, err := newArchive(location, &rc.Reader)
	if err != nil {
		rc.Close()
		return nil, err
	}
	src.closer = rc
	return src, nil
}

// NewArchiveReader 从任意 io.ReaderAt 构建归档源，常用于测试与嵌入资源。
func NewArchiveReader(location string, r io.ReaderAt, size int64) (*ArchiveSource, error) {
	zr, err := zip.NewReader(r, size)
	// 非本地路径的条目在建立索引时被过滤，ErrInsecurePath 不阻止挂载。
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return nil, fmt.Errorf("%w: open archive %s: %w", vfs.ErrSourceRead, location, err)
	}
	return newArchive(location, zr)
}

func newArchive(location string, zr *zip.Reader) (*ArchiveSource, error) {
	src := &ArchiveSource{
		location: location,
		index:    make(map[vfs.Path]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
			continue
		}
		p, err := vfs.ParsePath(f.Name)
		if err != nil {
			// 含 .. 或绝对路径的条目不进入虚拟命名空间。
			continue
		}
		if _, exists := src.index[p]; !exists {
			src.ordered = append(src.ordered, p)
		}
		// 同名条目以中央目录中最后出现者为准。
		src.index[p] = f
	}
	slices.Sort(src.ordered)
	return src, nil
}

func (a *ArchiveSource) sealed() {}

func (a *ArchiveSource) Kind() Kind { return KindArchive }

func (a *ArchiveSource) Location() string { return a.location }

func (a *ArchiveSource) Exists(p vfs.Path) bool {
	_, ok := a.index[p]
	return ok
}

func (a *ArchiveSource) Read(p vfs.Path) ([]byte, error) {
	f, ok := a.index[p]
	if !ok {
		return nil, notFound(p, a.location)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %w", vfs.ErrSourceRead, p, a.location, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %w", vfs.ErrSourceRead, p, a.location, err)
	}
	return data, nil
}

func (a *ArchiveSource) List() iter.Seq[vfs.Path] {
	return slices.Values(a.ordered)
}

// Len 返回索引中的条目数。
func (a *ArchiveSource) Len() int {
	return len(a.ordered)
}

// Close 释放底层文件句柄；基于 ReaderAt 构建的归档无需关闭。
func (a *ArchiveSource) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
