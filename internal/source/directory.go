package source

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/driftwood2d/resvfs/internal/vfs"
)

// DirectorySource 通过 afero 访问一个目录树，存在性判断基于挂载时的快照。
type DirectorySource struct {
	location string
	fs       afero.Fs
	snapshot map[vfs.Path]struct{}
	ordered  []vfs.Path
}

// NewDirectory 以磁盘目录为根构建目录源，并立即生成文件快照。
func NewDirectory(dir string) (*DirectorySource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", vfs.ErrPathInvalid, dir, err)
	}
	return NewDirectoryFs(abs, afero.NewBasePathFs(afero.NewOsFs(), abs))
}

// NewDirectoryFs 基于任意 afero.Fs 构建目录源，fsys 的根即源的根。
func NewDirectoryFs(location string, fsys afero.Fs) (*DirectorySource, error) {
	if fsys == nil {
		return nil, fmt.Errorf("%w: nil filesystem for %s", vfs.ErrPathInvalid, location)
	}
	snapshot, ordered, err := walkFiles(fsys)
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %w", vfs.ErrSourceRead, location, err)
	}
	return &DirectorySource{
		location: location,
		fs:       fsys,
		snapshot: snapshot,
		ordered:  ordered,
	}, nil
}

func (d *DirectorySource) sealed() {}

func (d *DirectorySource) Kind() Kind { return KindDirectory }

func (d *DirectorySource) Location() string { return d.location }

func (d *DirectorySource) Exists(p vfs.Path) bool {
	_, ok := d.snapshot[p]
	return ok
}

func (d *DirectorySource) Read(p vfs.Path) ([]byte, error) {
	if !d.Exists(p) {
		return nil, notFound(p, d.location)
	}
	data, err := afero.ReadFile(d.fs, fsName(p))
	if err != nil {
		// 快照中存在但磁盘上已消失，同样视为读取失败而非未找到。
		return nil, fmt.Errorf("%w: %s in %s: %w", vfs.ErrSourceRead, p, d.location, err)
	}
	return data, nil
}

func (d *DirectorySource) List() iter.Seq[vfs.Path] {
	return slices.Values(d.ordered)
}

// Len 返回快照中的文件数。
func (d *DirectorySource) Len() int {
	return len(d.ordered)
}

func walkFiles(fsys afero.Fs) (map[vfs.Path]struct{}, []vfs.Path, error) {
	snapshot := make(map[vfs.Path]struct{})
	var ordered []vfs.Path

	err := afero.Walk(fsys, "/", func(name string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && name == "/" {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(filepath.ToSlash(name), "/")
		p, parseErr := vfs.ParsePath(rel)
		if parseErr != nil {
			return nil
		}
		if _, exists := snapshot[p]; !exists {
			snapshot[p] = struct{}{}
			ordered = append(ordered, p)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	slices.Sort(ordered)
	return snapshot, ordered, nil
}

func fsName(p vfs.Path) string {
	return "/" + string(p)
}
