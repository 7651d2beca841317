package overlay

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/driftwood2d/resvfs/internal/source"
	"github.com/driftwood2d/resvfs/internal/vfs"
)

// MountID 即挂载优先级：0 为引擎内置包，之后按挂载顺序递增。
type MountID int

// InjectedMountID 标识注入层，它始终高于所有挂载源。
const InjectedMountID MountID = -1

// Mount 描述一个已挂载的源及其优先级。
type Mount struct {
	ID     MountID
	Source source.Source
}

// FileEntry 是合并视图中的一条记录，Owner 为最终生效的挂载。
type FileEntry struct {
	Path  vfs.Path
	Owner MountID
}

// Option 配置 Resolver。
type Option func(*Resolver)

// WithInjections 为 Resolver 挂上注入层，注入内容优先于任何挂载源，且不参与记忆化。
func WithInjections(mem *source.MemorySource) Option {
	return func(r *Resolver) {
		r.injected = mem
	}
}

// Resolver 维护挂载列表（只追加）以及路径 → 挂载下标的记忆表。
type Resolver struct {
	mu         sync.RWMutex
	mounts     []Mount
	memo       map[vfs.Path]int
	generation uint64
	injected   *source.MemorySource
}

// New 创建空的 Resolver。
func New(opts ...Option) *Resolver {
	r := &Resolver{memo: make(map[vfs.Path]int)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount 将源追加到下一个优先级，并清空全部记忆化结果。
func (r *Resolver) Mount(src source.Source) (MountID, error) {
	if src == nil {
		return 0, fmt.Errorf("%w: nil source", vfs.ErrPathInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := MountID(len(r.mounts))
	r.mounts = append(r.mounts, Mount{ID: id, Source: src})
	clear(r.memo)
	r.generation++
	return id, nil
}

// Resolve 返回拥有该路径的最高优先级源。
func (r *Resolver) Resolve(p vfs.Path) (source.Source, error) {
	m, err := r.ResolveMount(p)
	if err != nil {
		return nil, err
	}
	return m.Source, nil
}

// ResolveMount 与 Resolve 相同，但同时返回挂载编号，便于日志与诊断。
func (r *Resolver) ResolveMount(p vfs.Path) (Mount, error) {
	if !p.Valid() {
		return Mount{}, fmt.Errorf("%w: %q", vfs.ErrPathInvalid, p)
	}
	if r.injected != nil && r.injected.Exists(p) {
		return Mount{ID: InjectedMountID, Source: r.injected}, nil
	}

	r.mu.RLock()
	if idx, ok := r.memo[p]; ok {
		m := r.mounts[idx]
		r.mu.RUnlock()
		return m, nil
	}
	gen := r.generation
	idx := r.scan(p)
	var found Mount
	if idx >= 0 {
		found = r.mounts[idx]
	}
	r.mu.RUnlock()

	if idx < 0 {
		return Mount{}, fmt.Errorf("%w: %s", vfs.ErrResourceNotFound, p)
	}

	r.mu.Lock()
	// 扫描期间发生挂载时不写入记忆表，避免记录过期结果。
	if r.generation == gen {
		r.memo[p] = idx
	}
	r.mu.Unlock()
	return found, nil
}

// ResolveIn 仅检查指定挂载是否提供该路径。
func (r *Resolver) ResolveIn(p vfs.Path, id MountID) (source.Source, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", vfs.ErrPathInvalid, p)
	}
	if id == InjectedMountID && r.injected != nil {
		if r.injected.Exists(p) {
			return r.injected, nil
		}
		return nil, fmt.Errorf("%w: %s in %s", vfs.ErrResourceNotFound, p, source.MemoryLocation)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 0 || int(id) >= len(r.mounts) {
		return nil, fmt.Errorf("%w: unknown mount %d", vfs.ErrPathInvalid, id)
	}
	src := r.mounts[id].Source
	if !src.Exists(p) {
		return nil, fmt.Errorf("%w: %s in %s", vfs.ErrResourceNotFound, p, src.Location())
	}
	return src, nil
}

// Mounts 返回按优先级升序排列的挂载快照。
func (r *Resolver) Mounts() []Mount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.mounts)
}

// Len 返回挂载数量（不含注入层）。
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mounts)
}

// Files 返回合并后的命名空间，每个路径只出现一次并标注生效的挂载，按路径排序。
func (r *Resolver) Files() []FileEntry {
	r.mu.RLock()
	owners := make(map[vfs.Path]MountID)
	for _, m := range r.mounts {
		for p := range m.Source.List() {
			owners[p] = m.ID
		}
	}
	r.mu.RUnlock()

	if r.injected != nil {
		for p := range r.injected.List() {
			owners[p] = InjectedMountID
		}
	}

	result := make([]FileEntry, 0, len(owners))
	for p, owner := range owners {
		result = append(result, FileEntry{Path: p, Owner: owner})
	}
	slices.SortFunc(result, func(a, b FileEntry) int {
		return cmp.Compare(a.Path, b.Path)
	})
	return result
}

// scan 由高到低扫描挂载列表，调用方需持有读锁。
func (r *Resolver) scan(p vfs.Path) int {
	for i := len(r.mounts) - 1; i >= 0; i-- {
		if r.mounts[i].Source.Exists(p) {
			return i
		}
	}
	return -1
}
