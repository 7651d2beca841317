package cache

import (
	"sync/atomic"

	"github.com/driftwood2d/resvfs/internal/source"
	"github.com/driftwood2d/resvfs/internal/vfs"
)

// Decoder 将原始字节转换为解码后的资源对象，应为纯函数。
type Decoder func(data []byte) (any, error)

// Resolver 是缓存所需的覆盖层能力，由 overlay.Resolver 实现。
type Resolver interface {
	Resolve(p vfs.Path) (source.Source, error)
}

// Clock 提供当前引擎 tick 计数，需单调递增。
type Clock interface {
	Ticks() int64
}

// ManualClock 是由调用方推进的 tick 计数器，适合外部驱动的主循环与测试。
type ManualClock struct {
	now atomic.Int64
}

// Ticks 返回当前 tick。
func (c *ManualClock) Ticks() int64 {
	return c.now.Load()
}

// Set 将时钟拨到指定 tick。
func (c *ManualClock) Set(tick int64) {
	c.now.Store(tick)
}

// Advance 推进 n 个 tick 并返回新值。
func (c *ManualClock) Advance(n int64) int64 {
	return c.now.Add(n)
}

// EntryInfo 是单个缓存条目的只读快照，供诊断输出。
type EntryInfo struct {
	Path       vfs.Path `json:"path"`
	RefCount   int      `json:"ref_count"`
	LastAccess int64    `json:"last_access_tick"`
	Idle       int64    `json:"idle_ticks"`
	Location   string   `json:"location"`
}

// Stats 统计缓存行为，Hits/Misses 仅计入共享请求。
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Loads         uint64 `json:"loads"`
	Failures      uint64 `json:"failures"`
	Evictions     uint64 `json:"evictions"`
	Invalidations uint64 `json:"invalidations"`
	Entries       int    `json:"entries"`
}

// entry 是缓存内部条目。detached 表示已被移出映射但仍有句柄持有；
// private 表示独占副本，二者都在最后一个句柄释放时销毁。
type entry struct {
	path       vfs.Path
	location   string
	value      any
	lastAccess int64
	refs       int
	detached   bool
	private    bool
}

// Handle 是对共享解码对象的一次引用，必须通过 Release 归还。
type Handle struct {
	cache    *ResourceCache
	entry    *entry
	released atomic.Bool
}

// Value 返回解码后的对象。句柄释放后仍可读取，但不再受缓存保护。
func (h *Handle) Value() any {
	return h.entry.value
}

// Path 返回句柄对应的虚拟路径。
func (h *Handle) Path() vfs.Path {
	return h.entry.path
}

// Location 返回加载该资源的源位置。
func (h *Handle) Location() string {
	return h.entry.location
}

// Release 归还引用，重复调用无副作用。
func (h *Handle) Release() {
	h.cache.Release(h)
}

// As 将句柄中的对象断言为具体类型。
func As[T any](h *Handle) (T, bool) {
	var zero T
	if h == nil {
		return zero, false
	}
	v, ok := h.entry.value.(T)
	return v, ok
}
