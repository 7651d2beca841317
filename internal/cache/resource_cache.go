package cache

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/driftwood2d/resvfs/internal/logging"
	"github.com/driftwood2d/resvfs/internal/vfs"
)

// Options 汇总 ResourceCache 的依赖与策略。
type Options struct {
	Resolver Resolver
	Policy   TTLPolicy
	Clock    Clock
	Logger   logrus.FieldLogger
}

// ResourceCache 持有 VirtualPath → 解码对象的映射，并按 TTL 与引用计数管理生命周期。
type ResourceCache struct {
	resolver Resolver
	policy   TTLPolicy
	clock    Clock
	logger   logrus.FieldLogger

	mu         sync.Mutex
	entries    map[vfs.Path]*entry
	private    map[*entry]struct{}
	generation uint64
	stats      Stats

	// lockMu/locks 通过 entryLock 保证同一路径只有一个加载在进行。
	lockMu sync.Mutex
	locks  map[vfs.Path]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// New 构建缓存实例；Resolver 与 Clock 为必填项。
func New(opts Options) (*ResourceCache, error) {
	if opts.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if opts.Clock == nil {
		return nil, errors.New("clock is required")
	}
	return &ResourceCache{
		resolver: opts.Resolver,
		policy:   opts.Policy,
		clock:    opts.Clock,
		logger:   logging.OrNop(opts.Logger),
		entries:  make(map[vfs.Path]*entry),
		private:  make(map[*entry]struct{}),
		locks:    make(map[vfs.Path]*entryLock),
	}, nil
}

// Policy 返回当前 TTL 策略。
func (c *ResourceCache) Policy() TTLPolicy {
	return c.policy
}

// Get 返回共享句柄：命中时刷新访问 tick 并增加引用；未命中时经覆盖层读取并解码。
// 任一步失败都不会写入缓存。
func (c *ResourceCache) Get(p vfs.Path, decode Decoder) (*Handle, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", vfs.ErrPathInvalid, p)
	}
	if decode == nil {
		return nil, fmt.Errorf("%w: nil decoder for %s", vfs.ErrDecode, p)
	}
	c.logger.WithFields(logging.EventFields(logging.DomainResource, "requested", p.String())).Debug("resource_requested")

	if h := c.acquire(p); h != nil {
		return h, nil
	}

	unlock := c.lockEntry(p)
	defer unlock()

	// 等待锁期间可能已有其他调用方完成加载。
	if h := c.acquire(p); h != nil {
		return h, nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	e, err := c.load(p, decode)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.stats.Misses++
	if c.generation == gen {
		c.entries[p] = e
	} else {
		// 加载期间发生了失效，结果不能进入缓存，只交给当前调用方。
		e.detached = true
	}
	c.mu.Unlock()

	fields := logging.EventFields(logging.DomainCache, "decoded", p.String())
	fields["location"] = e.location
	c.logger.WithFields(fields).Info("resource_decoded")
	return c.newHandle(e), nil
}

// GetPrivate 总是重新读取并解码，返回不与任何调用方共享的独占副本。
// 副本由缓存跟踪，并在释放时立即销毁。
func (c *ResourceCache) GetPrivate(p vfs.Path, decode Decoder) (*Handle, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", vfs.ErrPathInvalid, p)
	}
	if decode == nil {
		return nil, fmt.Errorf("%w: nil decoder for %s", vfs.ErrDecode, p)
	}

	e, err := c.load(p, decode)
	if err != nil {
		return nil, err
	}
	e.private = true

	c.mu.Lock()
	c.private[e] = struct{}{}
	c.mu.Unlock()

	c.logger.WithFields(logging.EventFields(logging.DomainCache, "duplicated", p.String())).Info("resource_decoded")
	return c.newHandle(e), nil
}

// Release 减少引用计数。TTL 为 0 时引用归零的条目立即销毁；
// 已失效或独占的条目在最后一个句柄释放时销毁。
func (c *ResourceCache) Release(h *Handle) {
	if h == nil || h.cache != c || !h.released.CompareAndSwap(false, true) {
		return
	}
	e := h.entry

	c.mu.Lock()
	e.refs--
	destroy := false
	reason := "released"
	switch {
	case e.refs > 0:
	case e.private:
		delete(c.private, e)
		destroy = true
	case e.detached:
		destroy = true
	case c.policy.Immediate():
		if c.entries[e.path] == e {
			delete(c.entries, e.path)
		}
		c.stats.Evictions++
		destroy = true
		reason = "evicted"
	}
	c.mu.Unlock()

	if destroy {
		c.destroy(e, reason)
	}
}

// Sweep 淘汰所有引用为 0 且闲置超过 TTL 的条目，返回淘汰数量。遍历顺序不作保证。
func (c *ResourceCache) Sweep(now int64) int {
	var expired []*entry

	c.mu.Lock()
	for p, e := range c.entries {
		if e.refs == 0 && c.policy.Expired(e.lastAccess, now) {
			delete(c.entries, p)
			expired = append(expired, e)
		}
	}
	c.stats.Evictions += uint64(len(expired))
	c.mu.Unlock()

	for _, e := range expired {
		c.destroy(e, "evicted")
	}
	if len(expired) > 0 {
		c.logger.WithFields(logrus.Fields{
			"domain":  logging.DomainCache,
			"action":  "sweep",
			"tick":    now,
			"evicted": len(expired),
		}).Debug("cache_swept")
	}
	return len(expired)
}

// Invalidate 无视引用计数移除条目；已发放的句柄继续有效，下次 Get 会重新加载。
func (c *ResourceCache) Invalidate(p vfs.Path) bool {
	return c.InvalidateSeq(func(yield func(vfs.Path) bool) { yield(p) }) > 0
}

// InvalidateSeq 在一次加锁内失效序列中所有已缓存的路径，返回移除数量。
// 即使没有命中，进行中的加载也不会再写入缓存。
func (c *ResourceCache) InvalidateSeq(paths iter.Seq[vfs.Path]) int {
	var removed, unreferenced []*entry

	c.mu.Lock()
	c.generation++
	for p := range paths {
		e, ok := c.entries[p]
		if !ok {
			continue
		}
		delete(c.entries, p)
		removed = append(removed, e)
		if c.detach(e) {
			unreferenced = append(unreferenced, e)
		}
	}
	c.stats.Invalidations += uint64(len(removed))
	c.mu.Unlock()

	for _, e := range removed {
		c.logger.WithFields(logging.EventFields(logging.DomainCache, "invalidated", e.path.String())).Info("resource_invalidated")
	}
	for _, e := range unreferenced {
		c.destroy(e, "invalidated")
	}
	return len(removed)
}

// Flush 失效全部条目，返回被移除的数量。
func (c *ResourceCache) Flush() int {
	var unreferenced []*entry

	c.mu.Lock()
	c.generation++
	removed := len(c.entries)
	for p, e := range c.entries {
		delete(c.entries, p)
		if c.detach(e) {
			unreferenced = append(unreferenced, e)
		}
	}
	c.stats.Invalidations += uint64(removed)
	c.mu.Unlock()

	for _, e := range unreferenced {
		c.destroy(e, "flushed")
	}
	c.logger.WithFields(logrus.Fields{
		"domain":  logging.DomainCache,
		"action":  "flush",
		"removed": removed,
	}).Info("cache_flushed")
	return removed
}

// Contains 判断路径当前是否在缓存中。
func (c *ResourceCache) Contains(p vfs.Path) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[p]
	return ok
}

// Len 返回缓存中的共享条目数。
func (c *ResourceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RefCount 返回路径当前的引用计数，不在缓存中时返回 -1。
func (c *ResourceCache) RefCount(p vfs.Path) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[p]; ok {
		return e.refs
	}
	return -1
}

// Stats 返回统计快照。
func (c *ResourceCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Entries = len(c.entries)
	return stats
}

// Entries 返回全部共享条目的快照。
func (c *ResourceCache) Entries() []EntryInfo {
	now := c.clock.Ticks()

	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]EntryInfo, 0, len(c.entries))
	for _, e := range c.entries {
		result = append(result, EntryInfo{
			Path:       e.path,
			RefCount:   e.refs,
			LastAccess: e.lastAccess,
			Idle:       now - e.lastAccess,
			Location:   e.location,
		})
	}
	return result
}

func (c *ResourceCache) acquire(p vfs.Path) *Handle {
	now := c.clock.Ticks()

	c.mu.Lock()
	e, ok := c.entries[p]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	e.refs++
	e.lastAccess = now
	c.stats.Hits++
	c.mu.Unlock()

	c.logger.WithFields(logging.EventFields(logging.DomainCache, "hit", p.String())).Debug("resource_cache_hit")
	return &Handle{cache: c, entry: e}
}

func (c *ResourceCache) newHandle(e *entry) *Handle {
	return &Handle{cache: c, entry: e}
}

// load 依次执行 resolve → read → decode，不持有 c.mu。
func (c *ResourceCache) load(p vfs.Path, decode Decoder) (*entry, error) {
	src, err := c.resolver.Resolve(p)
	if err != nil {
		return nil, c.loadFailed(p, err)
	}
	data, err := src.Read(p)
	if err != nil {
		return nil, c.loadFailed(p, err)
	}
	value, err := decode(data)
	if err != nil {
		if !errors.Is(err, vfs.ErrDecode) {
			err = fmt.Errorf("%w: %s: %w", vfs.ErrDecode, p, err)
		}
		return nil, c.loadFailed(p, err)
	}

	c.mu.Lock()
	c.stats.Loads++
	c.mu.Unlock()

	return &entry{
		path:       p,
		location:   src.Location(),
		value:      value,
		lastAccess: c.clock.Ticks(),
		refs:       1,
	}, nil
}

func (c *ResourceCache) loadFailed(p vfs.Path, err error) error {
	c.mu.Lock()
	c.stats.Failures++
	c.mu.Unlock()

	c.logger.WithError(err).
		WithFields(logging.EventFields(logging.DomainResource, "load", p.String())).
		Warn("resource_load_failed")
	return err
}

// detach 将条目标记为游离，返回是否可以立即销毁。调用方需持有 c.mu。
func (c *ResourceCache) detach(e *entry) bool {
	if e.refs > 0 {
		e.detached = true
		return false
	}
	return true
}

// destroy 调用对象的 Close 钩子，不持有 c.mu 以允许钩子回调缓存。
func (c *ResourceCache) destroy(e *entry, reason string) {
	fields := logging.EventFields(logging.DomainCache, reason, e.path.String())
	if closer, ok := e.value.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.WithError(err).WithFields(fields).Warn("resource_teardown_failed")
		}
	}
	if reason == "evicted" {
		c.logger.WithFields(fields).Info("resource_evicted")
	}
}

func (c *ResourceCache) lockEntry(p vfs.Path) func() {
	c.lockMu.Lock()
	lock := c.locks[p]
	if lock == nil {
		lock = &entryLock{}
		c.locks[p] = lock
	}
	lock.refs++
	c.lockMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		c.lockMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, p)
		}
		c.lockMu.Unlock()
	}
}
