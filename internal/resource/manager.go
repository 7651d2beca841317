package resource

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/driftwood2d/resvfs/internal/cache"
	"github.com/driftwood2d/resvfs/internal/config"
	"github.com/driftwood2d/resvfs/internal/logging"
	"github.com/driftwood2d/resvfs/internal/overlay"
	"github.com/driftwood2d/resvfs/internal/source"
	"github.com/driftwood2d/resvfs/internal/vfs"
)

// Options 允许调用方替换时钟；未提供时 Manager 使用由 Tick 推进的内部时钟。
type Options struct {
	Clock cache.Clock
}

// Manager 持有一次会话的覆盖层、注入层与缓存。
type Manager struct {
	paths  config.PathConfig
	logger logrus.FieldLogger

	// mountMu 保证“挂载 + 失效”作为一个整体执行，与注入操作互斥。
	mountMu  sync.Mutex
	resolver *overlay.Resolver
	injected *source.MemorySource
	cache    *cache.ResourceCache

	clock         cache.Clock
	manual        *cache.ManualClock
	sweepInterval int64

	// lastSweep 仅由 Tick 读写。
	lastSweep int64
}

// New 根据配置创建 Manager，并依次挂载内置包与配置中的包。
// 内置包目录不存在时仅记录警告；其余包挂载失败则返回错误。
func New(cfg *config.Config, logger logrus.FieldLogger, opts Options) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	logger = logging.OrNop(logger)

	m := &Manager{
		paths:         cfg.Path,
		logger:        logger,
		injected:      source.NewMemory(),
		sweepInterval: int64(max(cfg.Cache.SweepInterval, 1)),
	}
	m.resolver = overlay.New(overlay.WithInjections(m.injected))

	m.clock = opts.Clock
	if m.clock == nil {
		m.manual = &cache.ManualClock{}
		m.clock = m.manual
	}

	rc, err := cache.New(cache.Options{
		Resolver: m.resolver,
		Policy:   cache.NewTTLPolicy(cfg.Cache.TTL.DurationValue(), cfg.Tick.Rate),
		Clock:    m.clock,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	m.cache = rc

	if _, err := m.Mount(cfg.Path.Common); err != nil {
		if !errors.Is(err, vfs.ErrPathNotFound) {
			return nil, fmt.Errorf("mount common package: %w", err)
		}
		logger.WithFields(logging.MountFields("mount", cfg.Path.Common, 0)).
			WithError(err).
			Warn("common_package_missing")
	}
	for _, pkg := range cfg.Path.Packages {
		if _, err := m.Mount(pkg); err != nil {
			m.Close()
			return nil, fmt.Errorf("mount package %s: %w", pkg, err)
		}
	}
	return m, nil
}

// Mount 将位置限制在数据根目录内、打开对应源，并在一次互斥操作中完成挂载与
// 对新源所覆盖路径的缓存失效。返回新挂载的优先级。
func (m *Manager) Mount(location string) (overlay.MountID, error) {
	full, err := m.paths.Locate(location)
	if err != nil {
		return 0, err
	}
	src, err := source.Open(full)
	if err != nil {
		return 0, err
	}

	m.mountMu.Lock()
	id, err := m.resolver.Mount(src)
	if err != nil {
		m.mountMu.Unlock()
		closeSource(src)
		return 0, err
	}
	invalidated := m.cache.InvalidateSeq(src.List())
	m.mountMu.Unlock()

	fields := logging.MountFields("mount", full, int(id))
	fields["kind"] = src.Kind()
	fields["invalidated"] = invalidated
	m.logger.WithFields(fields).Info("path_mounted")
	return id, nil
}

// Get 获取共享的解码资源句柄，使用完毕后必须 Release。
func (m *Manager) Get(p vfs.Path, decode cache.Decoder) (*cache.Handle, error) {
	return m.cache.Get(p, decode)
}

// Release 归还句柄。
func (m *Manager) Release(h *cache.Handle) {
	m.cache.Release(h)
}

// Duplicate 返回不与其他调用方共享的独占副本，释放时立即销毁。
func (m *Manager) Duplicate(p vfs.Path, decode cache.Decoder) (*cache.Handle, error) {
	return m.cache.GetPrivate(p, decode)
}

// ReadRaw 绕过缓存直接读取生效源中的原始字节。
func (m *Manager) ReadRaw(p vfs.Path) ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", vfs.ErrPathInvalid, p)
	}
	src, err := m.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	return src.Read(p)
}

// Resolve 返回路径当前生效的挂载。
func (m *Manager) Resolve(p vfs.Path) (overlay.Mount, error) {
	if !p.Valid() {
		return overlay.Mount{}, fmt.Errorf("%w: %q", vfs.ErrPathInvalid, p)
	}
	return m.resolver.ResolveMount(p)
}

// Inject 写入一个优先于全部挂载的内存文件，并使该路径的缓存失效。
func (m *Manager) Inject(p vfs.Path, data []byte) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", vfs.ErrPathInvalid, p)
	}

	m.mountMu.Lock()
	err := m.injected.Put(p, data)
	if err == nil {
		m.cache.Invalidate(p)
	}
	m.mountMu.Unlock()
	if err != nil {
		return err
	}

	fields := logging.EventFields(logging.DomainResource, "inject", p.String())
	fields["size"] = len(data)
	m.logger.WithFields(fields).Info("resource_injected")
	return nil
}

// Uninject 移除注入文件，未注入时返回 ErrResourceNotFound。
func (m *Manager) Uninject(p vfs.Path) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", vfs.ErrPathInvalid, p)
	}

	m.mountMu.Lock()
	err := m.injected.Delete(p)
	if err == nil {
		m.cache.Invalidate(p)
	}
	m.mountMu.Unlock()
	if err != nil {
		return err
	}

	m.logger.WithFields(logging.EventFields(logging.DomainResource, "uninject", p.String())).Info("resource_uninjected")
	return nil
}

// Purge 显式失效单个路径，返回该路径此前是否在缓存中。
func (m *Manager) Purge(p vfs.Path) bool {
	return m.cache.Invalidate(p)
}

// Flush 失效全部缓存条目。
func (m *Manager) Flush() int {
	return m.cache.Flush()
}

// Tick 通知 Manager 当前 tick；每 SweepInterval 个 tick 执行一次淘汰扫描。
// 使用内部时钟时，Tick 同时推进时钟。返回本次淘汰数量。
// Tick 只能由唯一的节拍循环调用（-serve 下为 ticker.Driver 的 cache_sweep 回调），
// lastSweep 不加锁。
func (m *Manager) Tick(now int64) int {
	if m.manual != nil {
		m.manual.Set(now)
	}
	if now-m.lastSweep < m.sweepInterval {
		return 0
	}
	m.lastSweep = now
	return m.cache.Sweep(now)
}

// Ticks 返回当前 tick。
func (m *Manager) Ticks() int64 {
	return m.clock.Ticks()
}

// Mounts 返回按优先级升序排列的挂载快照。
func (m *Manager) Mounts() []overlay.Mount {
	return m.resolver.Mounts()
}

// Files 返回合并后的命名空间。
func (m *Manager) Files() []overlay.FileEntry {
	return m.resolver.Files()
}

// Injected 返回所有注入路径。
func (m *Manager) Injected() []vfs.Path {
	var result []vfs.Path
	for p := range m.injected.List() {
		result = append(result, p)
	}
	return result
}

func (m *Manager) Stats() cache.Stats {
	return m.cache.Stats()
}

func (m *Manager) Entries() []cache.EntryInfo {
	return m.cache.Entries()
}

// Cache 暴露底层缓存，供诊断与测试使用。
func (m *Manager) Cache() *cache.ResourceCache {
	return m.cache
}

// Close 释放归档源持有的文件句柄。之后不应再使用 Manager。
func (m *Manager) Close() error {
	var errs []error
	for _, mount := range m.resolver.Mounts() {
		if err := closeSource(mount.Source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeSource(src source.Source) error {
	if closer, ok := src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
